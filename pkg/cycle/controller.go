// Package cycle runs the read → derive → upload → sleep loop.
package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericogr/envnode/pkg/derive"
	"github.com/ericogr/envnode/pkg/output"
	"github.com/ericogr/envnode/pkg/sensor"
)

const (
	DefaultInterval       = 120 * time.Second
	DefaultHumidityDelay  = time.Second
	DefaultAirSettleDelay = 200 * time.Millisecond
)

// Uploader sends one record and returns the endpoint's response body.
type Uploader interface {
	Upload(ctx context.Context, r sensor.Record) (string, error)
}

// Connectivity is the repair hook used after a failed upload.
type Connectivity interface {
	EnsureConnected() error
}

type Sensors struct {
	PressureA sensor.PressureTempSensor
	PressureB sensor.PressureTempSensor
	Humidity  sensor.HumiditySensor
	Air       sensor.AnalogSensor
}

// Controller owns every collaborator of a cycle. It is not safe for
// concurrent use; Run is the only loop.
type Controller struct {
	sensors  Sensors
	uploader Uploader
	network  Connectivity
	mirrors  []output.Output
	logger   *slog.Logger

	Interval       time.Duration
	HumidityDelay  time.Duration
	AirSettleDelay time.Duration
	Sleep          func(time.Duration)
	Now            func() time.Time
}

func NewController(s Sensors, up Uploader, net Connectivity, mirrors []output.Output, logger *slog.Logger) *Controller {
	return &Controller{
		sensors:        s,
		uploader:       up,
		network:        net,
		mirrors:        mirrors,
		logger:         logger,
		Interval:       DefaultInterval,
		HumidityDelay:  DefaultHumidityDelay,
		AirSettleDelay: DefaultAirSettleDelay,
		Sleep:          time.Sleep,
		Now:            time.Now,
	}
}

// RunCycle performs one cycle. Sensor faults only degrade fields; the returned
// error is the upload outcome, which is never fatal.
func (c *Controller) RunCycle(ctx context.Context) (sensor.Record, error) {
	a := derive.ReadPressureTemp(c.sensors.PressureA, c.logger)
	b := derive.ReadPressureTemp(c.sensors.PressureB, c.logger)
	avg := derive.AveragePressureTemp(a, b)

	if c.HumidityDelay > 0 {
		c.Sleep(c.HumidityDelay)
	}
	hum := derive.ReadHumidity(c.sensors.Humidity, c.logger)

	air := derive.ReadAirQuality(c.sensors.Air, c.AirSettleDelay, c.Sleep, c.logger)
	quality := derive.ClassifyAirQuality(air.Voltage)

	rec := sensor.Record{
		AvgTemperature: avg.Temperature,
		AvgPressure:    avg.Pressure,
		Humidity:       hum.Humidity,
		AirVoltage:     air.Voltage,
		HeatIndex:      derive.HeatIndex(avg.Temperature, hum.Humidity),
		AirQuality:     quality.String(),
		Timestamp:      c.Now(),
	}
	c.logger.Info("cycle readings",
		"avg_temperature_c", rec.AvgTemperature,
		"avg_pressure_hpa", rec.AvgPressure,
		"dht_temperature_c", hum.Temperature,
		"humidity_pct", rec.Humidity,
		"air_raw", air.Raw,
		"air_voltage", rec.AirVoltage,
		"air_quality", rec.AirQuality,
		"heat_index_c", rec.HeatIndex,
	)

	body, err := c.uploader.Upload(ctx, rec)
	if err != nil {
		c.logger.Error("telemetry upload failed", "error", err)
		if nerr := c.network.EnsureConnected(); nerr != nil {
			c.logger.Warn("wifi reconnect failed, retrying next cycle", "error", nerr)
		}
	} else {
		c.logger.Info("telemetry uploaded", "response", body)
	}

	for _, m := range c.mirrors {
		if perr := m.Publish(rec); perr != nil {
			c.logger.Warn("output publish failed", "output", fmt.Sprintf("%T", m), "error", perr)
		}
	}
	return rec, err
}

// Run repeats RunCycle every Interval until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _ = c.RunCycle(ctx)

		t := time.NewTimer(c.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
