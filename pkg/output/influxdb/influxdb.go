package influxdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericogr/envnode/pkg/config"
	"github.com/ericogr/envnode/pkg/output"
	"github.com/ericogr/envnode/pkg/sensor"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	measurement          = "environment"
	requestTimeoutSecond = 10
)

// InfluxOutput writes one point per cycle to a remote InfluxDB bucket.
type InfluxOutput struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	node     string
	logger   *slog.Logger
}

func NewInflux(cfg config.InfluxConfig, node string, logger *slog.Logger) (output.Output, error) {
	opts := influxdb2.DefaultOptions().SetHTTPRequestTimeout(requestTimeoutSecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return &InfluxOutput{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		node:     node,
		logger:   logger,
	}, nil
}

func (o *InfluxOutput) Publish(r sensor.Record) error {
	p := recordPoint(r, o.node)
	if err := o.writeAPI.WritePoint(context.Background(), p); err != nil {
		return fmt.Errorf("error writing to InfluxDB: %w", err)
	}
	o.logger.Debug("point written to influxdb", "measurement", measurement, "node", o.node)
	return nil
}

func (o *InfluxOutput) Close() error {
	o.client.Close()
	return nil
}

// recordPoint builds the point for r. Unavailable values are left out.
func recordPoint(r sensor.Record, node string) *write.Point {
	fields := map[string]interface{}{
		"air_quality":   r.AirQuality,
		"air_quality_v": r.AirVoltage,
	}
	optional := map[string]float64{
		"avg_temperature_c": r.AvgTemperature,
		"avg_pressure_hpa":  r.AvgPressure,
		"humidity_pct":      r.Humidity,
		"heat_index_c":      r.HeatIndex,
	}
	for k, v := range optional {
		if !sensor.IsUnavailable(v) {
			fields[k] = v
		}
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(measurement, map[string]string{"node": node}, fields, ts)
}
