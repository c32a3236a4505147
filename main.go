package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ericogr/envnode/pkg/config"
	"github.com/ericogr/envnode/pkg/cycle"
	"github.com/ericogr/envnode/pkg/logging"
	"github.com/ericogr/envnode/pkg/network"
	"github.com/ericogr/envnode/pkg/output"
	"github.com/ericogr/envnode/pkg/output/console"
	"github.com/ericogr/envnode/pkg/output/influxdb"
	mqttout "github.com/ericogr/envnode/pkg/output/mqtt"
	"github.com/ericogr/envnode/pkg/output/thingspeak"
	"github.com/ericogr/envnode/pkg/sensor"
	"github.com/google/uuid"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const appName = "envnode"

// DHT sensors need a moment after power-up before the first measurement.
const startupSettle = 2 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, appName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting",
		"node", cfg.NodeName,
		"sensor_type", cfg.SensorType,
		"radio_type", cfg.RadioType,
		"interval_s", cfg.UploadIntervalSeconds,
	)

	sensors, closeSensors, err := initSensors(cfg, logger)
	if err != nil {
		logger.Error("sensor init failed", "error", err)
		os.Exit(1)
	}
	defer closeSensors()

	radio, err := initRadio(cfg)
	if err != nil {
		logger.Error("radio init failed", "error", err)
		os.Exit(1)
	}
	if c, ok := radio.(io.Closer); ok {
		defer c.Close()
	}

	mgr := network.NewManager(radio, cfg.WiFi.SSID, cfg.WiFi.Password, logger)
	if err := mgr.Connect(); err != nil {
		// no point sampling without a network
		logger.Error("initial wifi connection failed", "error", err)
		os.Exit(1)
	}

	mirrors, err := initOutputs(cfg, logger)
	if err != nil {
		logger.Error("output init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, o := range mirrors {
			_ = o.Close()
		}
	}()

	uploader := thingspeak.NewUploader(cfg.ThingSpeak.URL, cfg.ThingSpeak.APIKey,
		time.Duration(cfg.ThingSpeak.TimeoutMs)*time.Millisecond, logger)

	ctrl := cycle.NewController(sensors, uploader, mgr, mirrors, logger)
	ctrl.Interval = time.Duration(cfg.UploadIntervalSeconds) * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	time.Sleep(startupSettle)
	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func initSensors(cfg config.Config, logger *slog.Logger) (cycle.Sensors, func(), error) {
	if cfg.SensorType == config.SensorSimulation {
		return cycle.Sensors{
			PressureA: sensor.NewFakePressureTemp("bmp180"),
			PressureB: sensor.NewFakePressureTemp("bme280"),
			Humidity:  sensor.NewFakeHumidity(),
			Air:       sensor.NewFakeAnalog(),
		}, func() {}, nil
	}

	if _, err := host.Init(); err != nil {
		return cycle.Sensors{}, nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return cycle.Sensors{}, nil, fmt.Errorf("open i2c: %w", err)
	}
	// A missing barometric sensor is not fatal: it reads as unavailable every cycle.
	var a, b sensor.PressureTempSensor
	if s, err := sensor.NewBMXX80Sensor("bmp180", bus, uint16(cfg.BMP180Address)); err != nil {
		logger.Warn("pressure sensor unavailable", "sensor", "bmp180", "error", err)
		a = missingPressureTemp{name: "bmp180", err: err}
	} else {
		a = s
	}
	if s, err := sensor.NewBMXX80Sensor("bme280", bus, uint16(cfg.BME280Address)); err != nil {
		logger.Warn("pressure sensor unavailable", "sensor", "bme280", "error", err)
		b = missingPressureTemp{name: "bme280", err: err}
	} else {
		b = s
	}
	air, err := sensor.NewADS1115Sensor(bus, uint16(cfg.ADCAddress), cfg.ADCChannel, cfg.ADCSampleRate)
	if err != nil {
		_ = bus.Close()
		return cycle.Sensors{}, nil, err
	}
	s := cycle.Sensors{
		PressureA: a,
		PressureB: b,
		Humidity:  sensor.NewDHTSensor(cfg.DHTDevice),
		Air:       air,
	}
	closeAll := func() {
		_ = s.PressureA.Close()
		_ = s.PressureB.Close()
		_ = s.Humidity.Close()
		_ = s.Air.Close()
		_ = bus.Close()
	}
	return s, closeAll, nil
}

// missingPressureTemp stands in for a sensor that failed to initialize.
type missingPressureTemp struct {
	name string
	err  error
}

func (m missingPressureTemp) ReadPressureTemp() (sensor.PressureTemp, error) {
	return sensor.PressureTemp{}, fmt.Errorf("%s not initialized: %w", m.name, m.err)
}
func (m missingPressureTemp) Name() string { return m.name }
func (m missingPressureTemp) Close() error { return nil }

func initRadio(cfg config.Config) (network.Radio, error) {
	switch cfg.RadioType {
	case config.RadioNone:
		return network.StaticRadio{}, nil
	default:
		return network.NewNetworkManagerRadio(cfg.WiFi.Interface)
	}
}

func initOutputs(cfg config.Config, logger *slog.Logger) ([]output.Output, error) {
	outs := make([]output.Output, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		var (
			o   output.Output
			err error
		)
		switch strings.ToLower(oc.Type) {
		case config.OutputConsole:
			o = console.NewConsole()
		case config.OutputMQTT:
			mc := *oc.MQTT
			if mc.ClientID == "" {
				mc.ClientID = appName + "-" + uuid.NewString()
			}
			o, err = mqttout.NewMQTT(mc, logger)
		case config.OutputInfluxDB:
			o, err = influxdb.NewInflux(*oc.InfluxDB, cfg.NodeName, logger)
		default:
			err = fmt.Errorf("unknown output type %q", oc.Type)
		}
		if err != nil {
			for _, prev := range outs {
				_ = prev.Close()
			}
			return nil, fmt.Errorf("output %s: %w", oc.Type, err)
		}
		outs = append(outs, o)
	}
	return outs, nil
}
