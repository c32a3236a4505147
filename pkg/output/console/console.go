package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ericogr/envnode/pkg/output"
	"github.com/ericogr/envnode/pkg/sensor"
)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{w: os.Stdout} }

func (c *ConsoleOutput) Publish(r sensor.Record) error {
	_, err := fmt.Fprintf(c.w, "%s temp=%.2f pressure=%.2f humidity=%.2f air=%.2fV (%s) heat_index=%.2f\n",
		r.Timestamp.Format(time.RFC3339), r.AvgTemperature, r.AvgPressure, r.Humidity, r.AirVoltage, r.AirQuality, r.HeatIndex)
	return err
}

func (c *ConsoleOutput) Close() error { return nil }
