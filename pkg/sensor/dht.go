package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	dhtTempFile     = "in_temp_input"
	dhtHumidityFile = "in_humidityrelative_input"
)

// DHTSensor reads a DHT11/DHT22 exposed by the Linux IIO dht11 driver.
// The driver reports milli-degrees Celsius and milli-percent.
type DHTSensor struct {
	dir         string
	temperature float64
	humidity    float64
}

func NewDHTSensor(iioDir string) *DHTSensor {
	return &DHTSensor{dir: iioDir, temperature: Unavailable, humidity: Unavailable}
}

// Measure triggers a conversion by reading both channels. The accessors keep
// the previous values when Measure fails.
func (d *DHTSensor) Measure() error {
	t, err := readMilli(filepath.Join(d.dir, dhtTempFile))
	if err != nil {
		return fmt.Errorf("dht temperature: %w", err)
	}
	h, err := readMilli(filepath.Join(d.dir, dhtHumidityFile))
	if err != nil {
		return fmt.Errorf("dht humidity: %w", err)
	}
	d.temperature = t
	d.humidity = h
	return nil
}

func (d *DHTSensor) Temperature() float64 { return d.temperature }
func (d *DHTSensor) Humidity() float64    { return d.humidity }
func (d *DHTSensor) Close() error         { return nil }

func readMilli(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return float64(v) / 1000.0, nil
}
