package sensor

import "time"

// Unavailable marks a reading that could not be taken this cycle.
const Unavailable = -1.0

const (
	ADCMax      = 4095
	ADCRefVolts = 3.3
)

func IsUnavailable(v float64) bool { return v == Unavailable }

// PressureTemp is one barometric sensor sample: temperature in °C, pressure in hPa.
type PressureTemp struct {
	Temperature float64 `json:"temperature_c"`
	Pressure    float64 `json:"pressure_hpa"`
}

// Failed returns the sample reported for a sensor that faulted.
func (PressureTemp) Failed() PressureTemp {
	return PressureTemp{Temperature: Unavailable, Pressure: Unavailable}
}

func (p PressureTemp) Valid() bool {
	return !IsUnavailable(p.Temperature) && !IsUnavailable(p.Pressure)
}

type Humidity struct {
	Temperature float64 `json:"temperature_c"`
	Humidity    float64 `json:"humidity_pct"`
}

type AirQualitySample struct {
	Raw     int     `json:"raw"`
	Voltage float64 `json:"voltage"`
}

// VoltsFromRaw converts 12-bit ADC counts to volts.
func VoltsFromRaw(raw int) float64 {
	return float64(raw) * (ADCRefVolts / ADCMax)
}

// Record is what gets uploaded for one cycle. The first five fields map to
// telemetry fields 1..5; AirQuality and Timestamp are informational.
type Record struct {
	AvgTemperature float64   `json:"avg_temperature_c"`
	AvgPressure    float64   `json:"avg_pressure_hpa"`
	Humidity       float64   `json:"humidity_pct"`
	AirVoltage     float64   `json:"air_quality_v"`
	HeatIndex      float64   `json:"heat_index_c"`
	AirQuality     string    `json:"air_quality"`
	Timestamp      time.Time `json:"timestamp"`
}

// Fields returns the five telemetry values in field order.
func (r Record) Fields() [5]float64 {
	return [5]float64{r.AvgTemperature, r.AvgPressure, r.Humidity, r.AirVoltage, r.HeatIndex}
}

type PressureTempSensor interface {
	ReadPressureTemp() (PressureTemp, error)
	Name() string
	Close() error
}

// HumiditySensor is measure-then-read: accessors return the values captured
// by the last successful Measure.
type HumiditySensor interface {
	Measure() error
	Temperature() float64
	Humidity() float64
	Close() error
}

// AnalogSensor returns raw counts in [0, ADCMax].
type AnalogSensor interface {
	ReadRaw() (int, error)
	Close() error
}
