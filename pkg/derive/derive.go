// Package derive computes the composite metrics uploaded each cycle and holds
// the fault boundaries that turn sensor errors into sentinel values.
package derive

import (
	"log/slog"
	"math"
	"time"

	"github.com/ericogr/envnode/pkg/sensor"
)

// HeatIndexThreshold is the temperature (°C) below which the ambient
// temperature is reported unchanged.
const HeatIndexThreshold = 27.0

// AveragePressureTemp averages two barometric samples. A sentinel in any of the
// four inputs makes both outputs the sentinel.
func AveragePressureTemp(a, b sensor.PressureTemp) sensor.PressureTemp {
	if !a.Valid() || !b.Valid() {
		return sensor.PressureTemp{}.Failed()
	}
	return sensor.PressureTemp{
		Temperature: (a.Temperature + b.Temperature) / 2,
		Pressure:    (a.Pressure + b.Pressure) / 2,
	}
}

// ReadPressureTemp reads s, logging and converting any fault to the sentinel pair.
func ReadPressureTemp(s sensor.PressureTempSensor, logger *slog.Logger) sensor.PressureTemp {
	pt, err := s.ReadPressureTemp()
	if err != nil {
		logger.Warn("pressure sensor read failed", "sensor", s.Name(), "error", err)
		return pt.Failed()
	}
	logger.Debug("pressure sensor read", "sensor", s.Name(),
		"temperature_c", pt.Temperature, "pressure_hpa", pt.Pressure)
	return pt
}

// ReadHumidity runs the measure-then-read sequence. A failed Measure yields
// the sentinel for both values.
func ReadHumidity(s sensor.HumiditySensor, logger *slog.Logger) sensor.Humidity {
	if err := s.Measure(); err != nil {
		logger.Warn("humidity sensor read failed", "error", err)
		return sensor.Humidity{Temperature: sensor.Unavailable, Humidity: sensor.Unavailable}
	}
	h := sensor.Humidity{Temperature: s.Temperature(), Humidity: s.Humidity()}
	logger.Debug("humidity sensor read", "temperature_c", h.Temperature, "humidity_pct", h.Humidity)
	return h
}

// ReadAirQuality waits settle, then samples s. A fault reports raw=0, 0 V,
// which classifies as Good.
func ReadAirQuality(s sensor.AnalogSensor, settle time.Duration, sleep func(time.Duration), logger *slog.Logger) sensor.AirQualitySample {
	if settle > 0 {
		sleep(settle)
	}
	raw, err := s.ReadRaw()
	if err != nil {
		logger.Warn("air quality sensor read failed", "error", err)
		return sensor.AirQualitySample{Raw: 0, Voltage: 0.0}
	}
	return sensor.AirQualitySample{Raw: raw, Voltage: sensor.VoltsFromRaw(raw)}
}

// HeatIndex returns the apparent temperature for t (°C) and relative humidity
// h (%). Below HeatIndexThreshold t is returned as is, which also passes a
// sentinel temperature through. The threshold check must stay first.
func HeatIndex(t, h float64) float64 {
	if t < HeatIndexThreshold {
		return t
	}
	if sensor.IsUnavailable(h) {
		return sensor.Unavailable
	}
	hi := 0.5 * (t + 61.0 + (t-68.0)*1.2 + h*0.094)
	return Round2(hi)
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
