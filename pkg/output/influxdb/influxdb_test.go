package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/ericogr/envnode/pkg/sensor"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func TestRecordPoint(t *testing.T) {
	ts := time.Date(2025, 9, 19, 14, 41, 54, 0, time.UTC)
	r := sensor.Record{
		AvgTemperature: 26, AvgPressure: 1011, Humidity: 50,
		AirVoltage: 0.5, HeatIndex: 26, AirQuality: "Moderate", Timestamp: ts,
	}
	line := write.PointToLineProtocol(recordPoint(r, "garden"), time.Second)
	for _, want := range []string{
		"environment,node=garden ",
		`air_quality="Moderate"`,
		"air_quality_v=0.5",
		"avg_pressure_hpa=1011",
		"avg_temperature_c=26",
		"heat_index_c=26",
		"humidity_pct=50",
		" 1758292914",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestRecordPointSkipsUnavailable(t *testing.T) {
	r := sensor.Record{
		AvgTemperature: sensor.Unavailable, AvgPressure: sensor.Unavailable,
		Humidity: 50, AirVoltage: 0.08, HeatIndex: sensor.Unavailable, AirQuality: "Good",
		Timestamp: time.Unix(1, 0),
	}
	line := write.PointToLineProtocol(recordPoint(r, "n"), time.Second)
	for _, k := range []string{"avg_temperature_c", "avg_pressure_hpa", "heat_index_c"} {
		if strings.Contains(line, k) {
			t.Fatalf("line %q should not carry %s", line, k)
		}
	}
	if !strings.Contains(line, "humidity_pct=50") {
		t.Fatalf("line %q missing humidity", line)
	}
}
