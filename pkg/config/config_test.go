package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"WIFI_SSID", "WIFI_PASSWORD", "THINGSPEAK_API_KEY", "MQTT_PASSWORD", "INFLUXDB_TOKEN"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("THINGSPEAK_API_KEY", "KEY")
	t.Setenv("WIFI_SSID", "lab")
	t.Setenv("WIFI_PASSWORD", "pw")

	cfg, err := Load([]string{"-env-file="})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UploadIntervalSeconds != 120 {
		t.Fatalf("interval: got %d want 120", cfg.UploadIntervalSeconds)
	}
	if cfg.ThingSpeak.APIKey != "KEY" || cfg.WiFi.SSID != "lab" || cfg.WiFi.Password != "pw" {
		t.Fatalf("secrets not applied: %+v %+v", cfg.ThingSpeak, cfg.WiFi)
	}
	if cfg.BMP180Address != 0x77 || cfg.BME280Address != 0x76 || cfg.ADCAddress != 0x48 {
		t.Fatalf("addresses: %+v", cfg)
	}
	if cfg.ThingSpeak.URL != "http://api.thingspeak.com/update" {
		t.Fatalf("url: %s", cfg.ThingSpeak.URL)
	}
	if len(cfg.Outputs) != 1 || cfg.Outputs[0].Type != OutputConsole {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
}

func TestLoadFlagsOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("THINGSPEAK_API_KEY", "KEY")

	cfg, err := Load([]string{
		"-env-file=",
		"-radio-type=none",
		"-sensor-type=simulation",
		"-interval=30",
		"-bme280-address=0x77",
		"-adc-channel=2",
		"-outputs=console,mqtt",
		"-mqtt-server=tcp://broker:1883",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UploadIntervalSeconds != 30 || cfg.RadioType != RadioNone || cfg.SensorType != SensorSimulation {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.BME280Address != 0x77 || cfg.ADCChannel != 2 {
		t.Fatalf("hardware flags not applied: %+v", cfg)
	}
	if len(cfg.Outputs) != 2 || cfg.Outputs[1].MQTT == nil || cfg.Outputs[1].MQTT.Server != "tcp://broker:1883" {
		t.Fatalf("mqtt output: %+v", cfg.Outputs)
	}
}

func TestLoadOutputSecretsForFlagSelectedOutput(t *testing.T) {
	clearEnv(t)
	t.Setenv("THINGSPEAK_API_KEY", "KEY")
	t.Setenv("MQTT_PASSWORD", "s3cret")

	cfg, err := Load([]string{
		"-env-file=",
		"-radio-type=none",
		"-outputs=console,mqtt",
		"-mqtt-server=tcp://b:1883",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Outputs) != 2 || cfg.Outputs[1].MQTT == nil {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	if cfg.Outputs[1].MQTT.Password != "s3cret" {
		t.Fatalf("mqtt password: %q", cfg.Outputs[1].MQTT.Password)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set
	os.Unsetenv("THINGSPEAK_API_KEY")
	os.Unsetenv("WIFI_SSID")
	dir := t.TempDir()
	p := filepath.Join(dir, "node.env")
	if err := os.WriteFile(p, []byte("THINGSPEAK_API_KEY=FROMFILE\nWIFI_SSID=filessid\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("THINGSPEAK_API_KEY")
		os.Unsetenv("WIFI_SSID")
	})
	cfg, err := Load([]string{"-env-file=" + p})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThingSpeak.APIKey != "FROMFILE" || cfg.WiFi.SSID != "filessid" {
		t.Fatalf("env file not applied: %+v %+v", cfg.ThingSpeak, cfg.WiFi)
	}
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	clearEnv(t)
	t.Setenv("THINGSPEAK_API_KEY", "KEY")
	if _, err := Load([]string{"-env-file=" + filepath.Join(t.TempDir(), "absent.env"), "-radio-type=none"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := DefaultConfig()
	base.ThingSpeak.APIKey = "K"
	base.WiFi.SSID = "lab"
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no api key", func(c *Config) { c.ThingSpeak.APIKey = "" }, "api key"},
		{"zero interval", func(c *Config) { c.UploadIntervalSeconds = 0 }, "interval"},
		{"no ssid", func(c *Config) { c.WiFi.SSID = "" }, "ssid"},
		{"bad sensor type", func(c *Config) { c.SensorType = "mock" }, "sensor type"},
		{"bad radio type", func(c *Config) { c.RadioType = "ble" }, "radio type"},
		{"bad channel", func(c *Config) { c.ADCChannel = 4 }, "adc channel"},
		{"mqtt without server", func(c *Config) { c.Outputs = []OutputConfig{{Type: OutputMQTT}} }, "mqtt server"},
		{"incomplete influx", func(c *Config) {
			c.Outputs = []OutputConfig{{Type: OutputInfluxDB, InfluxDB: &InfluxConfig{URL: "http://x"}}}
		}, "influxdb"},
		{"unknown output", func(c *Config) { c.Outputs = []OutputConfig{{Type: "kafka"}} }, "unknown type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			c.Outputs = append([]OutputConfig(nil), base.Outputs...)
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v; want error containing %q", err, tt.want)
			}
		})
	}

	noRadio := base
	noRadio.RadioType = RadioNone
	noRadio.WiFi.SSID = ""
	if err := noRadio.Validate(); err != nil {
		t.Fatalf("ssid should not be required without radio: %v", err)
	}
}

func TestParseIntOrHex(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"72", 72, true},
		{"0x48", 0x48, true},
		{"0X77", 0x77, true},
		{"zz", 0, false},
	}
	for _, tt := range tests {
		got, err := parseIntOrHex(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseIntOrHex(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("parseIntOrHex(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}
