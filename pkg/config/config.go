package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	RadioNetworkManager = "networkmanager"
	RadioNone           = "none"

	OutputConsole  = "console"
	OutputMQTT     = "mqtt"
	OutputInfluxDB = "influxdb"

	DefaultUploadIntervalSeconds = 120
)

type MQTTConfig struct {
	Server            string `json:"server"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"client_id"`
	StateTopic        string `json:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic"`
	DiscoveryName     string `json:"discovery_name"`
	DiscoveryUniqueID string `json:"discovery_unique_id"`
}

type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// OutputConfig describes a mirror output that receives every record in
// addition to the telemetry upload.
type OutputConfig struct {
	Type     string        `json:"type"`
	MQTT     *MQTTConfig   `json:"mqtt,omitempty"`
	InfluxDB *InfluxConfig `json:"influxdb,omitempty"`
}

type WiFiConfig struct {
	SSID      string `json:"ssid"`
	Password  string `json:"password"`
	Interface string `json:"interface"`
}

type ThingSpeakConfig struct {
	URL       string `json:"url"`
	APIKey    string `json:"api_key"`
	TimeoutMs int    `json:"timeout_ms"`
}

type Config struct {
	NodeName              string           `json:"node_name"`
	I2CBus                string           `json:"i2c_bus"`
	BMP180Address         int              `json:"bmp180_address"`
	BME280Address         int              `json:"bme280_address"`
	ADCAddress            int              `json:"adc_address"`
	ADCChannel            int              `json:"adc_channel"`
	ADCSampleRate         int              `json:"adc_sample_rate"`
	DHTDevice             string           `json:"dht_device"`
	SensorType            string           `json:"sensor_type"`
	RadioType             string           `json:"radio_type"`
	WiFi                  WiFiConfig       `json:"wifi"`
	ThingSpeak            ThingSpeakConfig `json:"thingspeak"`
	UploadIntervalSeconds int              `json:"upload_interval_seconds"`
	Outputs               []OutputConfig   `json:"outputs"`
	LogLevel              string           `json:"log_level"`
	LogFormat             string           `json:"log_format"`
}

func DefaultConfig() Config {
	return Config{
		NodeName:              "envnode",
		I2CBus:                "1",
		BMP180Address:         0x77,
		BME280Address:         0x76,
		ADCAddress:            0x48,
		ADCChannel:            0,
		ADCSampleRate:         128,
		DHTDevice:             "/sys/bus/iio/devices/iio:device0",
		SensorType:            SensorReal,
		RadioType:             RadioNetworkManager,
		WiFi:                  WiFiConfig{Interface: "wlan0"},
		ThingSpeak:            ThingSpeakConfig{URL: "http://api.thingspeak.com/update"},
		UploadIntervalSeconds: DefaultUploadIntervalSeconds,
		Outputs:               []OutputConfig{{Type: OutputConsole}},
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load builds the configuration from, in increasing precedence: defaults, a
// JSON file (-config), environment secrets (optionally from a .env file) and
// flags. It is meant to run once at startup.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("envnode", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON config file")
	envPath := fs.String("env-file", ".env", "Optional .env file with secrets")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus (e.g., '1' -> /dev/i2c-1)")
	flagBMP180 := fs.String("bmp180-address", "", "BMP180 I2C address (decimal or 0x hex)")
	flagBME280 := fs.String("bme280-address", "", "BME280 I2C address (decimal or 0x hex)")
	flagADC := fs.String("adc-address", "", "ADS1115 I2C address (decimal or 0x hex)")
	flagADCChannel := fs.Int("adc-channel", -1, "ADS1115 channel wired to the air quality sensor")
	flagDHT := fs.String("dht-device", "", "IIO sysfs directory of the DHT sensor")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagRadioType := fs.String("radio-type", "", "radio type: networkmanager|none")
	flagSSID := fs.String("wifi-ssid", "", "Wi-Fi SSID")
	flagWiFiIface := fs.String("wifi-interface", "", "Wi-Fi network interface")
	flagURL := fs.String("thingspeak-url", "", "ThingSpeak update URL")
	flagTimeout := fs.Int("thingspeak-timeout-ms", -1, "Upload timeout in ms (0 = none)")
	flagInterval := fs.Int("interval", -1, "Upload interval in seconds")
	flagOutputs := fs.String("outputs", "", "Comma-separated mirror outputs (console,mqtt,influxdb)")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTTopic := fs.String("mqtt-topic", "", "MQTT state topic")
	flagLogLevel := fs.String("log-level", "", "debug|info|warn|error")
	flagLogFormat := fs.String("log-format", "", "text|json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read env file: %w", err)
		}
	}

	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if *flagI2CBus != "" {
		cfg.I2CBus = *flagI2CBus
	}
	for _, a := range []struct {
		val  string
		name string
		dst  *int
	}{
		{*flagBMP180, "bmp180-address", &cfg.BMP180Address},
		{*flagBME280, "bme280-address", &cfg.BME280Address},
		{*flagADC, "adc-address", &cfg.ADCAddress},
	} {
		if a.val == "" {
			continue
		}
		v, err := parseIntOrHex(a.val)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", a.name, err)
		}
		*a.dst = v
	}
	if *flagADCChannel != -1 {
		cfg.ADCChannel = *flagADCChannel
	}
	if *flagDHT != "" {
		cfg.DHTDevice = *flagDHT
	}
	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagRadioType != "" {
		cfg.RadioType = *flagRadioType
	}
	if *flagSSID != "" {
		cfg.WiFi.SSID = *flagSSID
	}
	if *flagWiFiIface != "" {
		cfg.WiFi.Interface = *flagWiFiIface
	}
	if *flagURL != "" {
		cfg.ThingSpeak.URL = *flagURL
	}
	if *flagTimeout != -1 {
		cfg.ThingSpeak.TimeoutMs = *flagTimeout
	}
	if *flagInterval != -1 {
		cfg.UploadIntervalSeconds = *flagInterval
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, existingOutput(cfg.Outputs, p))
		}
		cfg.Outputs = outs
	}
	// map mqtt flags into every mqtt output
	if *flagMQTTServer != "" || *flagMQTTTopic != "" {
		for i := range cfg.Outputs {
			if strings.ToLower(cfg.Outputs[i].Type) != OutputMQTT {
				continue
			}
			if cfg.Outputs[i].MQTT == nil {
				cfg.Outputs[i].MQTT = &MQTTConfig{}
			}
			if *flagMQTTServer != "" {
				cfg.Outputs[i].MQTT.Server = *flagMQTTServer
			}
			if *flagMQTTTopic != "" {
				cfg.Outputs[i].MQTT.StateTopic = *flagMQTTTopic
			}
		}
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	if *flagLogFormat != "" {
		cfg.LogFormat = *flagLogFormat
	}
	// outputs may only exist once the flags are applied
	applyOutputSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays secrets that should not live in the JSON file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("WIFI_SSID")); v != "" {
		cfg.WiFi.SSID = v
	}
	if v := os.Getenv("WIFI_PASSWORD"); v != "" {
		cfg.WiFi.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("THINGSPEAK_API_KEY")); v != "" {
		cfg.ThingSpeak.APIKey = v
	}
}

// applyOutputSecrets fills output credentials from the environment.
func applyOutputSecrets(cfg *Config) {
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		for i := range cfg.Outputs {
			if cfg.Outputs[i].MQTT != nil {
				cfg.Outputs[i].MQTT.Password = v
			}
		}
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		for i := range cfg.Outputs {
			if cfg.Outputs[i].InfluxDB != nil {
				cfg.Outputs[i].InfluxDB.Token = v
			}
		}
	}
}

// existingOutput keeps the settings of an output already present in the
// file config when the flag selects it by type.
func existingOutput(outs []OutputConfig, typ string) OutputConfig {
	for _, o := range outs {
		if strings.EqualFold(o.Type, typ) {
			return o
		}
	}
	return OutputConfig{Type: typ}
}

func (c Config) Validate() error {
	if c.UploadIntervalSeconds <= 0 {
		return errors.New("upload interval must be > 0")
	}
	if c.ThingSpeak.APIKey == "" {
		return errors.New("thingspeak api key is required (THINGSPEAK_API_KEY)")
	}
	if c.ThingSpeak.TimeoutMs < 0 {
		return errors.New("thingspeak timeout must be >= 0")
	}
	switch c.SensorType {
	case SensorReal, SensorSimulation:
	default:
		return fmt.Errorf("invalid sensor type %q (allowed: real, simulation)", c.SensorType)
	}
	switch c.RadioType {
	case RadioNetworkManager:
		if c.WiFi.SSID == "" {
			return errors.New("wifi ssid is required (WIFI_SSID)")
		}
		if c.WiFi.Interface == "" {
			return errors.New("wifi interface is required")
		}
	case RadioNone:
	default:
		return fmt.Errorf("invalid radio type %q (allowed: networkmanager, none)", c.RadioType)
	}
	if c.ADCChannel < 0 || c.ADCChannel > 3 {
		return fmt.Errorf("invalid adc channel %d", c.ADCChannel)
	}
	if c.ADCSampleRate <= 0 {
		return errors.New("adc sample rate must be > 0")
	}
	for i, o := range c.Outputs {
		switch strings.ToLower(o.Type) {
		case OutputConsole:
		case OutputMQTT:
			if o.MQTT == nil || o.MQTT.Server == "" {
				return fmt.Errorf("output %d: mqtt server is required", i)
			}
		case OutputInfluxDB:
			ic := o.InfluxDB
			if ic == nil || ic.URL == "" || ic.Token == "" || ic.Org == "" || ic.Bucket == "" {
				return fmt.Errorf("output %d: influxdb url, token, org and bucket are required", i)
			}
		default:
			return fmt.Errorf("output %d: unknown type %q", i, o.Type)
		}
	}
	return nil
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
