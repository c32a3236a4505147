package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/envnode/pkg/config"
	"github.com/ericogr/envnode/pkg/output"
	"github.com/ericogr/envnode/pkg/sensor"
)

const (
	DefaultStateTopic = "envnode/state"
	publishTimeout    = 5 * time.Second
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	stateClassMeasurement  = "measurement"
)

// field describes one Record value for Home Assistant discovery.
type field struct {
	key         string // JSON key in sensor.Record
	name        string
	unit        string
	deviceClass string
}

var fields = []field{
	{"avg_temperature_c", "Temperature", "°C", "temperature"},
	{"avg_pressure_hpa", "Pressure", "hPa", "pressure"},
	{"humidity_pct", "Humidity", "%", "humidity"},
	{"air_quality_v", "Air quality", "V", "voltage"},
	{"heat_index_c", "Heat index", "°C", "temperature"},
}

type MQTTOutput struct {
	client     mqtt.Client
	stateTopic string
	logger     *slog.Logger
}

func NewMQTT(cfg config.MQTTConfig, logger *slog.Logger) (output.Output, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	st := cfg.StateTopic
	if st == "" {
		st = DefaultStateTopic
	}
	m := &MQTTOutput{client: client, stateTopic: st, logger: logger}

	// Publish Home Assistant discovery payloads if requested
	if cfg.DiscoveryTopic != "" {
		for _, f := range fields {
			payload := discoveryPayload(cfg, f, st)
			if err := m.publishJSON(discoveryTopic(cfg.DiscoveryTopic, f), true, payload); err != nil {
				logger.Warn("mqtt discovery publish error", "field", f.key, "error", err)
			}
		}
	}

	return m, nil
}

func (m *MQTTOutput) Publish(r sensor.Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return m.PublishRaw(m.stateTopic, b, false)
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for discovery messages.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	return token.Error()
}

func (m *MQTTOutput) publishJSON(topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.PublishRaw(topic, b, retained)
}

// discoveryTopic expands a "%s" formatter with the field key, or appends the
// key as a path segment.
func discoveryTopic(base string, f field) string {
	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, f.key)
	}
	return strings.TrimSuffix(base, "/") + "/" + f.key + "/config"
}

func discoveryName(cfg config.MQTTConfig, f field) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = "Envnode"
	}
	return fmt.Sprintf("%s %s", name, f.name)
}

func discoveryUniqueID(cfg config.MQTTConfig, f field) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid == "" {
		return ""
	}
	return fmt.Sprintf("%s_%s", uid, f.key)
}

func discoveryPayload(cfg config.MQTTConfig, f field, stateTopic string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                discoveryName(cfg, f),
		keyStateTopic:          stateTopic,
		keyUnitOfMeasurement:   f.unit,
		keyDeviceClass:         f.deviceClass,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       fmt.Sprintf("{{ value_json.%s }}", f.key),
		keyJSONAttributesTopic: stateTopic,
	}
	if uid := discoveryUniqueID(cfg, f); uid != "" {
		payload[keyUniqueID] = uid
	}
	return payload
}
