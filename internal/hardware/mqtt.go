package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Kunal6688/PestDetect/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS            = 1
	disconnectQuiesce  = 250 // ms
	defaultStaleAfter  = 2 * time.Minute
	sensorTopicPattern = "%s/sensors/+/state"
	relayTopicPattern  = "%s/relays/%s/set"
)

// MQTTOptions configures the broker connection and topic layout.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	StaleAfter  time.Duration
}

// sensorPayload is what field devices publish on <prefix>/sensors/<name>/state.
type sensorPayload struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit,omitempty"`
	Type  string   `json:"type,omitempty"`
}

// relayCommand is published on <prefix>/relays/<id>/set.
type relayCommand struct {
	State     string    `json:"state"` // ON | OFF
	Timestamp time.Time `json:"timestamp"`
}

type cachedMeasurement struct {
	m        Measurement
	received time.Time
}

// MQTT talks to field devices over a broker. Sensor values are pushed by the
// devices and cached; ReadSensor returns the latest fresh value.
type MQTT struct {
	client     mqtt.Client
	prefix     string
	staleAfter time.Duration
	now        func() time.Time
	log        *logger.Logger

	mu     sync.RWMutex
	latest map[string]cachedMeasurement
}

// NewMQTT connects to the broker and subscribes to sensor state topics.
func NewMQTT(opts MQTTOptions, log *logger.Logger) (*MQTT, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetUsername(opts.Username)
	co.SetPassword(opts.Password)
	co.SetAutoReconnect(true)
	co.SetKeepAlive(60 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	m := newMQTT(nil, opts, log)
	co.SetOnConnectHandler(func(c mqtt.Client) {
		// resubscribe after every reconnect
		if err := m.subscribe(); err != nil {
			m.log.Errorw("mqtt_subscribe_failed", "err", err)
			return
		}
		m.log.Infow("mqtt_connected", "broker", opts.Broker)
	})
	co.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		m.log.Warnw("mqtt_connection_lost", "err", err)
	})

	m.client = mqtt.NewClient(co)
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", opts.Broker, token.Error())
	}
	return m, nil
}

func newMQTT(client mqtt.Client, opts MQTTOptions, log *logger.Logger) *MQTT {
	if log == nil {
		log = logger.Nop()
	}
	stale := opts.StaleAfter
	if stale <= 0 {
		stale = defaultStaleAfter
	}
	return &MQTT{
		client:     client,
		prefix:     strings.TrimSuffix(opts.TopicPrefix, "/"),
		staleAfter: stale,
		now:        time.Now,
		log:        log,
		latest:     make(map[string]cachedMeasurement),
	}
}

func (m *MQTT) subscribe() error {
	topic := fmt.Sprintf(sensorTopicPattern, m.prefix)
	token := m.client.Subscribe(topic, mqttQoS, m.handleSensorMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// sensorName extracts <name> from <prefix>/sensors/<name>/state.
func (m *MQTT) sensorName(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, m.prefix+"/sensors/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/state")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func (m *MQTT) handleSensorMessage(_ mqtt.Client, msg mqtt.Message) {
	name, ok := m.sensorName(msg.Topic())
	if !ok {
		m.log.Debugw("mqtt_unexpected_topic", "topic", msg.Topic())
		return
	}
	var p sensorPayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		m.log.Warnw("mqtt_bad_sensor_payload", "sensor", name, "err", err)
		return
	}
	if p.Value == nil {
		m.log.Warnw("mqtt_sensor_payload_without_value", "sensor", name)
		return
	}

	m.mu.Lock()
	m.latest[name] = cachedMeasurement{
		m:        Measurement{Value: *p.Value, Unit: p.Unit, Type: p.Type},
		received: m.now(),
	}
	m.mu.Unlock()
}

func (m *MQTT) ReadSensor(ctx context.Context, name string) (Measurement, error) {
	if err := ctx.Err(); err != nil {
		return Measurement{}, err
	}
	m.mu.RLock()
	c, ok := m.latest[name]
	m.mu.RUnlock()
	if !ok {
		return Measurement{}, fmt.Errorf("sensor %s: %w", name, ErrNoReading)
	}
	if age := m.now().Sub(c.received); age > m.staleAfter {
		return Measurement{}, fmt.Errorf("sensor %s last seen %s ago: %w", name, age.Round(time.Second), ErrStaleReading)
	}
	return c.m, nil
}

func (m *MQTT) SetRelay(ctx context.Context, id string, on bool) error {
	cmd := relayCommand{State: "OFF", Timestamp: m.now().UTC()}
	if on {
		cmd.State = "ON"
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal relay command: %w", err)
	}

	topic := fmt.Sprintf(relayTopicPattern, m.prefix, id)
	token := m.client.Publish(topic, mqttQoS, false, payload)
	select {
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesce)
	}
}
