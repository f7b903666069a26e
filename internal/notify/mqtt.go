package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout = 10 * time.Second
	disconnectQuiesce     = 250 // milliseconds
)

var ErrNotConnected = errors.New("mqtt not connected")

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retained bool
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// MQTT publishes each notification as a JSON Payload.
type MQTT struct {
	cfg    MQTTConfig
	client publisher
}

// NewMQTT connects to cfg.Broker. The connection reconnects on its own
// after the first success.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "iniguard/events"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "iniguard"
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", cfg.QoS)
	}
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)

	c := pahomqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout after %v", cfg.Broker, defaultConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return &MQTT{cfg: cfg, client: c}, nil
}

func (m *MQTT) Notify(ctx context.Context, title, message string) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	b, err := json.Marshal(Payload{Title: title, Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	tok := m.client.Publish(m.cfg.Topic, m.cfg.QoS, m.cfg.Retained, b)
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesce)
	}
	return nil
}
