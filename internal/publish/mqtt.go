package publish

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nmeafix/internal/nmea"
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retain   bool

	// Timeout bounds connect and publish acknowledgement waits.
	Timeout time.Duration
}

// MQTT publishes each record as a JSON message on one topic.
type MQTT struct {
	client  mqtt.Client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
}

func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false)
	return newMQTT(cfg, mqtt.NewClient(opts))
}

func newMQTT(cfg MQTTConfig, client mqtt.Client) (*MQTT, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt topic is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	tok := client.Connect()
	if !tok.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %s", cfg.Broker, cfg.Timeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}

	return &MQTT{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: cfg.Timeout,
	}, nil
}

func (m *MQTT) Publish(rec nmea.Record) error {
	payload, err := Encode(rec)
	if err != nil {
		return err
	}
	tok := m.client.Publish(m.topic, m.qos, m.retain, payload)
	if !tok.WaitTimeout(m.timeout) {
		return fmt.Errorf("mqtt publish %s: timed out", m.topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", m.topic, err)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
