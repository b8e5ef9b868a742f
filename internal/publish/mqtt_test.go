package publish

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmeafix/internal/nmea"
)

type fakeToken struct {
	mqtt.Token
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	connect      *fakeToken
	publishTok   *fakeToken
	msgs         []published
	disconnected bool
}

func (c *fakeClient) Connect() mqtt.Token {
	if c.connect == nil {
		return &fakeToken{}
	}
	return c.connect
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, published{topic: topic, qos: qos, retain: retained, payload: payload.([]byte)})
	if c.publishTok == nil {
		return &fakeToken{}
	}
	return c.publishTok
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestMQTT_PublishesJSON(t *testing.T) {
	fc := &fakeClient{}
	m, err := newMQTT(MQTTConfig{Broker: "tcp://x:1883", Topic: "nmeafix/records", QoS: 1, Retain: true}, fc)
	require.NoError(t, err)

	require.NoError(t, m.Publish(nmea.Record{UTC: "123519", Date: "230394"}))
	require.Len(t, fc.msgs, 1)
	msg := fc.msgs[0]
	assert.Equal(t, "nmeafix/records", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retain)
	assert.JSONEq(t, `{"utc":"123519","type":[],"date":"230394"}`, string(msg.payload))

	require.NoError(t, m.Close())
	assert.True(t, fc.disconnected)
}

func TestMQTT_ConnectFailure(t *testing.T) {
	refused := errors.New("connection refused")
	_, err := newMQTT(MQTTConfig{Broker: "tcp://x:1883", Topic: "t"}, &fakeClient{connect: &fakeToken{err: refused}})
	assert.ErrorIs(t, err, refused)

	_, err = newMQTT(MQTTConfig{Broker: "tcp://x:1883", Topic: "t"}, &fakeClient{connect: &fakeToken{timeout: true}})
	assert.ErrorContains(t, err, "timed out")
}

func TestMQTT_Validation(t *testing.T) {
	_, err := newMQTT(MQTTConfig{Broker: "tcp://x:1883"}, &fakeClient{})
	assert.EqualError(t, err, "mqtt topic is required")
	_, err = newMQTT(MQTTConfig{Broker: "tcp://x:1883", Topic: "t", QoS: 3}, &fakeClient{})
	assert.EqualError(t, err, "mqtt qos must be 0, 1 or 2")
	_, err = NewMQTT(MQTTConfig{Topic: "t"})
	assert.EqualError(t, err, "mqtt broker is required")
}

func TestMQTT_PublishError(t *testing.T) {
	denied := errors.New("not authorized")
	fc := &fakeClient{publishTok: &fakeToken{err: denied}}
	m, err := newMQTT(MQTTConfig{Broker: "tcp://x:1883", Topic: "t"}, fc)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Publish(nmea.Record{UTC: "000000"}), denied)
}
