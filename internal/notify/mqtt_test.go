package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/config"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeToken 立即完成的令牌
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// pendingToken 永不完成的令牌
type pendingToken struct{}

func (pendingToken) Wait() bool                     { return false }
func (pendingToken) WaitTimeout(time.Duration) bool { return false }
func (pendingToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (pendingToken) Error() error                   { return nil }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient 记录调用的 mqtt.Client
type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	connectCalls int
	publishErr   error
	publishHang  bool
	published    []published
	disconnected bool
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
	if c.connectErr == nil {
		c.connected = true
	}
	return newFakeToken(c.connectErr)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishHang {
		return pendingToken{}
	}
	if c.publishErr == nil {
		c.published = append(c.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	}
	return newFakeToken(c.publishErr)
}

func (c *fakeClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return newFakeToken(nil)
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return newFakeToken(nil)
}

func (c *fakeClient) Unsubscribe(...string) mqtt.Token { return newFakeToken(nil) }

func (c *fakeClient) AddRoute(string, mqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func testMQTTConfig() *config.MQTTConfig {
	return &config.MQTTConfig{
		Broker:         "localhost",
		Port:           1883,
		QoS:            1,
		TopicPrefix:    "firmware/update",
		PublishTimeout: 200 * time.Millisecond,
		KeepaliveCheck: time.Second,
	}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "firmware/update/esp32", Topic("firmware/update", "esp32", ""))
	assert.Equal(t, "firmware/update/esp32/gateway", Topic("firmware/update/", "esp32", "gateway"))
}

func TestNotificationEncode(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload, err := (&Notification{
		DeviceType: "esp32",
		NodeType:   "gateway",
		Version:    "2.3",
		URL:        "https://example.com/fw",
		Timestamp:  ts,
	}).Encode()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "esp32", decoded["device_type"])
	assert.Equal(t, "gateway", decoded["node_type"])
	assert.Equal(t, "2.3", decoded["version"])
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded["timestamp"])
	assert.NotContains(t, decoded, "checksum")
}

func TestPublish_Connected(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newPublisherWithClient(client, testMQTTConfig(), zap.NewNop())

	err := p.Publish(context.Background(), "firmware/update/esp32", []byte(`{"v":1}`))
	require.NoError(t, err)

	require.Len(t, client.published, 1)
	assert.Equal(t, "firmware/update/esp32", client.published[0].topic)
	assert.Equal(t, byte(1), client.published[0].qos)
	assert.Equal(t, 0, client.connectCalls)
}

func TestPublish_ReconnectsWhenDisconnected(t *testing.T) {
	client := &fakeClient{}
	p := newPublisherWithClient(client, testMQTTConfig(), zap.NewNop())

	err := p.Publish(context.Background(), "firmware/update/esp32", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, client.connectCalls)
	assert.Len(t, client.published, 1)
}

func TestPublish_ReconnectFails(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("connection refused")}
	p := newPublisherWithClient(client, testMQTTConfig(), zap.NewNop())

	err := p.Publish(context.Background(), "firmware/update/esp32", []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 1, client.connectCalls)
	assert.Empty(t, client.published)
}

func TestPublish_BrokerError(t *testing.T) {
	client := &fakeClient{connected: true, publishErr: errors.New("not authorized")}
	p := newPublisherWithClient(client, testMQTTConfig(), zap.NewNop())

	err := p.Publish(context.Background(), "firmware/update/esp32", []byte("x"))
	assert.Error(t, err)
}

func TestPublish_Timeout(t *testing.T) {
	client := &fakeClient{connected: true, publishHang: true}
	p := newPublisherWithClient(client, testMQTTConfig(), zap.NewNop())

	err := p.Publish(context.Background(), "firmware/update/esp32", []byte("x"))
	assert.ErrorIs(t, err, ErrPublishTimeout)
}

func TestStartStop(t *testing.T) {
	client := &fakeClient{}
	p := newPublisherWithClient(client, testMQTTConfig(), zap.NewNop())

	require.NoError(t, p.Start())
	assert.True(t, p.IsConnected())

	// 重复启动不会再次连接或重复调度
	require.NoError(t, p.Start())
	assert.Equal(t, 1, client.connectCalls)
	assert.Len(t, p.cron.Entries(), 1)

	// 模拟断线后由维护任务重连
	client.Disconnect(0)
	p.maintain()
	assert.True(t, p.IsConnected())
	assert.Equal(t, 2, client.connectCalls)

	p.Stop()
	assert.True(t, client.disconnected)
	assert.False(t, p.IsConnected())
}

func TestStart_InitialConnectFailureIsNotFatal(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("dial tcp: refused")}
	p := newPublisherWithClient(client, testMQTTConfig(), zap.NewNop())

	require.NoError(t, p.Start())
	defer p.Stop()
	assert.False(t, p.IsConnected())
}
