package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/netwatch-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Tests that need a broker live in integration_test.go.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "netwatch-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := Connect(cfg)
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	assert.NoError(t, client.Close())
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	assert.False(t, client.IsConnected())
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}
	assert.ErrorIs(t, client.HealthCheck(context.Background()), ErrNotConnected)
}

func TestHealthCheck_Cancelled(t *testing.T) {
	client := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, client.HealthCheck(ctx), context.Canceled)
}

// =============================================================================
// Validation Tests (no broker needed: checks run before the connection check)
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	client := &Client{cfg: testConfig()}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "netwatch/test", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "netwatch/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "netwatch/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, client.Publish(tt.topic, tt.payload, tt.qos, false), tt.wantErr)
		})
	}
}

func TestPublishJSON_MarshalError(t *testing.T) {
	client := &Client{cfg: testConfig()}

	err := client.PublishJSON("netwatch/test", make(chan int), false)
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestPublishJSON_NotConnected(t *testing.T) {
	client := &Client{cfg: testConfig()}

	err := client.PublishJSON("netwatch/test", map[string]string{"status": "up"}, true)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{cfg: testConfig()}
	handler := func(string, []byte) error { return nil }

	assert.ErrorIs(t, client.Subscribe("", 1, handler), ErrInvalidTopic)
	assert.ErrorIs(t, client.Subscribe("netwatch/#", 3, handler), ErrInvalidQoS)
	assert.ErrorIs(t, client.Subscribe("netwatch/#", 1, nil), ErrSubscribeFailed)
	assert.ErrorIs(t, client.Subscribe("netwatch/#", 1, handler), ErrNotConnected)
	assert.Zero(t, client.SubscriptionCount())
	assert.False(t, client.HasSubscription("netwatch/#"))
}

func TestUnsubscribe_Validation(t *testing.T) {
	client := &Client{cfg: testConfig()}

	assert.ErrorIs(t, client.Unsubscribe(""), ErrInvalidTopic)
	assert.ErrorIs(t, client.Unsubscribe("netwatch/#"), ErrNotConnected)
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "netwatch"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://127.0.0.1:1883", opts.Servers[0].String())
	assert.Equal(t, "netwatch-test", opts.ClientID)
	assert.Equal(t, "netwatch", opts.Username)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.CleanSession)
	assert.Nil(t, opts.TLSConfig)
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "ssl://127.0.0.1:8883", opts.Servers[0].String())
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tlsMinVersion), opts.TLSConfig.MinVersion)
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "netwatch-test")

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, Topics{}.SystemStatus(), opts.WillTopic)
	assert.True(t, opts.WillRetained)
	assert.Contains(t, string(opts.WillPayload), `"reason":"unexpected_disconnect"`)
}

func TestPresencePayload(t *testing.T) {
	var online presence
	require.NoError(t, json.Unmarshal(presencePayload("netwatch-test", presenceOnline, ""), &online))
	assert.Equal(t, presenceOnline, online.Status)
	assert.Equal(t, "netwatch-test", online.ClientID)
	assert.WithinDuration(t, time.Now(), online.Timestamp, 5*time.Second)

	raw := string(presencePayload("netwatch-test", presenceOffline, reasonShutdown))
	assert.True(t, strings.HasPrefix(raw, `{"status":"offline"`))
	assert.Contains(t, raw, `"reason":"graceful_shutdown"`)
	assert.NotContains(t, string(presencePayload("x", presenceOnline, "")), "reason")
}

func TestBrokerURL(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "tcp://127.0.0.1:1883", brokerURL(cfg))

	cfg.Broker.TLS = true
	assert.Equal(t, "ssl://127.0.0.1:1883", brokerURL(cfg))
}

func TestSubscriptionSet(t *testing.T) {
	var set subscriptionSet
	handler := func(string, []byte) error { return nil }

	assert.False(t, set.has("netwatch/command/+"))
	set.remove("netwatch/command/+")

	set.add(subscription{topic: "netwatch/command/+", qos: 1, handler: handler})
	set.add(subscription{topic: "netwatch/event/+", qos: 0, handler: handler})
	set.add(subscription{topic: "netwatch/command/+", qos: 2, handler: handler})

	assert.Equal(t, 2, set.len())
	assert.True(t, set.has("netwatch/command/+"))

	byTopic := map[string]byte{}
	for _, sub := range set.snapshot() {
		byTopic[sub.topic] = sub.qos
	}
	assert.Equal(t, map[string]byte{"netwatch/command/+": 2, "netwatch/event/+": 0}, byTopic)

	set.remove("netwatch/event/+")
	assert.Equal(t, 1, set.len())
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceStatus", topics.DeviceStatus("10.0.0.2"), "netwatch/device/10.0.0.2/status"},
		{"Event", topics.Event(EventStatusChanged), "netwatch/event/status_changed"},
		{"Command", topics.Command("import"), "netwatch/command/import"},
		{"Response", topics.Response("sync"), "netwatch/response/sync"},
		{"SystemStatus", topics.SystemStatus(), "netwatch/system/status"},
		{"AllCommands", topics.AllCommands(), "netwatch/command/+"},
		{"AllDeviceStatuses", topics.AllDeviceStatuses(), "netwatch/device/+/status"},
		{"AllEvents", topics.AllEvents(), "netwatch/event/+"},
		{"AllTopics", topics.AllTopics(), "netwatch/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestCommandAction(t *testing.T) {
	tests := []struct {
		topic  string
		action string
		ok     bool
	}{
		{"netwatch/command/import", "import", true},
		{"netwatch/command/sync", "sync", true},
		{"netwatch/command/", "", false},
		{"netwatch/command/sync/extra", "", false},
		{"netwatch/response/sync", "", false},
		{"other/command/sync", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			action, ok := CommandAction(tt.topic)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.action, action)
		})
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestWrapHandler_PassesTopicAndPayload(t *testing.T) {
	client := &Client{}

	var gotTopic string
	var gotPayload []byte
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic = topic
		gotPayload = payload
		return nil
	})
	wrapped(nil, fakeMessage{topic: "netwatch/command/poll", payload: []byte("{}")})

	assert.Equal(t, "netwatch/command/poll", gotTopic)
	assert.Equal(t, []byte("{}"), gotPayload)
}

func TestWrapHandler_LogsHandlerError(t *testing.T) {
	client := &Client{}
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("boom")
	})
	wrapped(nil, fakeMessage{topic: "netwatch/command/sync"})

	assert.Equal(t, []string{"MQTT handler returned error"}, logger.warns)
	assert.Empty(t, logger.errors)
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	client := &Client{}
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("handler exploded")
	})

	assert.NotPanics(t, func() {
		wrapped(nil, fakeMessage{topic: "netwatch/command/import"})
	})
	assert.Equal(t, []string{"MQTT handler panic recovered"}, logger.errors)
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := &Client{}
	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("ignored")
	})

	assert.NotPanics(t, func() {
		wrapped(nil, fakeMessage{topic: "netwatch/command/sync"})
	})
	assert.IsType(t, noopLogger{}, client.log())
}
