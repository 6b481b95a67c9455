package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/samajesteduroyaume/devman/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "devman-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test when no broker is listening locally.
// Connection-level tests need a real Mosquitto at 127.0.0.1:1883.
func requireBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 250*time.Millisecond)
	if err != nil {
		t.Skip("no MQTT broker at 127.0.0.1:1883")
	}
	conn.Close() //nolint:errcheck // Probe connection
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	requireBroker(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestClose(t *testing.T) {
	requireBroker(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() = true on zero client, want false")
	}
}

// =============================================================================
// Validation Tests (no broker required)
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "devman/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "devman/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "devman/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("devman/test", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe() qos 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("devman/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("devman/test", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("devman/test"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	client := &Client{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := &Client{}
	if got := client.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", got)
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	client := &Client{}
	if client.HasSubscription("devman/events/#") {
		t.Error("HasSubscription() = true on zero client, want false")
	}
}

// =============================================================================
// Topic Builders
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		build    func() string
		expected string
	}{
		{
			name:     "Event",
			build:    func() string { return Topics{}.Event("added", "pci", "00:02.0") },
			expected: "devman/events/added/pci/00:02.0",
		},
		{
			name:     "Event removed",
			build:    func() string { return Topics{}.Event("removed", "usb", "1-2") },
			expected: "devman/events/removed/usb/1-2",
		},
		{
			name:     "DeviceState",
			build:    func() string { return Topics{}.DeviceState("pci", "00:02.0") },
			expected: "devman/devices/pci/00:02.0/state",
		},
		{
			name:     "SystemStatus",
			build:    func() string { return Topics{}.SystemStatus() },
			expected: "devman/system/status",
		},
		{
			name:     "SystemShutdown",
			build:    func() string { return Topics{}.SystemShutdown() },
			expected: "devman/system/shutdown",
		},
		{
			name:     "AllEvents",
			build:    func() string { return Topics{}.AllEvents() },
			expected: "devman/events/#",
		},
		{
			name:     "EventsOfKind",
			build:    func() string { return Topics{}.EventsOfKind("added") },
			expected: "devman/events/added/+/+",
		},
		{
			name:     "AllDeviceStates",
			build:    func() string { return Topics{}.AllDeviceStates() },
			expected: "devman/devices/+/+/state",
		},
		{
			name:     "AllTopics",
			build:    func() string { return Topics{}.AllTopics() },
			expected: "devman/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build(); got != tt.expected {
				t.Errorf("topic = %q, want %q", got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Roundtrip Tests (broker required)
// =============================================================================

func TestPublishSubscribeRoundtrip(t *testing.T) {
	requireBroker(t)

	cfg := testConfig()
	cfg.Broker.ClientID = "devman-test-pub"
	pub, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	cfg.Broker.ClientID = "devman-test-sub"
	sub, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	topic := "devman/test/roundtrip"
	received := make(chan []byte, 1)

	err = sub.Subscribe(topic, 1, func(_ string, payload []byte) error {
		select {
		case received <- payload:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	want := []byte(`{"kind":"added","id":"usb/1-2"}`)
	if err := pub.Publish(topic, want, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(want) {
			t.Errorf("received %s, want %s", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestWildcardSubscription(t *testing.T) {
	requireBroker(t)

	cfg := testConfig()
	cfg.Broker.ClientID = "devman-test-wild"
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var mu sync.Mutex
	seen := make(map[string]bool)

	err = client.Subscribe("devman/test/+/state", 1, func(topic string, _ []byte) error {
		mu.Lock()
		seen[topic] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	topics := []string{
		"devman/test/device1/state",
		"devman/test/device2/state",
		"devman/test/device3/state",
	}
	for _, topic := range topics {
		if err := client.Publish(topic, []byte("{}"), 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == len(topics) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("received %d topics, want %d", n, len(topics))
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestOnConnectCallback(t *testing.T) {
	requireBroker(t)

	connected := make(chan struct{}, 1)

	cfg := testConfig()
	cfg.Broker.ClientID = fmt.Sprintf("devman-test-cb-%d", time.Now().UnixNano())
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.SetOnConnect(func() {
		select {
		case connected <- struct{}{}:
		default:
		}
	})

	// The initial connect may have fired before the callback was set;
	// a manual health check confirms we are connected either way.
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
