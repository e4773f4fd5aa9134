package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus(t *testing.T) (*Bus, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	b, err := New("redis://"+s.Addr(), zap.NewNop(), nil)
	require.NoError(t, err)

	return b, s
}

func TestNewInvalidURL(t *testing.T) {
	_, err := New("not-a-redis-url", zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestTelemetryChannel(t *testing.T) {
	assert.Equal(t, "telemetry:meraki", TelemetryChannel("meraki"))
	assert.Equal(t, "telemetry:thousandeyes", TelemetryChannel("thousandeyes"))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b, _ := newTestBus(t)
	defer b.Close()

	receivers := b.Publish(context.Background(), ChannelEventsCorrelated, map[string]interface{}{
		"event_type": "ap_offline",
	})
	assert.Equal(t, int64(0), receivers)
}

func TestPublishUnreachableRedis(t *testing.T) {
	b, err := New("redis://127.0.0.1:1", zap.NewNop(), nil)
	require.NoError(t, err)
	defer b.Close()

	receivers := b.Publish(context.Background(), ChannelAlertsSecurity, map[string]interface{}{
		"alert": "lateral_movement",
	})
	assert.Equal(t, int64(0), receivers)
}

func TestSubscribeAndDispatch(t *testing.T) {
	b, _ := newTestBus(t)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan map[string]interface{}, 10)
	err := b.Subscribe(ctx, ChannelEventsCorrelated, func(_ context.Context, channel string, data map[string]interface{}) error {
		assert.Equal(t, ChannelEventsCorrelated, channel)
		received <- data
		return nil
	})
	require.NoError(t, err)

	b.Start(ctx)

	// Subscription setup is asynchronous; retry until a receiver is counted
	require.Eventually(t, func() bool {
		return b.PublishEvent(ctx, map[string]interface{}{
			"event_id":        "evt-1",
			"source_platform": "meraki",
			"event_type":      "ap_offline",
		}) > 0
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case data := <-received:
		assert.Equal(t, "meraki", data["source_platform"])
		assert.Equal(t, "ap_offline", data["event_type"])
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for dispatched message")
	}
}

func TestNonJSONPayloadWrapped(t *testing.T) {
	b, s := newTestBus(t)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan map[string]interface{}, 10)
	require.NoError(t, b.Subscribe(ctx, ChannelAlertsSecurity, func(_ context.Context, _ string, data map[string]interface{}) error {
		received <- data
		return nil
	}))

	b.Start(ctx)

	require.Eventually(t, func() bool {
		return s.Publish(ChannelAlertsSecurity, "plain text alert") > 0
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case data := <-received:
		assert.Equal(t, "plain text alert", data["raw"])
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for dispatched message")
	}
}

func TestHandlerErrorDoesNotBlockOthers(t *testing.T) {
	b, _ := newTestBus(t)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var secondCalled bool

	require.NoError(t, b.Subscribe(ctx, ChannelApprovalRequest, func(_ context.Context, _ string, _ map[string]interface{}) error {
		return assert.AnError
	}))
	require.NoError(t, b.Subscribe(ctx, ChannelApprovalRequest, func(_ context.Context, _ string, _ map[string]interface{}) error {
		mu.Lock()
		secondCalled = true
		mu.Unlock()
		return nil
	}))

	b.Start(ctx)

	require.Eventually(t, func() bool {
		return b.RequestApproval(ctx, map[string]interface{}{"tool_name": "ise_quarantine_endpoint"}) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return secondCalled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeAfterStart(t *testing.T) {
	b, _ := newTestBus(t)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx)

	received := make(chan map[string]interface{}, 10)
	require.NoError(t, b.Subscribe(ctx, TelemetryChannel("xdr"), func(_ context.Context, _ string, data map[string]interface{}) error {
		received <- data
		return nil
	}))

	require.Eventually(t, func() bool {
		return b.PublishTelemetry(ctx, "xdr", map[string]interface{}{"metric": "threat_count"}) > 0
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case data := <-received:
		assert.Equal(t, "threat_count", data["metric"])
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for telemetry message")
	}
}

func TestPing(t *testing.T) {
	b, s := newTestBus(t)
	defer b.Close()

	assert.NoError(t, b.Ping(context.Background()))

	s.Close()
	assert.Error(t, b.Ping(context.Background()))
}
