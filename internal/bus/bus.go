// Package bus provides the Redis pub/sub event bus used for
// cross-platform event distribution. Delivery is at-least-once and
// fire-and-forget: publishing never fails upward, it reports how many
// subscribers received the message (0 when the bus is unreachable).
package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/metrics"
	"github.com/netopscore/netops-gateway/internal/tracing"
)

// Well-known channels
const (
	ChannelEventsCorrelated = "events:correlated"
	ChannelAlertsSecurity   = "alerts:security"
	ChannelApprovalRequest  = "approval:request"

	telemetryPrefix = "telemetry:"
)

// TelemetryChannel returns the per-platform telemetry channel name
func TelemetryChannel(platform string) string {
	return telemetryPrefix + platform
}

// Handler processes a decoded message from a subscribed channel
type Handler func(ctx context.Context, channel string, data map[string]interface{}) error

// Bus is a Redis-backed pub/sub bus
type Bus struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	handlers map[string][]Handler
	pubsub   *redis.PubSub

	done chan struct{}
}

// New creates a bus from a Redis URL. Connection is lazy; an unreachable
// Redis degrades publishing to 0 receivers rather than failing startup.
func New(redisURL string, logger *zap.Logger, m *metrics.Metrics) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &Bus{
		client:   redis.NewClient(opts),
		logger:   logger.Named("bus"),
		metrics:  m,
		handlers: make(map[string][]Handler),
		done:     make(chan struct{}),
	}, nil
}

// Ping verifies connectivity to Redis
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Publish sends data as JSON to a channel and returns the number of
// subscribers that received it. Failures are logged and reported as 0.
func (b *Bus) Publish(ctx context.Context, channel string, data interface{}) int64 {
	ctx, span := tracing.BusSpan(ctx, "publish", channel)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("Failed to encode message",
			zap.String("channel", channel),
			zap.Error(err),
		)
		b.recordPublish(channel, false)
		tracing.RecordError(span, err)
		return 0
	}

	receivers, err := b.client.Publish(ctx, channel, string(payload)).Result()
	if err != nil {
		b.logger.Error("Publish failed",
			zap.String("channel", channel),
			zap.Error(err),
		)
		b.recordPublish(channel, false)
		tracing.RecordError(span, err)
		return 0
	}

	b.recordPublish(channel, true)
	tracing.SetSuccess(span)
	return receivers
}

// PublishEvent publishes a correlated network event
func (b *Bus) PublishEvent(ctx context.Context, event interface{}) int64 {
	return b.Publish(ctx, ChannelEventsCorrelated, event)
}

// PublishAlert publishes a security alert
func (b *Bus) PublishAlert(ctx context.Context, alert interface{}) int64 {
	return b.Publish(ctx, ChannelAlertsSecurity, alert)
}

// RequestApproval publishes an approval request envelope
func (b *Bus) RequestApproval(ctx context.Context, data interface{}) int64 {
	return b.Publish(ctx, ChannelApprovalRequest, data)
}

// PublishTelemetry publishes platform telemetry
func (b *Bus) PublishTelemetry(ctx context.Context, platform string, data interface{}) int64 {
	return b.Publish(ctx, TelemetryChannel(platform), data)
}

// Subscribe registers a handler for a channel. Handlers registered
// before Start are subscribed when the listener starts; handlers
// registered after Start are subscribed immediately.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	b.mu.Lock()
	b.handlers[channel] = append(b.handlers[channel], handler)
	ps := b.pubsub
	b.mu.Unlock()

	if ps != nil {
		return ps.Subscribe(ctx, channel)
	}
	return nil
}

// Start opens the pub/sub connection for all registered channels and
// begins dispatching messages to handlers.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	channels := make([]string, 0, len(b.handlers))
	for ch := range b.handlers {
		channels = append(channels, ch)
	}
	b.pubsub = b.client.Subscribe(ctx, channels...)
	b.mu.Unlock()

	go b.listen(ctx)

	b.logger.Info("Bus listener started", zap.Strings("channels", channels))
}

func (b *Bus) listen(ctx context.Context) {
	defer close(b.done)

	msgCh := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			b.dispatch(ctx, msg.Channel, msg.Payload)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, channel, payload string) {
	if b.metrics != nil {
		b.metrics.RecordReceive(channel)
	}

	// Non-JSON payloads are wrapped rather than dropped
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &data); err != nil || data == nil {
		data = map[string]interface{}{"raw": payload}
	}

	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers[channel]))
	copy(handlers, b.handlers[channel])
	b.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(ctx, channel, data); err != nil {
			b.logger.Error("Handler error",
				zap.String("channel", channel),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) recordPublish(channel string, success bool) {
	if b.metrics != nil {
		b.metrics.RecordPublish(channel, success)
	}
}

// Close stops the listener and releases the Redis connection
func (b *Bus) Close() error {
	b.mu.Lock()
	ps := b.pubsub
	b.mu.Unlock()

	if ps != nil {
		if err := ps.Close(); err != nil {
			b.logger.Warn("Failed to close pub/sub", zap.Error(err))
		}
		<-b.done
	}

	return b.client.Close()
}
