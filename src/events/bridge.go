package events

import (
	"context"
	"encoding/json"
	"time"

	"trading-backbone/src/logger"
	"trading-backbone/src/models"

	"github.com/redis/go-redis/v9"
)

// -----------------------------------------------------------------------------
// Channels
// -----------------------------------------------------------------------------

const (
	channelOrderUpdates    = "order_updates"
	channelPositionUpdates = "position_updates"
	channelTradeAlerts     = "trade_alerts"
	channelSystemNotices   = "system_notifications"
)

// Reconnect backoff bounds for the pub/sub receive loop.
const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// -----------------------------------------------------------------------------
// Sink
// -----------------------------------------------------------------------------

// Sink is the registry surface the bridge fans events into.
type Sink interface {
	SendToSubject(subject string, payload interface{})
	BroadcastAll(payload interface{})
}

// -----------------------------------------------------------------------------
// Bridge
// -----------------------------------------------------------------------------

// Bridge subscribes to platform event channels on Redis and relays them to
// websocket consumers. Per-subject channels carry a subject field in their
// payload; system notifications go to everyone.
type Bridge struct {
	client *redis.Client
	sink   Sink
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

// envelope is the published message shape. Subject routes per-user events;
// the rest of the payload is forwarded untouched.
type envelope struct {
	Subject string          `json:"user_id"`
	Data    json.RawMessage `json:"data"`
}

// -----------------------------------------------------------------------------

func NewBridge(cfg models.MEventsConfig, sink Sink, log *logger.Logger) *Bridge {
	return &Bridge{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		sink:   sink,
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// Run consumes events until ctx is cancelled. Subscription failures are
// retried with capped backoff; the bridge never takes the process down.
func (b *Bridge) Run(ctx context.Context) {
	backoff := reconnectBase

	for {
		if ctx.Err() != nil {
			return
		}

		err := b.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		b.logger.Warning("Event stream lost (%v), reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// -----------------------------------------------------------------------------

func (b *Bridge) consume(ctx context.Context) error {
	sub := b.client.Subscribe(ctx,
		channelOrderUpdates,
		channelPositionUpdates,
		channelTradeAlerts,
		channelSystemNotices,
	)
	defer sub.Close()

	// Fail fast if the broker is unreachable.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	b.logger.Info("Event bridge connected to %s", b.client.Options().Addr)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return context.Canceled
			}
			b.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

// -----------------------------------------------------------------------------

func (b *Bridge) dispatch(channel string, payload []byte) {
	event := map[string]interface{}{
		"type":      channel,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if channel == channelSystemNotices {
		var data json.RawMessage
		if err := json.Unmarshal(payload, &data); err != nil {
			b.logger.Warning("Malformed %s event dropped: %v", channel, err)
			return
		}
		event["data"] = data
		b.sink.BroadcastAll(event)
		return
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Subject == "" {
		b.logger.Warning("Malformed %s event dropped (missing user_id)", channel)
		return
	}

	event["data"] = env.Data
	b.sink.SendToSubject(env.Subject, event)
}

// -----------------------------------------------------------------------------

func (b *Bridge) Close() error {
	return b.client.Close()
}
