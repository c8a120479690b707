package live

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Envelope is a frame addressed to one user's sessions, or to every session
// when To is zero.
type Envelope struct {
	To    uint64          `json:"to"`
	Frame json.RawMessage `json:"frame"`
}

// Broker fans envelopes out to every hub instance, the publishing one
// included. Without a broker a hub delivers in-process.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks, calling deliver for each envelope, until ctx is done.
	Subscribe(ctx context.Context, deliver func(Envelope)) error
}

// DefaultChannel is the pub/sub channel used by RedisBroker.
const DefaultChannel = "live:events"

// RedisBroker uses Redis pub/sub as the shared broadcast medium.
type RedisBroker struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
	ready   chan struct{}
}

func NewRedisBroker(client *redis.Client, log *slog.Logger) *RedisBroker {
	return &RedisBroker{client: client, channel: DefaultChannel, log: log, ready: make(chan struct{})}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Ready is closed once the subscription is confirmed by Redis.
func (b *RedisBroker) Ready() <-chan struct{} { return b.ready }

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	close(b.ready)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("dropping malformed live envelope", "err", err)
				continue
			}
			deliver(env)
		}
	}
}
