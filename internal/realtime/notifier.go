package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const (
	KindCreated = "created"
	KindPatched = "patched"
	KindDeleted = "deleted"
)

// StoreEvent is a change notification for one row of a store collection.
// Delivery is at-least-once; consumers must deduplicate on (Kind, ID).
type StoreEvent struct {
	Collection string          `json:"collection"`
	Kind       string          `json:"kind"` // created|patched|deleted
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type Notifier interface {
	Publish(ctx context.Context, ev StoreEvent) error
	// Subscribe streams events for the given collections until ctx is done.
	Subscribe(ctx context.Context, collections ...string) (<-chan StoreEvent, error)
}

// RedisNotifier fans store change events out over Redis Pub/Sub, one
// channel per collection ("store:<collection>").
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func channelFor(collection string) string { return "store:" + collection }

func (n *RedisNotifier) Publish(ctx context.Context, ev StoreEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, channelFor(ev.Collection), string(b)).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, collections ...string) (<-chan StoreEvent, error) {
	channels := make([]string, 0, len(collections))
	for _, c := range collections {
		channels = append(channels, channelFor(c))
	}

	pubsub := n.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan StoreEvent, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev StoreEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// NopNotifier discards events. Used in tests and tooling.
type NopNotifier struct{}

func (NopNotifier) Publish(ctx context.Context, ev StoreEvent) error { return nil }

func (NopNotifier) Subscribe(ctx context.Context, collections ...string) (<-chan StoreEvent, error) {
	ch := make(chan StoreEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
