package coord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sovereignlabs/sovereignd/internal/logging"
)

// subscribeBuffer bounds the per-subscriber event queue. Slow consumers
// drop events rather than block publishers; the store remains the record
// of truth.
const subscribeBuffer = 64

// KVStore implements Store on a JetStream key/value bucket. The
// create-only Put maps onto KV Create, which enforces exactly one winning
// writer per key at the server.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore binds to (creating if needed) the named KV bucket.
func NewKVStore(ctx context.Context, nc *nats.Conn, bucket string) (*KVStore, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind KV bucket %s: %w", bucket, err)
	}

	return &KVStore{kv: kv}, nil
}

// Put writes value under key, failing with ErrWriteConflict if any value
// already exists.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.kv.Create(ctx, key, value)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrWriteConflict
		}
		return fmt.Errorf("kv create %s: %w", key, err)
	}
	return nil
}

// Get reads the value under key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// ListKeys returns all keys in the bucket with the given prefix.
func (s *KVStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}

	var keys []string
	for key := range lister.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// EventBus implements Bus on core NATS publish/subscribe.
type EventBus struct {
	nc     *nats.Conn
	logger *logging.Logger
}

// NewEventBus creates a bus over an established NATS connection.
func NewEventBus(nc *nats.Conn, logger *logging.Logger) *EventBus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EventBus{nc: nc, logger: logger}
}

// Publish sends one event on the named channel.
func (b *EventBus) Publish(ctx context.Context, channel string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.nc.Publish(channel, data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Subscribe returns a stream of events on the named channel. Events that
// fail to decode are logged and skipped. The stream closes when ctx is
// cancelled.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	msgCh := make(chan *nats.Msg, subscribeBuffer)
	sub, err := b.nc.ChanSubscribe(channel, msgCh)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan Event, subscribeBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				_ = sub.Unsubscribe()
				return
			case msg := <-msgCh:
				var ev Event
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					b.logger.Warn(ctx, "dropping undecodable event",
						zap.String("channel", channel),
						zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					_ = sub.Unsubscribe()
					return
				}
			}
		}
	}()

	return out, nil
}
