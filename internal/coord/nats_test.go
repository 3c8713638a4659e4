package coord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1, // Random port
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
		JetStream:      true,
		StoreDir:       t.TempDir(),
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func connect(t *testing.T, server *natsserver.Server) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestKVStore_PutGet(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	ctx := context.Background()
	store, err := NewKVStore(ctx, nc, "test_results")
	require.NoError(t, err)

	key := ResultKey("task-1")
	require.NoError(t, store.Put(ctx, key, []byte(`{"status":"completed"}`)))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"completed"}`, string(got))
}

func TestKVStore_GetMissing(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	ctx := context.Background()
	store, err := NewKVStore(ctx, nc, "test_results")
	require.NoError(t, err)

	_, err = store.Get(ctx, ResultKey("never-written"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKVStore_PutConflict(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	ctx := context.Background()
	store, err := NewKVStore(ctx, nc, "test_results")
	require.NoError(t, err)

	key := ResultKey("task-1")
	require.NoError(t, store.Put(ctx, key, []byte("first")))

	err = store.Put(ctx, key, []byte("second"))
	assert.ErrorIs(t, err, ErrWriteConflict)

	// First write remains intact.
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestKVStore_ConcurrentWritersOneWinner(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	ctx := context.Background()
	store, err := NewKVStore(ctx, nc, "test_results")
	require.NoError(t, err)

	const writers = 10
	key := ResultKey("contested")

	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = store.Put(ctx, key, []byte(fmt.Sprintf("writer-%d", i)))
		}()
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrWriteConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one writer must win")
	assert.Equal(t, writers-1, conflicts)
}

func TestKVStore_ListKeys(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	ctx := context.Background()
	store, err := NewKVStore(ctx, nc, "test_results")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, ResultKey("a"), []byte("1")))
	require.NoError(t, store.Put(ctx, ResultKey("b"), []byte("2")))
	require.NoError(t, store.Put(ctx, MetricFunctionalValue, []byte("3.5")))

	keys, err := store.ListKeys(ctx, ResultKeyPrefix)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ResultKey("a"), ResultKey("b")}, keys)
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	bus := NewEventBus(nc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, "test.events")
	require.NoError(t, err)

	sent := NewEvent(EventValidated, "task-1", map[string]string{"decision": "accept"})
	require.NoError(t, bus.Publish(ctx, "test.events", sent))

	select {
	case got := <-events:
		assert.Equal(t, EventValidated, got.Type)
		assert.Equal(t, "task-1", got.TaskID)
		assert.JSONEq(t, `{"decision":"accept"}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestEventBus_SubscribeClosesOnCancel(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	bus := NewEventBus(nc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx, "test.events")
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open, "channel must close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close")
	}
}

func TestEventBus_DropsUndecodableEvents(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	bus := NewEventBus(nc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, "test.events")
	require.NoError(t, err)

	require.NoError(t, nc.Publish("test.events", []byte("not json")))
	require.NoError(t, bus.Publish(ctx, "test.events", NewEvent(EventTaskDone, "task-2", nil)))

	select {
	case got := <-events:
		assert.Equal(t, EventTaskDone, got.Type, "garbage must be skipped, not surfaced")
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}
