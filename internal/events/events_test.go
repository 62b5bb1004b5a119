package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewEventHasIdentity(t *testing.T) {
	a := New(TypeCounterUpdated, "increment")
	b := New(TypeCounterUpdated, "increment")
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.False(t, a.OccurredAt.IsZero())

	a.Counter = "42"
	payload, err := a.Encode()
	require.NoError(t, err)
	decoded, err := Decode(payload)
	require.NoError(t, err)
	require.Equal(t, a.ID, decoded.ID)
	require.Equal(t, "42", decoded.Counter)
	require.Equal(t, TypeCounterUpdated, decoded.Type)
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, bus.Publish(ctx, New(TypeWalletConnected, "connect")))
	require.NoError(t, bus.Publish(ctx, New(TypeCounterUpdated, "increment")))
	require.NoError(t, bus.Close())
	require.ErrorIs(t, bus.Publish(ctx, New(TypeCounterUpdated, "reset")), ErrClosed)

	var got []Type
	err := bus.Subscribe(ctx, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []Type{TypeWalletConnected, TypeCounterUpdated}, got)
}

func TestMemoryBusPublishHonoursContext(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Publish(context.Background(), New(TypeCounterUpdated, "increment")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, bus.Publish(ctx, New(TypeCounterUpdated, "increment")), context.Canceled)
}

func TestMemoryBusCloseReleasesBlockedPublisher(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Publish(context.Background(), New(TypeCounterUpdated, "increment")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	published := make(chan error, 1)
	go func() {
		published <- bus.Publish(ctx, New(TypeCounterUpdated, "decrement"))
	}()

	closed := make(chan struct{})
	go func() {
		_ = bus.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a pending publisher")
	}
	select {
	case err := <-published:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked publisher was not released by Close")
	}
	require.NoError(t, bus.Close())
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("CHAINCOUNTER_TEST_REDIS")
	if addr == "" {
		t.Skip("CHAINCOUNTER_TEST_REDIS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus, err := NewRedisBus(ctx, RedisConfig{Address: addr, Channel: "chaincounter:test:" + New("", "").ID})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan Event, 1)
	go func() {
		_ = bus.Subscribe(ctx, func(_ context.Context, e Event) error {
			received <- e
			return nil
		})
	}()

	sent := New(TypeCounterUpdated, "increment")
	require.Eventually(t, func() bool {
		if err := bus.Publish(ctx, sent); err != nil {
			return false
		}
		select {
		case e := <-received:
			return e.ID == sent.ID
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 4*time.Second, 200*time.Millisecond)
}

func TestRabbitMQBusRoundTrip(t *testing.T) {
	url := os.Getenv("CHAINCOUNTER_TEST_AMQP")
	if url == "" {
		t.Skip("CHAINCOUNTER_TEST_AMQP not set")
	}
	bus, err := NewRabbitMQBus(RabbitMQConfig{URL: url, Queue: "chaincounter.test." + New("", "").ID, AutoDelete: true})
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := New(TypeOperationFailed, "decrement")
	sent.ErrorCode = "PROVIDER_REJECTED"
	require.NoError(t, bus.Publish(ctx, sent))

	received := make(chan Event, 1)
	go func() {
		_ = bus.Subscribe(ctx, func(_ context.Context, e Event) error {
			received <- e
			return nil
		})
	}()
	select {
	case e := <-received:
		require.Equal(t, sent.ID, e.ID)
		require.Equal(t, "PROVIDER_REJECTED", e.ErrorCode)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
