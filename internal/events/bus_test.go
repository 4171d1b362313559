package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[RunStarted](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(t.Context(), RunStarted{RunID: "r1", Mode: "full"}))

	select {
	case got := <-ch:
		require.Equal(t, "r1", got.RunID)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[RunEvent](b, 2)
	defer unsubscribe()

	require.NoError(t, b.Publish(t.Context(), TaskFinished{RunID: "r2", Task: "styles"}))
	require.NoError(t, b.Publish(t.Context(), RunFinished{RunID: "r2"}))

	for range 2 {
		select {
		case got := <-ch:
			require.Equal(t, "r2", got.RunIdentifier())
		case <-time.After(250 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[RunStarted](b, 0)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, RunStarted{RunID: "blocked"})
	require.Error(t, err)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryRuntime, classified.Category())
}

func TestBus_UnsubscribeAndClose(t *testing.T) {
	b := NewBus()

	_, unsubscribe := Subscribe[RunStarted](b, 1)
	require.Equal(t, 1, SubscriberCount[RunStarted](b))
	unsubscribe()
	require.Zero(t, SubscriberCount[RunStarted](b))

	ch, _ := Subscribe[RunStarted](b, 1)
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Error(t, b.Publish(t.Context(), RunStarted{}))
}

func TestBus_NilBusDropsEvents(t *testing.T) {
	var b *Bus
	require.NoError(t, b.Publish(t.Context(), RunStarted{}))
	require.Zero(t, SubscriberCount[RunStarted](b))
}

func TestBus_UnsubscribeReleasesBlockedPublish(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[RunFinished](b, 0)

	published := make(chan error, 1)
	go func() {
		published <- b.Publish(context.Background(), RunFinished{RunID: "late"})
	}()

	// Wait until the publisher is parked on the unbuffered channel.
	time.Sleep(20 * time.Millisecond)
	unsubscribe()
	unsubscribe()

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after unsubscribe")
	}
	_, ok := <-ch
	require.False(t, ok)
}

func TestBus_CloseReleasesBlockedPublish(t *testing.T) {
	b := NewBus()
	ch, _ := Subscribe[RunEvent](b, 0)

	published := make(chan error, 1)
	go func() {
		published <- b.Publish(context.Background(), TaskFinished{RunID: "r", Task: "styles"})
	}()
	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after close")
	}
	_, ok := <-ch
	require.False(t, ok)
}

func TestBus_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	for range 50 {
		_, unsubscribe := Subscribe[RunStarted](b, 0)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = b.Publish(context.Background(), RunStarted{RunID: "r"})
		}()
		unsubscribe()
		<-done
	}
	require.Zero(t, SubscriberCount[RunStarted](b))
}
