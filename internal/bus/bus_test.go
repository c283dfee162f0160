package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fathima-sithara/chaty/internal/models"
)

func recv(t *testing.T, s *Subscription) models.Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return models.Event{}
}

func assertEmpty(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if ok {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
	}
}

func TestPublishDeliversToCurrentSubscribers(t *testing.T) {
	b := New(8, zaptest.NewLogger(t))
	ctx := context.Background()

	a1 := b.Subscribe(ctx, "conv-1")
	a2 := b.Subscribe(ctx, "conv-1")
	other := b.Subscribe(ctx, "conv-2")

	n := b.Publish("conv-1", models.Event{Type: models.EventMessageCreated})
	assert.Equal(t, 2, n)

	for _, s := range []*Subscription{a1, a2} {
		ev := recv(t, s)
		assert.Equal(t, "conv-1", ev.Topic)
		assert.Equal(t, models.EventMessageCreated, ev.Type)
		assert.False(t, ev.At.IsZero())
	}
	assertEmpty(t, other)
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	b := New(8, nil)
	assert.Equal(t, 0, b.Publish("u1", models.Event{Type: models.EventConversationCreated}))

	s := b.Subscribe(context.Background(), "u1")
	assertEmpty(t, s)

	b.Publish("u1", models.Event{Type: models.EventConversationUpdated})
	assert.Equal(t, models.EventConversationUpdated, recv(t, s).Type)
}

func TestOrderPreservedPerSubscriber(t *testing.T) {
	b := New(128, nil)
	s := b.Subscribe(context.Background(), "conv")

	for i := 0; i < 100; i++ {
		b.Publish("conv", models.Event{Message: &models.Message{Content: string(rune('a' + i%26))}, Update: i%2 == 0})
	}
	for i := 0; i < 100; i++ {
		ev := recv(t, s)
		assert.Equal(t, string(rune('a'+i%26)), ev.Message.Content)
		assert.Equal(t, i%2 == 0, ev.Update)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New(8, nil)
	ctx := context.Background()
	s1 := b.Subscribe(ctx, "t")
	s2 := b.Subscribe(ctx, "t")

	b.Unsubscribe(s1)
	b.Unsubscribe(s1)
	s1.Close()
	b.Unsubscribe(nil)

	assert.Equal(t, 1, b.Subscribers("t"))
	assert.Equal(t, 1, b.Publish("t", models.Event{}))
	recv(t, s2)

	_, ok := <-s1.Events()
	assert.False(t, ok)

	s2.Close()
	assert.Equal(t, 0, b.Topics())
}

func TestContextCancelClosesSubscription(t *testing.T) {
	b := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s := b.Subscribe(ctx, "t")
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	assert.Equal(t, 0, b.Subscribers("t"))
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	b := New(2, zaptest.NewLogger(t))
	ctx := context.Background()
	slow := b.Subscribe(ctx, "t")
	fast := b.Subscribe(ctx, "t")

	for i := 0; i < 2; i++ {
		b.Publish("t", models.Event{})
		recv(t, fast)
	}
	// slow's buffer is full now
	n := b.Publish("t", models.Event{})
	assert.Equal(t, 1, n)
	recv(t, fast)

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber still registered")
	}
	assert.Equal(t, 1, b.Subscribers("t"))

	// buffered events are still drained before the channel reports closed
	recv(t, slow)
	recv(t, slow)
	_, ok := <-slow.Events()
	assert.False(t, ok)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	b := New(1024, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish("t", models.Event{})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s := b.Subscribe(ctx, "t")
				s.Close()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Subscribers("t"))
}

func TestCloseDropsEverything(t *testing.T) {
	b := New(4, nil)
	ctx := context.Background()
	s1 := b.Subscribe(ctx, "a")
	s2 := b.Subscribe(ctx, "b")
	b.Close()

	<-s1.Done()
	<-s2.Done()
	assert.Equal(t, 0, b.Topics())
}
