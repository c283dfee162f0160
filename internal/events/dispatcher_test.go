package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"github.com/fathima-sithara/chaty/internal/bus"
	"github.com/fathima-sithara/chaty/internal/models"
)

type recordingSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingSink) Publish(_ context.Context, key string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func TestNotifyFansOutAndForwards(t *testing.T) {
	b := bus.New(4, nil)
	sink := &recordingSink{}
	d := NewDispatcher(b, sink, 8, zaptest.NewLogger(t))

	s1 := b.Subscribe(context.Background(), "u1")
	s2 := b.Subscribe(context.Background(), "u2")

	conv := &models.Conversation{ID: primitive.NewObjectID()}
	d.Notify(models.Event{Type: models.EventConversationCreated, Conversation: conv}, "u1", "u2")
	d.Close()

	for _, s := range []*bus.Subscription{s1, s2} {
		ev := <-s.Events()
		assert.Equal(t, models.EventConversationCreated, ev.Type)
		assert.Equal(t, conv.ID, ev.Conversation.ID)
	}
	require.Len(t, sink.keys, 1)
	assert.Equal(t, conv.ID.Hex(), sink.keys[0])
}

func TestNotifyWithoutSink(t *testing.T) {
	b := bus.New(4, nil)
	d := NewDispatcher(b, nil, 0, zaptest.NewLogger(t))
	s := b.Subscribe(context.Background(), "c")
	d.Notify(models.Event{Type: models.EventMessageCreated}, "c")
	d.Close()
	d.Close()

	ev := <-s.Events()
	assert.Equal(t, "c", ev.Topic)
}
