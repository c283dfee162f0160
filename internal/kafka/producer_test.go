package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	msgs  []kafkago.Message
	err   error
	calls int
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishWritesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, BreakerSettings{}, zaptest.NewLogger(t))

	require.NoError(t, p.Publish(context.Background(), "conv-1", map[string]string{"type": "message.created"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "conv-1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"type":"message.created"}`, string(w.msgs[0].Value))
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, BreakerSettings{MaxFailures: 2, Timeout: time.Minute}, zaptest.NewLogger(t))
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, "k", 1))
	assert.Error(t, p.Publish(ctx, "k", 1))
	err := p.Publish(ctx, "k", 1)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, w.calls)
}
