package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis applies each presence script in Go, keyed by the script hash.
type fakeRedis struct {
	vals    map[string]int64
	expires map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{vals: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	key := keys[0]
	ttl := time.Duration(args[0].(int64)) * time.Millisecond
	_, exists := f.vals[key]

	switch sha {
	case connectScript.Hash():
		f.vals[key]++
		f.expires[key] = ttl
		cmd.SetVal(f.vals[key])
	case touchScript.Hash():
		if !exists {
			f.vals[key] = 1
		}
		f.expires[key] = ttl
		cmd.SetVal(int64(0))
	case disconnectScript.Hash():
		if !exists {
			cmd.SetVal(int64(0))
			break
		}
		f.vals[key]--
		if f.vals[key] <= 0 {
			delete(f.vals, key)
		}
		cmd.SetVal(f.vals[key])
	default:
		cmd.SetErr(errors.New("NOSCRIPT No matching script"))
	}
	return cmd
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	cmd.SetErr(errors.New("unexpected EVAL"))
	return cmd
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeRedis) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	cmd.SetVal(make([]bool, len(hashes)))
	return cmd
}

func (f *fakeRedis) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.vals[k]; ok {
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func TestRedisTrackerCountsConnections(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	tr := newRedisTracker(rdb, 30*time.Second)

	require.NoError(t, tr.Connect(ctx, "u1"))
	require.NoError(t, tr.Connect(ctx, "u1"))
	assert.Equal(t, 30*time.Second, rdb.expires["presence:u1"])

	require.NoError(t, tr.Disconnect(ctx, "u1"))
	online, err := tr.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, tr.Disconnect(ctx, "u1"))
	online, err = tr.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisTrackerSurvivesExpiredCounter(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	tr := newRedisTracker(rdb, 30*time.Second)

	require.NoError(t, tr.Connect(ctx, "u1"))
	require.NoError(t, tr.Connect(ctx, "u1"))
	delete(rdb.vals, "presence:u1") // ttl lapsed without a touch

	require.NoError(t, tr.Disconnect(ctx, "u1"))
	_, exists := rdb.vals["presence:u1"]
	assert.False(t, exists, "disconnect must not recreate the counter")

	require.NoError(t, tr.Touch(ctx, "u1"))
	online, err := tr.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, int64(1), rdb.vals["presence:u1"])

	require.NoError(t, tr.Disconnect(ctx, "u1"))
	online, err = tr.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestLocalTracker(t *testing.T) {
	ctx := context.Background()
	tr := NewLocalTracker()
	require.NoError(t, tr.Connect(ctx, "u"))
	require.NoError(t, tr.Connect(ctx, "u"))
	require.NoError(t, tr.Disconnect(ctx, "u"))
	online, _ := tr.IsOnline(ctx, "u")
	assert.True(t, online)
	require.NoError(t, tr.Disconnect(ctx, "u"))
	require.NoError(t, tr.Disconnect(ctx, "u"))
	online, _ = tr.IsOnline(ctx, "u")
	assert.False(t, online)
}
