package presence

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:"

// Tracker counts open subscription sockets per user.
type Tracker interface {
	Connect(ctx context.Context, userID string) error
	Touch(ctx context.Context, userID string) error
	Disconnect(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type redisClient interface {
	redis.Scripter
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// Each script runs atomically, so an expired counter is never decremented
// below zero and a live socket re-registers itself on its next touch.
var (
	connectScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return n`)

	touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('SET', KEYS[1], 1, 'PX', ARGV[1])
  return 1
end
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 0`)

	disconnectScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local n = redis.call('DECR', KEYS[1])
if n <= 0 then
  redis.call('DEL', KEYS[1])
  return 0
end
return n`)
)

// RedisTracker keeps a per-user connection counter that expires unless
// refreshed, so a crashed node cannot leave users online forever.
type RedisTracker struct {
	rdb redisClient
	ttl time.Duration
}

func NewRedisTracker(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	return newRedisTracker(rdb, ttl)
}

func newRedisTracker(rdb redisClient, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisTracker{rdb: rdb, ttl: ttl}
}

func (t *RedisTracker) run(ctx context.Context, script *redis.Script, userID string) error {
	return script.Run(ctx, t.rdb, []string{keyPrefix + userID}, t.ttl.Milliseconds()).Err()
}

func (t *RedisTracker) Connect(ctx context.Context, userID string) error {
	return t.run(ctx, connectScript, userID)
}

func (t *RedisTracker) Touch(ctx context.Context, userID string) error {
	return t.run(ctx, touchScript, userID)
}

func (t *RedisTracker) Disconnect(ctx context.Context, userID string) error {
	return t.run(ctx, disconnectScript, userID)
}

func (t *RedisTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := t.rdb.Exists(ctx, keyPrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LocalTracker is the in-process tracker used when Redis is not configured.
type LocalTracker struct {
	mu    sync.Mutex
	conns map[string]int
}

func NewLocalTracker() *LocalTracker {
	return &LocalTracker{conns: make(map[string]int)}
}

func (t *LocalTracker) Connect(_ context.Context, userID string) error {
	t.mu.Lock()
	t.conns[userID]++
	t.mu.Unlock()
	return nil
}

func (t *LocalTracker) Touch(context.Context, string) error { return nil }

func (t *LocalTracker) Disconnect(_ context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[userID] <= 1 {
		delete(t.conns, userID)
		return nil
	}
	t.conns[userID]--
	return nil
}

func (t *LocalTracker) IsOnline(_ context.Context, userID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[userID] > 0, nil
}

func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
