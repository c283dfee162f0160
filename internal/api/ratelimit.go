package api

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fathima-sithara/chaty/internal/utils"
)

const visitorIdle = 5 * time.Minute

type IPRateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	log      *zap.Logger
}

// visitor is shared by concurrent requests from one IP and the cleanup loop.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// NewIPRateLimiter allows perMinute requests per client IP. Idle visitors are
// forgotten until ctx is done.
func NewIPRateLimiter(ctx context.Context, perMinute, burst int, logger *zap.Logger) *IPRateLimiter {
	if burst <= 0 {
		burst = 5
	}
	l := &IPRateLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: burst,
		log:   logger,
	}
	go l.cleanupVisitors(ctx)
	return l
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	now := time.Now().UnixNano()
	v, ok := l.visitors.Load(ip)
	if !ok {
		fresh := &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		fresh.lastSeen.Store(now)
		v, _ = l.visitors.LoadOrStore(ip, fresh)
	}
	vi := v.(*visitor)
	vi.lastSeen.Store(now)
	return vi.limiter
}

func (l *IPRateLimiter) cleanupVisitors(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.forgetIdle(now.Add(-visitorIdle))
		}
	}
}

// forgetIdle drops visitors not seen since cutoff.
func (l *IPRateLimiter) forgetIdle(cutoff time.Time) int {
	n := 0
	l.visitors.Range(func(k, v interface{}) bool {
		if v.(*visitor).lastSeen.Load() < cutoff.UnixNano() {
			l.visitors.Delete(k)
			n++
		}
		return true
	})
	return n
}

func (l *IPRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := getIP(c)
		if !l.getLimiter(ip).Allow() {
			l.log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Path()))
			return utils.JSONError(c, fiber.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		}
		return c.Next()
	}
}

func getIP(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		ip = "unknown"
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
