package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/auth"
	"github.com/fathima-sithara/chaty/internal/metrics"
)

const localsIdentity = "identity"

// RequireAuth resolves the caller once per request and stores the identity.
func RequireAuth(r *auth.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := r.Resolve(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return writeError(c, err)
		}
		c.Locals(localsIdentity, id)
		return c.Next()
	}
}

func identity(c *fiber.Ctx) auth.Identity {
	id, _ := c.Locals(localsIdentity).(auth.Identity)
	return id
}

func ZapLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		metrics.Requests.WithLabelValues(c.Method(), strconv.Itoa(status)).Inc()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if id, ok := c.Locals(localsIdentity).(auth.Identity); ok {
			fields = append(fields, zap.String("user", id.ID))
		}
		if err != nil {
			logger.Error("http request", append(fields, zap.Error(err))...)
			return err
		}
		logger.Info("http request", fields...)
		return nil
	}
}
