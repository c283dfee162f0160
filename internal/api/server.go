package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/auth"
	"github.com/fathima-sithara/chaty/internal/metrics"
	"github.com/fathima-sithara/chaty/internal/presence"
	"github.com/fathima-sithara/chaty/internal/service"
	"github.com/fathima-sithara/chaty/internal/utils"
	"github.com/fathima-sithara/chaty/internal/ws"
)

type Deps struct {
	Accounts      *service.AccountService
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Query         *service.QueryService
	Resolver      *auth.Resolver
	Presence      presence.Tracker
	WS            *ws.Handler
	Log           *zap.Logger
}

type Options struct {
	BodyLimitMB     int
	RateLimitPerMin int
	RateBurst       int
	// UploadsDir is served at /uploads when set.
	UploadsDir string
}

// NewApp builds the HTTP surface. ctx bounds background work such as the
// rate limiter's cleanup loop.
func NewApp(ctx context.Context, d Deps, opts Options) *fiber.App {
	metrics.Init()

	bodyLimit := opts.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 25
	}
	app := fiber.New(fiber.Config{
		AppName:               "chaty",
		BodyLimit:             bodyLimit * 1024 * 1024,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(ZapLogger(d.Log))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"service": "chaty"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if opts.UploadsDir != "" {
		app.Static("/uploads", opts.UploadsDir)
	}

	h := &Handler{
		accounts: d.Accounts,
		convs:    d.Conversations,
		msgs:     d.Messages,
		query:    d.Query,
		presence: d.Presence,
		log:      d.Log,
	}
	requireAuth := RequireAuth(d.Resolver)

	api := app.Group("/api/v1")
	if opts.RateLimitPerMin > 0 {
		api.Use(NewIPRateLimiter(ctx, opts.RateLimitPerMin, opts.RateBurst, d.Log).Handler())
	}

	api.Post("/auth/signup", h.Signup)
	api.Post("/auth/login", h.Login)
	api.Get("/users", h.Users)
	api.Get("/users/search", requireAuth, h.Search)

	api.Get("/me", requireAuth, h.Profile)
	api.Patch("/me", requireAuth, h.SaveProfile)

	api.Get("/conversations", requireAuth, h.Conversations)
	api.Post("/conversations", requireAuth, h.CreateConversation)
	api.Delete("/conversations/:id", requireAuth, h.DeleteConversation)
	api.Get("/conversations/:id/messages", requireAuth, h.Messages)
	api.Post("/conversations/:id/messages", requireAuth, h.SendMessage)
	api.Delete("/messages/:id", requireAuth, h.DeleteMessage)

	api.Get("/presence/:id", requireAuth, h.Presence)

	if d.WS != nil {
		app.Get("/ws", d.WS.Upgrade(writeError), d.WS.Serve())
	}
	return app
}
