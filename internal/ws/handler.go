package ws

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/auth"
	"github.com/fathima-sithara/chaty/internal/bus"
	"github.com/fathima-sithara/chaty/internal/presence"
)

const (
	localsIdentity = "ws_identity"
	localsTopic    = "ws_topic"

	// 1013 try again later
	closeTryAgain = 1013
)

// Authorizer decides whether an actor may listen on a topic.
type Authorizer interface {
	CanSubscribe(ctx context.Context, actor auth.Identity, topic string) error
}

type Options struct {
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	MaxMessageBytes int64
}

// Handler streams bus events for one topic over a websocket. The
// subscription lives exactly as long as the connection.
type Handler struct {
	bus      *bus.Bus
	resolver *auth.Resolver
	authz    Authorizer
	presence presence.Tracker
	opts     Options
	log      *zap.Logger
}

func NewHandler(b *bus.Bus, r *auth.Resolver, authz Authorizer, p presence.Tracker, opts Options, log *zap.Logger) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteDeadline <= 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 4096
	}
	return &Handler{bus: b, resolver: r, authz: authz, presence: p, opts: opts, log: log}
}

// Upgrade authenticates and authorizes before the protocol switch so
// failures are plain HTTP errors. Browsers cannot set headers on a
// websocket handshake, so ?token= is accepted too.
func (h *Handler) Upgrade(onError func(*fiber.Ctx, error) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			header = c.Query("token")
		}
		id, err := h.resolver.Resolve(header)
		if err != nil {
			return onError(c, err)
		}
		topic := c.Query("topic")
		if topic == "" {
			topic = id.ID
		}
		if err := h.authz.CanSubscribe(c.UserContext(), id, topic); err != nil {
			return onError(c, err)
		}
		c.Locals(localsIdentity, id)
		c.Locals(localsTopic, topic)
		return c.Next()
	}
}

func (h *Handler) Serve() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *Handler) serve(conn *websocket.Conn) {
	id, _ := conn.Locals(localsIdentity).(auth.Identity)
	topic, _ := conn.Locals(localsTopic).(string)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := h.bus.Subscribe(ctx, topic)

	if err := h.presence.Connect(ctx, id.ID); err != nil {
		h.log.Warn("presence connect", zap.String("user", id.ID), zap.Error(err))
	}
	defer func() {
		if err := h.presence.Disconnect(context.Background(), id.ID); err != nil {
			h.log.Warn("presence disconnect", zap.String("user", id.ID), zap.Error(err))
		}
	}()
	h.log.Debug("subscriber connected", zap.String("user", id.ID), zap.String("topic", topic))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, conn, sub, id.ID)
	}()
	h.readPump(conn)

	// reader gone: cancelling closes the subscription and stops the writer
	cancel()
	<-done
	h.log.Debug("subscriber disconnected", zap.String("user", id.ID), zap.String("topic", topic))
}

// readPump only services control frames; clients do not send data.
func (h *Handler) readPump(conn *websocket.Conn) {
	pongWait := 2 * h.opts.PingInterval
	conn.SetReadLimit(h.opts.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sub *bus.Subscription, userID string) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteDeadline))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				select {
				case <-sub.Done():
					if ctx.Err() == nil {
						msg = websocket.FormatCloseMessage(closeTryAgain, "subscriber too slow, reconnect")
					}
				default:
				}
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				_ = conn.Close()
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
			if err := h.presence.Touch(ctx, userID); err != nil {
				h.log.Debug("presence touch", zap.String("user", userID), zap.Error(err))
			}
		}
	}
}
