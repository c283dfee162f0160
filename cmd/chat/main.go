package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/api"
	"github.com/fathima-sithara/chaty/internal/auth"
	"github.com/fathima-sithara/chaty/internal/bus"
	"github.com/fathima-sithara/chaty/internal/config"
	"github.com/fathima-sithara/chaty/internal/events"
	"github.com/fathima-sithara/chaty/internal/kafka"
	"github.com/fathima-sithara/chaty/internal/metrics"
	"github.com/fathima-sithara/chaty/internal/presence"
	"github.com/fathima-sithara/chaty/internal/repository"
	"github.com/fathima-sithara/chaty/internal/repository/memory"
	"github.com/fathima-sithara/chaty/internal/service"
	"github.com/fathima-sithara/chaty/internal/storage"
	"github.com/fathima-sithara/chaty/internal/utils"
	"github.com/fathima-sithara/chaty/internal/ws"
)

func main() {
	path := os.Getenv("CHAT_CONFIG")
	if path == "" {
		path = "./config/config.yaml"
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.App.Env)
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infof("starting chaty (env=%s, store=%s, storage=%s)", cfg.App.Env, cfg.Store.Driver, cfg.Storage.Driver)

	metrics.Init()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// repositories
	var (
		users  repository.UserRepository
		convs  repository.ConversationRepository
		msgs   repository.MessageRepository
		client *mongo.Client
	)
	switch cfg.Store.Driver {
	case "mongo":
		db, mc, err := repository.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout, logger)
		if err != nil {
			sugar.Fatalf("mongo connect: %v", err)
		}
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			sugar.Fatalf("mongo indexes: %v", err)
		}
		client = mc
		users = repository.NewMongoUserRepo(db)
		convs = repository.NewMongoConversationRepo(db)
		msgs = repository.NewMongoMessageRepo(db)
	default:
		sugar.Warn("using in-memory store, data is lost on restart")
		st := memory.New()
		users, convs, msgs = st.Users(), st.Conversations(), st.Messages()
	}

	// uploads
	var (
		files      storage.Store
		uploadsDir string
	)
	switch cfg.Storage.Driver {
	case "s3":
		s3s, err := storage.NewS3Store(ctx, cfg.Storage.S3.Region, cfg.Storage.S3.Bucket, cfg.Storage.S3.Endpoint, cfg.Storage.S3.PublicRead)
		if err != nil {
			sugar.Fatalf("s3: %v", err)
		}
		files = s3s
	default:
		local, err := storage.NewLocalStore(afero.NewOsFs(), cfg.Storage.LocalDir, "uploads", logger)
		if err != nil {
			sugar.Fatalf("local storage: %v", err)
		}
		files = local
		uploadsDir = local.Dir()
	}

	// presence
	var tracker presence.Tracker = presence.NewLocalTracker()
	if cfg.Redis.Addr != "" {
		rdb, err := presence.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			sugar.Fatalf("redis ping: %v", err)
		}
		defer rdb.Close()
		tracker = presence.NewRedisTracker(rdb, cfg.Redis.PresenceTTL)
	}

	// optional event sink
	var (
		sink     events.Sink
		producer *kafka.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Brokers[0] != "" {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafka.BreakerSettings{
			MaxFailures: cfg.Kafka.MaxFailures,
			Timeout:     cfg.Kafka.OpenTimeout,
		}, logger)
		sink = producer
	}

	resolver, err := auth.NewResolver(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		sugar.Fatalf("jwt: %v", err)
	}

	b := bus.New(cfg.Bus.BufferSize, logger)
	dispatcher := events.NewDispatcher(b, sink, cfg.Kafka.QueueSize, logger)

	query := service.NewQueryService(users, convs, msgs)
	wsHandler := ws.NewHandler(b, resolver, query, tracker, ws.Options{
		PingInterval:    cfg.WS.PingInterval,
		WriteDeadline:   cfg.WS.WriteDeadline,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
	}, logger)

	app := api.NewApp(ctx, api.Deps{
		Accounts:      service.NewAccountService(users, resolver, files, cfg.Security.PasswordHashCost, logger),
		Conversations: service.NewConversationService(convs, msgs, dispatcher, logger),
		Messages:      service.NewMessageService(convs, msgs, files, dispatcher, logger),
		Query:         query,
		Resolver:      resolver,
		Presence:      tracker,
		WS:            wsHandler,
		Log:           logger,
	}, api.Options{
		BodyLimitMB:     cfg.App.BodyLimitMB,
		RateLimitPerMin: cfg.App.RateLimitPerMin,
		RateBurst:       cfg.App.RateBurst,
		UploadsDir:      uploadsDir,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		sugar.Infof("listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			sugar.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down chaty...")

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stop()
	b.Close()
	dispatcher.Close()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka close", zap.Error(err))
		}
	}
	if client != nil {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		_ = client.Disconnect(dctx)
	}
	sugar.Info("shutdown complete")
}
