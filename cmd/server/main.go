package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/app"
	"github.com/oggyb/campusknot/internal/cache"
	"github.com/oggyb/campusknot/internal/config"
	"github.com/oggyb/campusknot/internal/db"
	deliveryhttp "github.com/oggyb/campusknot/internal/delivery/http"
	"github.com/oggyb/campusknot/internal/delivery/http/handler"
	"github.com/oggyb/campusknot/internal/delivery/http/middleware"
	"github.com/oggyb/campusknot/internal/live"
	"github.com/oggyb/campusknot/internal/logger"
	"github.com/oggyb/campusknot/internal/mail"
	"github.com/oggyb/campusknot/internal/server"
	"github.com/oggyb/campusknot/internal/service/account"
	"github.com/oggyb/campusknot/internal/service/conversation"
	"github.com/oggyb/campusknot/internal/service/discovery"
	"github.com/oggyb/campusknot/internal/service/identity"
	"github.com/oggyb/campusknot/internal/service/matching"
	"github.com/oggyb/campusknot/internal/service/profile"
	"github.com/oggyb/campusknot/internal/storage"
	"github.com/oggyb/campusknot/internal/verification"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

// run wires the services and serves until shutdown.
func run(cfg *config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Warn("failed to close db", "err", err)
		}
	}()
	log.Info("database ready", "driver", cfg.DB.Driver)

	// Init Redis (optional). Without it presence, codes and live fan-out stay
	// in this process.
	var (
		redisCache *cache.RedisCache
		codes      verification.Store
		hubOpts    []live.Option
	)
	if cfg.Redis.Addr != "" {
		redisCache = cache.NewRedisCache(cfg)
		defer func() { _ = redisCache.Close() }()
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		codes = verification.NewRedisStore(redisCache.Client)
		hubOpts = append(hubOpts,
			live.WithPresence(live.NewRedisPresence(redisCache.Client)),
			live.WithBroker(live.NewRedisBroker(redisCache.Client, log)),
		)
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	} else {
		memCodes := verification.NewMemoryStore()
		go memCodes.Run(ctx, time.Minute)
		codes = memCodes
		log.Info("redis not configured, using in-process stores")
	}

	hub := live.NewHub(log.With("component", "live"), hubOpts...)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("live broker stopped", "err", err)
		}
	}()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init %s storage: %w", cfg.Storage.Driver, err)
	}

	mailer := mail.New(cfg.Mail)

	// Inject dependencies into app context
	appCtx := app.New(database, redisCache, log,
		app.WithConfig(cfg),
		app.WithNotifier(hub),
		app.WithPresence(hub),
		app.WithStorage(store),
		app.WithMailer(mailer),
		app.WithCodes(codes),
	)

	if cfg.App.Env == "development" && cfg.App.SeedDemo {
		if err := db.SeedTestData(database, db.SeedOptions{EmailDomain: cfg.App.EmailDomain}); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	identitySvc := identity.NewIdentityService(appCtx)
	router := deliveryhttp.NewRouter(
		cfg,
		log,
		handler.NewAuthHandler(identitySvc, cfg.App.EmailDomain),
		handler.NewProfileHandler(profile.NewProfileService(appCtx)),
		handler.NewSwipeHandler(discovery.NewDiscoveryService(appCtx), matching.NewMatchingService(appCtx)),
		handler.NewMatchHandler(conversation.NewConversationService(appCtx), cfg.Upload.MediaMaxBytes),
		handler.NewAccountHandler(account.NewAccountService(appCtx)),
		handler.NewLiveHandler(hub, identitySvc),
		handler.NewHealthHandler(database),
		middleware.NewAuthMiddleware(identitySvc),
	)

	httpServer := server.NewHTTPServer(cfg.HTTP, router.Setup(), log)

	health := server.NewHealthRegistrar(func(ctx context.Context) error {
		return db.Ping(database.WithContext(ctx))
	}, 10*time.Second)
	go health.Run(ctx)
	grpcServer := server.NewGRPCServer(cfg.GRPC, log, health)

	errCh := make(chan error, 2)
	go func() { errCh <- httpServer.Start() }()
	go func() { errCh <- grpcServer.ListenAndServe() }()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-errCh:
	}
	stop()

	// Shutdown order: HTTP, live sessions, gRPC; Redis and DB close via defers.
	if err := httpServer.Shutdown(context.Background()); err != nil {
		log.Error("http shutdown", "err", err)
	}
	hub.Close()
	grpcServer.Stop()
	log.Info("bye")
	return serveErr
}
