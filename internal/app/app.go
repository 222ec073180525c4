package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront-sync/internal/config"
	"github.com/utafrali/storefront-sync/internal/event"
	handler "github.com/utafrali/storefront-sync/internal/handler/http"
	"github.com/utafrali/storefront-sync/internal/notify"
	"github.com/utafrali/storefront-sync/internal/remote"
	"github.com/utafrali/storefront-sync/internal/session"
	"github.com/utafrali/storefront-sync/internal/store"
	redisstore "github.com/utafrali/storefront-sync/internal/store/redis"
	"github.com/utafrali/storefront-sync/internal/workspace"
	"github.com/utafrali/storefront-sync/pkg/database"
	"github.com/utafrali/storefront-sync/pkg/health"
	"github.com/utafrali/storefront-sync/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront-sync/pkg/kafka"
	"github.com/utafrali/storefront-sync/pkg/middleware"
	"github.com/utafrali/storefront-sync/pkg/tracing"
)

const storefrontService = "storefront-api"

// App wires together all dependencies and runs the storefront sync server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	registry       *workspace.Registry
	rateLimiter    *middleware.RateLimiter
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	healthHandler := health.NewHandler()

	// Snapshot store.
	var snapshots store.Snapshotter
	if cfg.RedisEnabled {
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Host = cfg.RedisHost
		redisCfg.Port = cfg.RedisPort
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB

		rdb, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			_ = tracerShutdown(context.Background())
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", redisCfg.Addr()),
			slog.Int("db", cfg.RedisDB),
		)
		a.rdb = rdb
		snapshots = redisstore.NewSnapshotStore(rdb, cfg.IdleTTL)
		healthHandler.RegisterOptional("redis", database.RedisChecker(rdb))
	}

	// Cart flash events.
	var shared notify.Notifier
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		shared = event.NewProducer(a.producer, logger)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Storefront API client.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.StorefrontAPITimeout
	breaker := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig(storefrontService), logger)
	client, err := remote.NewHTTPClient(cfg.StorefrontAPIURL, breaker, storefrontService, logger)
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("storefront api client: %w", err)
	}
	healthHandler.RegisterOptional(storefrontService, func(context.Context) error {
		if breaker.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	})

	a.registry = workspace.NewRegistry(client, snapshots, shared, workspace.Config{
		CacheTTL:      cfg.CacheTTL,
		IdleTTL:       cfg.IdleTTL,
		FlashDuration: cfg.FlashDuration,
		WishlistName:  cfg.WishlistName,
	}, logger)

	secret := []byte(cfg.SessionSecret)
	a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, time.Minute, logger)

	router := handler.NewRouter(handler.RouterDeps{
		Registry:     a.registry,
		Resolver:     session.NewResolver(secret, cfg.SessionIssuer),
		Issuer:       session.NewIssuer(secret, cfg.SessionIssuer, cfg.GuestTokenTTL),
		Guard:        session.NewGuard[http.Handler](cfg.SignInPath),
		Health:       healthHandler,
		RateLimiter:  a.rateLimiter,
		CORSOrigins:  cfg.CORSOrigins,
		CookieSecure: cfg.CookieSecure,
		Logger:       logger,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and the workspace sweeper and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.registry.Run(sweepCtx, a.cfg.SweepInterval)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stopSweep()
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.rateLimiter.Close()
	a.closeBackends()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeBackends() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
}
