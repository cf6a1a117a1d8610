package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/storefront/api/handler"
	"github.com/fastygo/storefront/internal/config"
	"github.com/fastygo/storefront/internal/infrastructure/backend"
	"github.com/fastygo/storefront/internal/infrastructure/boltdb"
	"github.com/fastygo/storefront/internal/infrastructure/buffer"
	"github.com/fastygo/storefront/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/storefront/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/storefront/internal/infrastructure/redis"
	"github.com/fastygo/storefront/internal/metrics"
	"github.com/fastygo/storefront/internal/middleware"
	"github.com/fastygo/storefront/internal/router"
	"github.com/fastygo/storefront/internal/services"
	"github.com/fastygo/storefront/internal/services/lifecycle"
	"github.com/fastygo/storefront/internal/tokenclock"
	"github.com/fastygo/storefront/pkg/httpcontext"
	"github.com/fastygo/storefront/pkg/logger"
	"github.com/fastygo/storefront/repository"
	boltRepo "github.com/fastygo/storefront/repository/bolt"
	"github.com/fastygo/storefront/repository/memory"
	"github.com/fastygo/storefront/repository/postgres"
	redisRepo "github.com/fastygo/storefront/repository/redis"
	"github.com/fastygo/storefront/usecase/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	lc := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := lc.Listen(context.Background())
	defer cancel()

	clock := tokenclock.New()
	backendClient := backend.New(backend.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		Name:    cfg.AppName,
	}, zapLogger.Named("backend"))

	// One BoltDB file holds the credential record and the audit buffer.
	var boltDB *bolt.DB
	if cfg.TokenStore.Driver == config.DriverBolt || cfg.AuditEnabled() {
		boltDB, err = boltdb.Open(cfg.TokenStore.BoltPath, boltRepo.Bucket, buffer.Bucket)
		if err != nil {
			zapLogger.Fatal("failed to open bolt store", zap.Error(err), zap.String("path", cfg.TokenStore.BoltPath))
		}
		lc.RegisterCloser("boltdb", boltDB)
	}

	var redisClient *goRedis.Client
	if cfg.TokenStore.Driver == config.DriverRedis {
		redisClient, err = redisInfra.NewClient(appCtx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		lc.RegisterCloser("redis", redisClient)
	}

	var store repository.CredentialRepository
	switch cfg.TokenStore.Driver {
	case config.DriverRedis:
		store = redisRepo.NewCredentialRepository(redisClient, cfg.TokenStore.KeyPrefix, 0, clock, zapLogger)
	case config.DriverMemory:
		store = memory.NewCredentialRepository()
	default:
		store = boltRepo.NewCredentialRepository(boltDB, zapLogger)
	}
	zapLogger.Info("token store ready", zap.String("driver", cfg.TokenStore.Driver))

	var (
		pool        *pgxpool.Pool
		bufferStore *buffer.Store
		events      repository.SessionEventRepository
	)
	if cfg.AuditEnabled() {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
		pool, err = pgInfra.NewPool(appCtx, cfg.Audit, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		lc.RegisterStop("postgres", func() { pgInfra.Close(pool, zapLogger) })
		events = postgres.NewSessionEventRepository(pool)

		bufferStore, err = buffer.New(boltDB)
		if err != nil {
			zapLogger.Fatal("failed to open audit buffer", zap.Error(err))
		}
	}

	mon := monitor.New(monitor.Options{
		Backend:  backendClient,
		Postgres: pool,
		Redis:    redisClient,
		Buffer:   bufferStore,
		Interval: 10 * time.Second,
		Logger:   zapLogger.Named("monitor"),
	})
	mon.Start()
	lc.RegisterStop("monitor", mon.Stop)

	var sink services.EventSink
	if cfg.AuditEnabled() {
		processor := services.NewAuditProcessor(
			bufferStore,
			mon,
			events,
			zapLogger.Named("audit_processor"),
			services.ProcessorConfig{
				Interval:   cfg.Audit.SyncInterval,
				BatchSize:  cfg.Audit.BatchSize,
				MaxRetries: cfg.Audit.MaxRetry,
			},
		)
		processor.Start()
		lc.Register("audit_processor", func(ctx context.Context) error {
			processor.Stop(ctx)
			return processor.Drain(ctx)
		})
		sink = processor
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	poller := services.NewNotificationPoller(backendClient, cfg.Notifications.PollInterval, zapLogger)
	lc.Register("notifications", func(ctx context.Context) error {
		poller.Stop(ctx)
		return nil
	})

	manager := session.New(backendClient, store, clock,
		session.Config{
			IdleTimeout:       cfg.Session.IdleTimeout,
			ExpiredMessage:    cfg.Session.ExpiredMessage,
			InactivityMessage: cfg.Session.InactivityMessage,
		},
		session.WithLogger(zapLogger.Named("session")),
		session.WithRecorder(services.NewAuditRecorder(zapLogger, sink)),
		session.WithRecorder(collector),
		session.WithObserver(poller.Observe),
		session.WithObserver(collector.Observe),
	)
	lc.RegisterStop("session_manager", manager.Close)

	restored := manager.Restore(appCtx)
	zapLogger.Info("session restored at startup", zap.String("status", restored.Status.String()))

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		PerMinute: cfg.RateLimit.PerMinute,
		Burst:     cfg.RateLimit.Burst,
	}, zapLogger)
	lc.RegisterStop("rate_limiter", limiter.Stop)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Session:       apiHandler.NewSessionHandler(manager, ctxAdapter, zapLogger),
		Password:      apiHandler.NewPasswordHandler(manager, ctxAdapter, zapLogger),
		View:          apiHandler.NewViewHandler(manager, ctxAdapter, zapLogger),
		Notifications: apiHandler.NewNotificationHandler(poller, ctxAdapter, zapLogger),
		Audit:         apiHandler.NewAuditHandler(events, ctxAdapter, zapLogger),
		Health:        apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	if cfg.Metrics.Enabled {
		handlers.Metrics = metrics.Handler(registry)
	}

	r := router.New(handlers, router.Middlewares{
		Guard:     middleware.NewGuard(manager, ctxAdapter, zapLogger),
		RateLimit: limiter.Middleware,
	})

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server crashed", zap.Error(err))
			cancel()
		}
	}()

	lc.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := lc.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
