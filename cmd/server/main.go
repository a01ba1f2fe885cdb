package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/application/fulfillment"
	notificationapp "github.com/ResonantCEO/Doobie-Division-sub002/internal/application/notification"
	orderapp "github.com/ResonantCEO/Doobie-Division-sub002/internal/application/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/broadcast"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/config"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/event"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/logger"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/persistence"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/telemetry"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/handler"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/middleware"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	version     = "1.0.0"
	maxBodySize = 1 << 20
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    "server",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting fulfillment server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("relay", cfg.Live.Relay),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	lp, err := telemetry.NewLogProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("log export: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down log provider", zap.Error(err))
		}
	}()
	log = lp.Bridge(log)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		// postgres schemas come from cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}
	dbSystem := "postgresql"
	if cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:  cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBSystem: dbSystem,
	}, log); err != nil {
		return fmt.Errorf("db tracing: %w", err)
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	relay, err := newRelay(ctx, cfg, log)
	if err != nil {
		return err
	}
	hub := broadcast.NewHub(broadcast.HubConfig{
		ClientBuffer:      cfg.Live.ClientBuffer,
		HeartbeatInterval: cfg.Live.HeartbeatInterval,
		WriteTimeout:      cfg.Live.WriteTimeout,
		MaxClients:        cfg.Live.MaxClients,
	}, relay, broadcast.NewMetrics(registry), log)
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("start live hub: %w", err)
	}

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)

	eventBus := event.NewInMemoryEventBus(log)
	recorder := notificationapp.NewRecorder(notificationRepo, hub, log)
	eventBus.Subscribe(recorder, recorder.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	log.Info("Event handlers registered", zap.Strings("notification_events", recorder.EventTypes()))

	orderService := orderapp.NewService(orderRepo, eventBus, log)
	fulfillmentService := fulfillment.NewService(orderRepo, eventBus, log)
	notificationService := notificationapp.NewService(notificationRepo, log)

	orderHandler := handler.NewOrderHandler(orderService, fulfillmentService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db, hub)
	liveHandler := handler.NewLiveHandler(hub)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, logger.WithSkipPaths("/health", "/metrics")))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.NewHTTPMetrics(registry).Middleware("/metrics", cfg.Live.Path))
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(cors))
	engine.Use(middleware.BodyLimit(maxBodySize))

	engine.GET("/health", systemHandler.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	engine.GET(cfg.Live.Path, liveHandler.Connect)

	r := router.NewRouter(engine)
	r.Register(router.OrderRoutes(orderHandler)).
		Register(router.NotificationRoutes(notificationHandler))
	r.Setup()
	log.Debug("Routes registered", zap.Strings("routes", r.Routes()))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	// hijacked live connections are not tracked by Shutdown
	srv.RegisterOnShutdown(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hub.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down live hub", zap.Error(err))
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("live_path", cfg.Live.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newRelay builds the cross-instance relay named by live.relay
func newRelay(ctx context.Context, cfg *config.Config, log *zap.Logger) (broadcast.Relay, error) {
	switch cfg.Live.Relay {
	case config.RelayRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr(), err)
		}
		log.Info("Using redis relay", zap.String("addr", cfg.Redis.Addr()), zap.String("channel", cfg.Live.Channel))
		return broadcast.NewRedisRelay(client, cfg.Live.Channel, log), nil
	case config.RelayAMQP:
		log.Info("Using amqp relay", zap.String("exchange", cfg.AMQP.Exchange))
		return broadcast.NewAMQPRelay(cfg.AMQP.URL, cfg.AMQP.Exchange, log), nil
	default:
		return broadcast.NewLocalRelay(), nil
	}
}
