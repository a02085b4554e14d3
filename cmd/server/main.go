package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appconn "github.com/erp/connhub/internal/application/connection"
	"github.com/erp/connhub/internal/infrastructure/auth"
	"github.com/erp/connhub/internal/infrastructure/cache"
	"github.com/erp/connhub/internal/infrastructure/config"
	"github.com/erp/connhub/internal/infrastructure/logger"
	"github.com/erp/connhub/internal/infrastructure/persistence"
	"github.com/erp/connhub/internal/infrastructure/telemetry"
	"github.com/erp/connhub/internal/interfaces/http/handler"
	"github.com/erp/connhub/internal/interfaces/http/middleware"
	"github.com/erp/connhub/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			connhub API
//	@version		1.0
//	@description	OAuth connections and token lifecycle for SHOPLINE and Next Engine stores

//	@contact.name	API Support
//	@contact.url	https://github.com/erp/connhub

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	providers, err := telemetry.Setup(context.Background(), telemetry.Config{
		ServiceName:       serviceName,
		ServiceVersion:    version,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		TracesEnabled:     cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := providers.BridgeLogger(baseLog, logger.ParseLevel(cfg.Log.Level))
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("Starting connhub",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingServer,
		ApplicationName:   serviceName,
		BasicAuthUser:     cfg.Telemetry.ProfilingBasicUser,
		BasicAuthPassword: cfg.Telemetry.ProfilingBasicPass,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Telemetry.ProfilingEnabled && providers.TracingEnabled() {
		providers.EnableSpanProfiles()
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(
		logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(200*time.Millisecond),
			logger.WithQueryValues(!cfg.App.IsProduction()),
		),
	))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL && !cfg.App.IsProduction(),
		DBName:     cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	store, err := cache.NewCorrelationStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Correlation.AllowMemoryFallback),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create correlation store", zap.Error(err))
	}

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure platform adapters", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	sealer, err := auth.NewTokenSealer(cfg.Correlation.Secret, cfg.Correlation.TTL)
	if err != nil {
		log.Fatal("Failed to create correlation sealer", zap.Error(err))
	}

	connMetrics, err := telemetry.NewConnectionMetrics(providers.Meter("connhub/connection"))
	if err != nil {
		log.Fatal("Failed to create connection metrics", zap.Error(err))
	}

	// Repositories
	connRepo := persistence.NewGormConnectionRepository(db.DB)
	itemRepo := persistence.NewGormConnectionItemRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)

	// Application services
	audit := appconn.NewAuditRecorder(auditRepo, log, cfg.Audit.WriteTimeout)
	audit.SetMetrics(connMetrics)

	resolver := appconn.NewResolver(store, log, identityStrategies(cfg, store, sealer, jwtService, log)...)
	reconciler := appconn.NewReconciler(connRepo, itemRepo, log)
	lifecycle := appconn.NewLifecycleManager(registry, resolver, reconciler, connRepo, audit, log,
		appconn.WithConnectionMetrics(connMetrics))
	authorizer := appconn.NewAuthorizeService(registry, store, sealer, cfg.Correlation.TTL, log)
	items := appconn.NewItemService(connRepo, itemRepo, audit, log)
	orders := appconn.NewOrdersService(registry, connRepo, audit, log)
	webhooks := appconn.NewWebhookGuard(connRepo, audit, log)

	log.Info("Identity resolution configured",
		zap.Strings("strategies", resolver.Strategies()),
		zap.Stringers("platforms", registry.List()),
	)

	jobs, err := buildScheduler(cfg, connRepo, auditRepo, lifecycle, log)
	if err != nil {
		log.Fatal("Failed to configure scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	httpMetrics, err := middleware.NewHTTPMetrics("connhub")
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		if err := httpMetrics.RegisterDBStats(sqlDB, cfg.Database.DBName); err != nil {
			log.Warn("Failed to register database pool metrics", zap.Error(err))
		}
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(serviceName, providers.TracingEnabled()))
	engine.Use(middleware.TraceAnnotations())
	if cfg.Telemetry.PrometheusEnabled {
		engine.Use(httpMetrics.Middleware())
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	checks := map[string]handler.ReadinessCheck{
		"database": db.Ping,
	}
	if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["correlation_store"] = pinger.Ping
	}

	opts := router.Options{
		Auth: middleware.RequireAuth(middleware.AuthConfig{
			Authenticator: jwtService,
			SessionCookie: cfg.JWT.SessionCookieName,
			Logger:        log,
		}),
		Swagger: middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		},
		Profiling: cfg.Telemetry.ProfilingEnabled,
	}
	if cfg.Telemetry.PrometheusEnabled {
		opts.Metrics = httpMetrics.Handler()
	}

	router.Mount(engine, router.Handlers{
		OAuth: handler.NewOAuthHandler(authorizer, lifecycle, handler.OAuthConfig{
			CompletionURL:  cfg.Completion.RedirectURL,
			SessionCookie:  cfg.JWT.SessionCookieName,
			CorrelationKey: cfg.NextEngine.CorrelationQueryKey,
		}, log),
		Connections: handler.NewConnectionHandler(lifecycle, items, orders),
		Webhooks:    handler.NewWebhookHandler(webhooks),
		System:      handler.NewSystemHandler(cfg.App.Name, version, registry.List(), checks),
	}, opts)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	if jobs != nil {
		jobs.Start()
		log.Info("Scheduler started", zap.Strings("jobs", jobs.Jobs()))
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if jobs != nil {
		if err := jobs.Stop(ctx); err != nil {
			log.Warn("Scheduler did not stop cleanly", zap.Error(err))
		}
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Audit.DrainTimeout)
	if err := audit.Wait(drainCtx); err != nil {
		log.Warn("Pending audit writes abandoned", zap.Error(err))
	}
	drainCancel()

	if err := store.Close(); err != nil {
		log.Warn("Failed to close correlation store", zap.Error(err))
	}
	if err := providers.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush telemetry", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Failed to stop profiler", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}

	log.Info("Server exited")
}
