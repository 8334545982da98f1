// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/gekyxme/relnodes/internal/api"
	"github.com/gekyxme/relnodes/internal/archive"
	"github.com/gekyxme/relnodes/internal/auth"
	"github.com/gekyxme/relnodes/internal/config"
	"github.com/gekyxme/relnodes/internal/connection"
	"github.com/gekyxme/relnodes/internal/db"
	"github.com/gekyxme/relnodes/internal/geocache"
	"github.com/gekyxme/relnodes/internal/geocode"
	"github.com/gekyxme/relnodes/internal/health"
	"github.com/gekyxme/relnodes/internal/importer"
	"github.com/gekyxme/relnodes/internal/jobs"
	"github.com/gekyxme/relnodes/internal/middleware"
	"github.com/gekyxme/relnodes/internal/tracing"
	"github.com/gekyxme/relnodes/internal/user"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Relnodes API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := make([]any, 0, 2)
	for key, value := range cfg.LogSummary() {
		summary = append(summary, key, value)
	}
	logger.Info("configuration loaded", summary...)

	// Tracing is on only when an OTLP endpoint is configured.
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "relnodes-api",
		Enabled:      cfg.OTLPEndpoint != "",
		Environment:  cfg.Env,
		ExporterType: "otlp-http",
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: tracing.DefaultSamplingRate(cfg.Env),
		InsecureMode: cfg.Env == "development",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	users := user.NewPostgresRepository(pool, logger)
	conns := connection.NewPostgresRepository(pool, logger)
	cache := geocache.NewPostgresRepository(pool, logger)

	// Metrics registry: HTTP middleware metrics plus pipeline job metrics.
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Rate limit storage: Redis when configured, per-process otherwise.
	var rateLimitStore middleware.RateLimitStore
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
		rateLimitStore = memStore
	}

	currentSecret, previousSecret := cfg.GetJWTSecrets()
	var jwtService *auth.JWTService
	if previousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(currentSecret, previousSecret)
		logger.Info("jwt secret rotation window active")
	} else {
		jwtService = auth.NewJWTService(currentSecret)
	}

	lookupClient := geocode.NewClient(
		geocode.WithEndpoint(cfg.GeocodeEndpoint),
		geocode.WithRequestInterval(time.Duration(cfg.GeocodeIntervalMS)*time.Millisecond),
	)
	resolver := geocode.NewBatchResolver(conns, cache, lookupClient, logger,
		geocode.WithBatchSize(cfg.GeocodeBatchSize),
		geocode.WithMetrics(jobMetrics),
	)
	driver := geocode.NewDriver(resolver.Resolve, logger)

	var archiveSvc *archive.Service
	if cfg.ArchiveEnabled() {
		archiveSvc, err = archive.NewService(archive.ServiceConfig{
			BucketName:      cfg.ArchiveBucketName,
			AccessKeyID:     cfg.ArchiveAccessKeyID,
			SecretAccessKey: cfg.ArchiveSecretAccessKey,
			Endpoint:        cfg.ArchiveEndpoint,
			Region:          cfg.ArchiveRegion,
		})
		if err != nil {
			logger.Error("failed to initialize archive storage", "error", err)
			os.Exit(1)
		}
		logger.Info("csv archive enabled", "bucket", cfg.ArchiveBucketName)
	}

	authHandlers := api.NewAuthHandlers(users, jwtService)
	userHandlers := api.NewUserHandlers(users)
	connectionHandlers := api.NewConnectionHandlers(conns)
	uploadHandlers := api.NewUploadHandlers(importer.NewEngine(conns, logger), archiveSvc, jobMetrics, cfg.MaxUploadBytes())
	// Worst case, every row in a batch misses the cache and waits out the
	// pacer; the margin covers DB work around the lookups.
	batchBudget := time.Duration(cfg.GeocodeBatchSize*cfg.GeocodeIntervalMS)*time.Millisecond + 30*time.Second
	geocodeHandlers := api.NewGeocodeHandlers(resolver, batchBudget)
	progressHandlers := api.NewProgressWebSocketHandlers(driver, cfg.AllowedOriginList())
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    health.NewDBChecker(pool),
		RedisChecker: redisChecker,
	})

	requireAuth := api.RequireAuth(jwtService)
	registerLimit := middleware.RateLimiter(rateLimitStore, middleware.DefaultRegisterLimit(), middleware.IPKeyFunc())
	loginLimit := middleware.RateLimiter(rateLimitStore, middleware.DefaultLoginLimit(), middleware.IPKeyFunc())
	geocodeLimit := middleware.RateLimiter(rateLimitStore, middleware.DefaultGeocodeLimit(), middleware.UserKeyFunc())

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.Handle("/auth/register", registerLimit(http.HandlerFunc(authHandlers.Register)))
	mux.Handle("/auth/login", loginLimit(http.HandlerFunc(authHandlers.Login)))
	mux.Handle("/auth/refresh", loginLimit(http.HandlerFunc(authHandlers.Refresh)))

	mux.Handle("/user/location", requireAuth(http.HandlerFunc(userHandlers.Location)))
	mux.Handle("/connections", requireAuth(http.HandlerFunc(connectionHandlers.Collection)))
	mux.Handle("/connections/", requireAuth(http.HandlerFunc(connectionHandlers.Item)))
	mux.Handle("/upload", requireAuth(http.HandlerFunc(uploadHandlers.Upload)))
	mux.Handle("/geocode", requireAuth(geocodeLimit(http.HandlerFunc(geocodeHandlers.Batch))))
	mux.Handle("/geocode/progress", requireAuth(http.HandlerFunc(progressHandlers.Stream)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"relnodes-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Outermost first: request ID, tracing, logging, metrics, CORS, then the
	// per-route middleware registered above.
	var handler http.Handler = mux
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOriginList(),
		AllowCredentials: true,
	})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if tracingProvider.IsEnabled() {
		handler = middleware.Tracing("relnodes-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}
