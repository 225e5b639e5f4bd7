package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/campadventure/signup/internal/config"
	"github.com/campadventure/signup/internal/domain/registration"
	"github.com/campadventure/signup/internal/platform/auth"
	"github.com/campadventure/signup/internal/platform/blobstore"
	"github.com/campadventure/signup/internal/platform/db"
	"github.com/campadventure/signup/internal/platform/metrics"
	"github.com/campadventure/signup/internal/platform/middleware"
	"github.com/campadventure/signup/internal/platform/notification"
	"github.com/campadventure/signup/internal/platform/telemetry"
	"github.com/campadventure/signup/internal/platform/websocket"
)

const version = "0.1.0"

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// levelOrWarn raises the configured level to at least warn.
func levelOrWarn(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level < zerolog.WarnLevel {
		return zerolog.WarnLevel
	}
	return level
}

// deps is everything a front-end needs to run registrations.
type deps struct {
	Service *registration.Service
	Hub     *websocket.Hub
	Metrics *metrics.Metrics
	Blobs   blobstore.BlobStore
	Pool    *pgxpool.Pool
	Tracing *telemetry.Provider

	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func newSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if cfg.ResolvedEmailSender() == config.SenderResend {
		return notification.NewResendSender(cfg.ResendAPIKey,
			notification.WithBaseURL(cfg.ResendBaseURL),
			notification.WithHTTPClient(&http.Client{Timeout: cfg.SendTimeout}),
		)
	}
	return notification.LogSender{Logger: logger.With().Str("component", "email").Logger()}
}

// buildDeps wires storage, email and the service. A nil hub leaves progress
// events unpublished.
func buildDeps(ctx context.Context, cfg *config.Config, logger zerolog.Logger, hub *websocket.Hub) (*deps, error) {
	d := &deps{Hub: hub}

	var reg *prometheus.Registry
	if hub != nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		d.Metrics = metrics.New(reg)

		tp, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName:    "camp-server",
			ServiceVersion: version,
			Environment:    cfg.Env,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			TracingEnabled: telemetry.BoolPtr(cfg.TracingEnabled),
			SampleRate:     cfg.TraceSampleRate,
		})
		if err != nil {
			return nil, err
		}
		d.Tracing = tp
		d.closers = append(d.closers, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(sctx); err != nil {
				logger.Warn().Err(err).Msg("flushing traces")
			}
		})
		if tp.Enabled() {
			logger.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("exporting traces")
		}
	}

	var repo registration.RegistrationRepository
	if cfg.UsesPostgres() {
		pool, err := db.NewPool(ctx, poolConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		d.Pool = pool
		d.closers = append(d.closers, pool.Close)
		repo = registration.NewRegistrationRepoPG(pool)
	} else {
		repo = registration.NewRegistrationRepoMemory()
		logger.Warn().Msg("DATABASE_URL not set; completed registrations are kept in memory")
	}

	if cfg.UsesS3() {
		store, err := blobstore.NewS3StoreFromEnv(ctx, cfg.AWSRegion, cfg.BadgeBucket, cfg.BadgePrefix)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Blobs = store
		logger.Info().Str("bucket", cfg.BadgeBucket).Msg("archiving badges to s3")
	} else {
		d.Blobs = blobstore.NewInMemoryBlobStore()
	}

	dispatcher := notification.NewDispatcher(newSender(cfg, logger),
		notification.WithFrom(cfg.EmailFrom),
		notification.WithLogger(logger.With().Str("component", "dispatcher").Logger()),
		notification.WithMetrics(d.Metrics),
	)

	validator := registration.Validator{Insurance: registration.RetainStale}
	if cfg.ClearStaleInsurance {
		validator.Insurance = registration.ClearOnUncheck
	}

	opts := []registration.ServiceOption{
		registration.WithRepository(repo),
		registration.WithBlobStore(d.Blobs),
		registration.WithMetrics(d.Metrics),
		registration.WithLogger(logger.With().Str("component", "registration").Logger()),
		registration.WithMaxBadgeBytes(cfg.MaxBadgeBytes),
	}
	if hub != nil {
		opts = append(opts, registration.WithEvents(hub))
	}
	d.Service = registration.NewService(registration.NewSessionManager(cfg.SessionTTL), validator, dispatcher, opts...)
	return d, nil
}

// newServer builds the echo instance with every route mounted.
func newServer(cfg *config.Config, logger zerolog.Logger, d *deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	if d.Tracing != nil {
		e.Use(d.Tracing.Middleware())
	}
	e.Use(middleware.Logger(logger))
	e.Use(d.Metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, "traceparent"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.BadgeBodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.Pool != nil {
		e.GET("/health/db", db.HealthHandler(d.Pool))
	}
	e.GET("/metrics", d.Metrics.Handler())
	if d.Hub != nil {
		websocket.NewHandler(d.Hub, cfg.CORSOrigins).RegisterRoutes(e)
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	rateLimitCfg.KeyFunc = middleware.SessionKey
	rateLimitCfg.Skipper = func(c echo.Context) bool { return c.Request().Method == http.MethodGet }

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(rateLimitCfg))

	admin := api.Group("/admin", auth.JWTMiddleware(adminJWTConfig(cfg)))
	registration.NewHandler(d.Service).RegisterRoutes(api, admin)
	blobstore.NewBlobHandler(d.Blobs).RegisterRoutes(admin.Group("", auth.RequireAdmin()))

	return e
}

// sweep expires idle sessions until ctx ends.
func sweep(ctx context.Context, svc *registration.Service, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			svc.Sweep(now)
		}
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	hub := websocket.NewHub(logger.With().Str("component", "ws").Logger())
	d, err := buildDeps(ctx, cfg, logger, hub)
	if err != nil {
		return err
	}
	defer d.Close()

	e := newServer(cfg, logger, d)
	go sweep(ctx, d.Service, cfg.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("email_sender", cfg.ResolvedEmailSender()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
