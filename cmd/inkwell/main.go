package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/inkwell-io/inkwell/pkg/api"
	"github.com/inkwell-io/inkwell/pkg/audit"
	"github.com/inkwell-io/inkwell/pkg/auth"
	"github.com/inkwell-io/inkwell/pkg/config"
	"github.com/inkwell-io/inkwell/pkg/federated"
	"github.com/inkwell-io/inkwell/pkg/mailer"
	"github.com/inkwell-io/inkwell/pkg/middleware"
	"github.com/inkwell-io/inkwell/pkg/observability"
	"github.com/inkwell-io/inkwell/pkg/storage/postgres"
	"github.com/inkwell-io/inkwell/pkg/uploads"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting inkwell auth service")

	ctx := context.Background()

	// OpenTelemetry export (no-op when disabled)
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize telemetry")
		os.Exit(1)
	}

	db, err := postgres.Connect(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	userStore, err := postgres.NewUserStore(db)
	if err != nil {
		logger.WithError(err).Error("failed to initialize user store")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	// Redis is optional; without it reads go straight to postgres and the
	// credential endpoints run unthrottled.
	var store auth.UserStore = userStore
	var limiter *middleware.DistributedRateLimiter
	redisClient, err := postgres.NewRedisClient(cfg.Storage)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, running without cache and rate limiting")
		redisClient = nil
	} else {
		if cfg.Storage.CacheEnabled {
			store = postgres.NewCachedUserStore(userStore, redisClient, cfg.Storage.CacheTTL, metrics)
		}
		limiter = middleware.NewDistributedRateLimiter(
			redisClient, middleware.CredentialRateLimitConfig(), "ratelimit:auth")
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("failed to initialize audit log")
		os.Exit(1)
	}

	smtpMailer, err := mailer.NewSMTPMailer(cfg.SMTP, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize mailer")
		os.Exit(1)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(cfg.Auth.TokenSecret),
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		logger.WithError(err).Error("failed to initialize token service")
		os.Exit(1)
	}
	resets := auth.NewResetTokenLedger(store, cfg.Auth.ResetTTL)

	service := auth.NewService(store, smtpMailer, tokens, resets, logger, auditLogger, auth.ServiceConfig{
		ResetURLBase: cfg.Auth.ResetURLBase,
	})

	opts := []api.Option{}
	if limiter != nil {
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	if cfg.Observability.OTelEnabled {
		opts = append(opts, api.WithTracing())
	}

	if cfg.Google.Enabled {
		provider, err := federated.NewGoogleProvider(ctx, cfg.Google)
		if err != nil {
			logger.WithError(err).Error("failed to initialize federated identity provider")
			os.Exit(1)
		}
		opts = append(opts, api.WithGoogleProvider(provider))
	}

	if cfg.Storage.S3Bucket != "" {
		imageStore, err := uploads.NewImageStore(ctx, cfg.Storage)
		if err != nil {
			logger.WithError(err).Error("failed to initialize image store")
			os.Exit(1)
		}
		opts = append(opts, api.WithImageStore(imageStore))
	}

	server := api.NewServer(service, logger, metrics, opts...)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate listener for probes
	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	// Periodic sweep of lapsed reset tickets
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Auth.ResetSweepSchedule, func() {
		defer observability.RecoverPanic(logger, "reset ticket sweep")
		sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cleared, err := userStore.ClearExpiredResetTickets(sweepCtx)
		if err != nil {
			logger.WithError(err).Warn("reset ticket sweep failed")
			return
		}
		if cleared > 0 {
			logger.WithField("cleared", cleared).Info("cleared expired reset tickets")
		}
	}); err != nil {
		logger.WithError(err).Error("failed to schedule reset ticket sweep")
		os.Exit(1)
	}
	sweeper.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		<-sweeper.Stop().Done()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	g := &errgroup.Group{}
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}
