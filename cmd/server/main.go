package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"land_leads_app_go/config"
	"land_leads_app_go/handlers"
	"land_leads_app_go/logging"
	"land_leads_app_go/middleware"
	"land_leads_app_go/services"
	"land_leads_app_go/services/campaigns"
	"land_leads_app_go/services/delivery"
	"land_leads_app_go/services/leadform"
	"land_leads_app_go/services/queue"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Campaigns
	registry, err := campaigns.NewRegistry(cfg.CampaignsFile, logger)
	if err != nil {
		log.Fatalf("Failed to load campaigns: %v", err)
	}

	// Queue storage
	store, closeStore, err := queue.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open submission queue: %v", err)
	}
	defer closeStore()

	// Lead delivery
	submitter, closeSubmitter, err := delivery.New(ctx, cfg, registry, logger)
	if err != nil {
		log.Fatalf("Failed to initialize %s submitter: %v", cfg.Submitter, err)
	}
	defer closeSubmitter()

	sessions := leadform.NewSessions(cfg.FormSessionTTL, cfg.ResetDwell)
	defer sessions.Close()

	pipeline := leadform.NewPipeline(submitter, store, leadform.WithLogger(logger.Named("pipeline")))

	monitor := services.NewSecurityMonitor(logger)

	formLimiter := middleware.NewPublicFormRateLimiter()
	defer formLimiter.Stop()
	apiLimiter := middleware.NewAPIRateLimiter()
	defer apiLimiter.Stop()

	srv := &handlers.Server{
		Config:      cfg,
		Leads:       handlers.NewLeadHandler(cfg, registry, sessions, pipeline, monitor, logger),
		Admin:       handlers.NewAdminHandler(registry, store, services.NewStorage(ctx, cfg), logger),
		Registry:    registry,
		Sessions:    sessions,
		FormLimiter: formLimiter,
		Monitor:     monitor,
		Logger:      logger,
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomiddleware.RequestID())
	e.Use(logging.RequestLogger(logger))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, handlers.TurnstileHeader},
	}))
	e.Use(apiLimiter.Middleware())

	srv.Register(e)
	if !cfg.AdminEnabled() {
		logger.Info("admin routes disabled: ADMIN_PASSWORD_HASH is not set")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := registry.Watch(gctx); err != nil {
			logger.Warn("campaign hot reload disabled", zap.Error(err))
		}
		return nil
	})

	// Evict idle form instances and stale security counters
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := sessions.Sweep(); n > 0 {
					logger.Debug("evicted idle forms", zap.Int("count", n))
				}
				monitor.Sweep()
			}
		}
	})

	g.Go(func() error {
		logger.Info("server starting",
			zap.String("port", cfg.ServerPort),
			zap.String("submitter", cfg.Submitter),
			zap.String("db_driver", cfg.DBDriver),
			zap.Int("campaigns", len(registry.List())),
		)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
