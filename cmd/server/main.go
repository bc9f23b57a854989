package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"aegis/internal/guard"
	guardconfig "aegis/internal/guard/config"
	gmetrics "aegis/internal/guard/metrics"
	"aegis/internal/guard/observability"
	"aegis/internal/guard/service/throttle"
	"aegis/internal/guard/store/entry"
	"aegis/internal/guard/tracer"
	"aegis/internal/guard/workers/sweeper"
	"aegis/internal/platform/config"
	"aegis/internal/platform/httpserver"
	"aegis/internal/platform/logger"
	profileservice "aegis/internal/profile/service"
	profilestore "aegis/internal/profile/store"
	httptransport "aegis/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logger.New("info").Error("configuration error", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	log.Info("initializing aegis",
		"addr", cfg.Addr,
		"sweep_interval", cfg.SweepInterval,
		"csrf_max_age", cfg.CSRFMaxAge,
	)

	gcfg := guardconfig.Default()
	gcfg.CSRFMaxAge = cfg.CSRFMaxAge
	gcfg.SweepInterval = cfg.SweepInterval
	gcfg.Limits = cfg.Limits

	collectors := gmetrics.New()
	publisher := observability.NewMinLevelPublisher(observability.NewLogPublisher(log), observability.RiskMedium)
	entryStore := entry.New()

	g, err := guard.New(entryStore,
		guard.WithLogger(log),
		guard.WithPublisher(publisher),
		guard.WithConfig(gcfg),
		guard.WithCollectors(collectors),
		guard.WithTracer(tracer.NewOTel()),
	)
	if err != nil {
		log.Error("guard initialization failed", "error", err)
		os.Exit(1)
	}

	profiles, err := profileservice.New(profilestore.New(), g,
		profileservice.WithLogger(log),
	)
	if err != nil {
		log.Error("profile service initialization failed", "error", err)
		os.Exit(1)
	}

	limiter := throttle.New(cfg.ThrottlePerSecond, cfg.ThrottleBurst,
		throttle.WithLogger(log),
		throttle.WithCollectors(collectors),
	)

	sweep := sweeper.New(entryStore,
		sweeper.WithLogger(log),
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithConfig(gcfg),
		sweeper.WithCollectors(collectors),
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:        log,
		Guard:         g,
		Profiles:      profiles,
		Throttle:      limiter,
		JWTSigningKey: cfg.JWTSigningKey,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		return srv.ListenAndServe()
	})

	grp.Go(func() error {
		if err := sweep.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	grp.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return g.Close(shutdownCtx)
	})

	if err := grp.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
