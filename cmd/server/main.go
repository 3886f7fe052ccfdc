// Package main runs the butchery platform API server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	app "github.com/maxnate/infinit-butchery/internal/app"
	"github.com/maxnate/infinit-butchery/internal/app/cache"
	"github.com/maxnate/infinit-butchery/internal/app/httpapi"
	"github.com/maxnate/infinit-butchery/internal/app/metrics"
	"github.com/maxnate/infinit-butchery/internal/app/storage/memory"
	"github.com/maxnate/infinit-butchery/internal/app/storage/postgres"
	"github.com/maxnate/infinit-butchery/internal/config"
	"github.com/maxnate/infinit-butchery/internal/middleware"
	"github.com/maxnate/infinit-butchery/internal/platform/migrations"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "Path to env file")
	addr := flag.String("addr", "", "Listen address override")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.NewDefault("server").WithError(err).Fatal("load configuration")
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		WithField("component", "server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores := app.Stores{}
	if cfg.DatabaseDSN != "" {
		pg, err := postgres.Open(cfg.DatabaseDSN)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		defer pg.Close()
		if err := migrations.Apply(ctx, pg.DB()); err != nil {
			log.WithError(err).Fatal("apply migrations")
		}
		stores = app.Stores{Tenants: pg, Catalog: pg, Orders: pg, Delivery: pg, Payments: pg}
		log.Info("postgres storage ready")
	} else {
		mem := memory.New()
		stores = app.Stores{Tenants: mem, Catalog: mem, Orders: mem, Delivery: mem, Payments: mem}
		log.Warn("no DATABASE_URL set, using in-memory storage")
	}

	stockCache, err := cache.NewStockCache(cfg.RedisAddr, cfg.RedisPassword, cfg.StockCacheTTL)
	if err != nil {
		log.WithError(err).Fatal("connect to redis")
	}
	defer stockCache.Close()

	hub := httpapi.NewHub(log)
	defer hub.Close()

	application, err := app.New(stores, app.Options{StockCache: stockCache, Events: hub}, log)
	if err != nil {
		log.WithError(err).Fatal("build application")
	}

	gateways := config.LoadGatewaysOrDefault(cfg.GatewaysPath)
	if err := config.SeedGateways(ctx, stores.Payments, gateways); err != nil {
		log.WithError(err).Fatal("seed payment gateways")
	}

	apiHandler, err := httpapi.NewHandler(application, hub, httpapi.Config{
		AuthSecret:    cfg.AuthSecret,
		TokenTTL:      cfg.TokenTTL,
		AuditPath:     cfg.AuditPath,
		PlatformToken: cfg.PlatformToken,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("build http handler")
	}

	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler())
	router.PathPrefix("/").Handler(apiHandler)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	limiter.StartCleanup(10 * time.Minute)
	defer limiter.Stop()
	cors := middleware.NewCORS(cfg.CORSOrigins)

	handler := metrics.InstrumentHandler(cors.Handler(limiter.Handler(router)))

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application services")
	}

	go func() {
		log.Infof("listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}
	log.Info("server stopped")
}
