package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxgate/voxgate/internal/api"
	"github.com/voxgate/voxgate/internal/archive"
	"github.com/voxgate/voxgate/internal/call"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/dialplan"
	"github.com/voxgate/voxgate/internal/esl"
	"github.com/voxgate/voxgate/internal/metrics"
	"github.com/voxgate/voxgate/internal/routing"
	"github.com/voxgate/voxgate/internal/xmlcurl"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting voxgate",
		"http_port", cfg.HTTPPort,
		"engine_addr", cfg.EngineAddr,
		"data_dir", cfg.DataDir,
	)

	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	tenants := database.NewTenantRepository(db)
	extensions := database.NewExtensionRepository(db)
	rules := database.NewDialplanRuleRepository(db)
	trunks := database.NewTrunkRepository(db)
	inbound := database.NewInboundRouteRepository(db)
	outbound := database.NewOutboundRouteRepository(db)
	timeconds := database.NewTimeConditionRepository(db)
	sessions := database.NewCallSessionRepository(db)
	cdrs := database.NewCDRRepository(db)
	admins := database.NewAdminUserRepository(db)

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// Optional CDR archive warehouse.
	var archiver call.Archiver
	if cfg.ArchiveDSN != "" {
		store, err := archive.New(cfg.ArchiveDSN, logger)
		if err != nil {
			slog.Error("failed to open cdr archive", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		archiver = store
	} else {
		slog.Warn("no archive-dsn configured, cdrs are kept in sqlite only")
	}

	// Event plumbing: dispatcher, lifecycle tracker, engine client.
	dispatcher := esl.NewDispatcher(logger)
	tracker := call.NewTracker(sessions, cdrs, tenants, archiver, logger)
	tracker.Register(dispatcher)

	engine := esl.NewClient(esl.Config{
		Addr:          cfg.EngineAddr,
		Password:      cfg.EnginePassword,
		ReconnectBase: cfg.ReconnectBase,
		ReconnectCap:  cfg.ReconnectCap,
		MaxReconnects: cfg.MaxReconnects,
		Events:        cfg.EventList(),
	}, dispatcher, logger)

	engine.OnConnect = func() {
		slog.Info("engine session established", "addr", cfg.EngineAddr)
	}
	engine.OnDisconnect = func(err error) {
		slog.Warn("engine session lost", "error", err)
	}
	engine.OnExhausted = func() {
		slog.Error("engine reconnect attempts exhausted, shutting down")
		appCancel()
	}

	go engine.Run(appCtx)

	// Janitor force-closes calls whose hangup event never arrived.
	janitor := call.NewJanitor(sessions, tracker, logger, cfg.JanitorInterval, cfg.JanitorMaxAge)
	go janitor.Run(appCtx)

	controller := call.NewController(engine, logger)
	evaluator := dialplan.NewEvaluator(rules, logger)
	resolver := routing.NewResolver(inbound, outbound, trunks, timeconds, logger)

	// Metrics are gathered at scrape time from live providers.
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(engine, tracker, cdrs, time.Now()))

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		slog.Error("failed to load jwt secret", "error", err)
		os.Exit(1)
	}

	handler := api.NewServer(api.Deps{
		JWTSecret:   jwtSecret,
		CountryCode: cfg.CountryCode,
		Tenants:     tenants,
		Extensions:  extensions,
		Rules:       rules,
		Trunks:      trunks,
		Inbound:     inbound,
		Outbound:    outbound,
		TimeConds:   timeconds,
		Sessions:    sessions,
		CDRs:        cdrs,
		Admins:      admins,
		Evaluator:   evaluator,
		Resolver:    resolver,
		Tracker:     tracker,
		Controller:  controller,
		Engine:      engine,
		XMLCurl:     xmlcurl.NewHandler(tenants, extensions, rules, logger),
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:      logger,
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	case <-appCtx.Done():
		// OnExhausted cancelled the app context.
	}

	appCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("voxgate stopped")
}
