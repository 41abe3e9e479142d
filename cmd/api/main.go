package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/config"
	"github.com/tessera-live/tessera/internal/logging"
	"github.com/tessera-live/tessera/internal/storage/object"
	"github.com/tessera-live/tessera/internal/storage/postgres"
	transporthttp "github.com/tessera-live/tessera/internal/transport/http"
	"github.com/tessera-live/tessera/migrations"
)

const (
	startupTimeout     = 10 * time.Second
	shutdownTimeout    = 10 * time.Second
	dispatchInterval   = 5 * time.Second
	exportPollInterval = 2 * time.Second
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Error("db ping", "error", err)
		os.Exit(1)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	var store object.Storage
	if cfg.ObjectStore.Endpoint != "" {
		store, err = object.NewMinIO(cfg.ObjectStore)
		if err != nil {
			logger.Error("object store", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("OBJECT_STORE_ENDPOINT not set, keeping export artifacts in memory")
		store = object.NewMemory()
	}

	clk := clock.NewSystem()

	organizerSvc := app.NewOrganizerService(postgres.NewOrganizerRepository(pool))
	eventSvc := app.NewEventService(postgres.NewEventRepository(pool), clk)
	catalogSvc := app.NewCatalogService(postgres.NewCatalogRepository(pool), clk)
	voucherSvc := app.NewVoucherService(postgres.NewVoucherRepository(pool), clk)
	discountSvc := app.NewDiscountService(postgres.NewDiscountRepository(pool))
	giftCardSvc := app.NewGiftCardService(postgres.NewGiftCardRepository(pool), clk)
	checkinSvc := app.NewCheckinService(postgres.NewCheckinRepository(pool), clk)
	teamSvc := app.NewTeamService(postgres.NewTeamRepository(pool), clk)
	webhookSvc := app.NewWebhookService(postgres.NewWebhookRepository(pool), clk, nil, logger)
	exportSvc := app.NewExportService(
		postgres.NewExportRepository(pool), postgres.NewExportData(pool), store, clk, logger)

	eventSvc.SetNotifier(webhookSvc)
	giftCardSvc.SetNotifier(webhookSvc)
	checkinSvc.SetNotifier(webhookSvc)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := transporthttp.NewMetrics(registry)
	if err != nil {
		logger.Error("register metrics", "error", err)
		os.Exit(1)
	}

	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Logger:      logger,
		Auth:        teamSvc,
		Metrics:     metrics,
		CORSOrigins: parseCSV(cfg.Server.CORSOrigins),
		BaseURL:     cfg.Server.BaseURL,

		Organizers: organizerSvc,
		Events:     eventSvc,
		Catalog:    catalogSvc,
		Vouchers:   voucherSvc,
		Discounts:  discountSvc,
		GiftCards:  giftCardSvc,
		Positions:  checkinSvc,
		Checkin:    checkinSvc,
		Teams:      teamSvc,
		Webhooks:   webhookSvc,
		Exports:    exportSvc,

		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go webhookSvc.RunDispatcher(workerCtx, dispatchInterval)
	go exportSvc.RunWorkers(workerCtx, cfg.ExportWorkers, exportPollInterval)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api listening", "port", cfg.Server.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
