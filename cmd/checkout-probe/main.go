package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manucarbs/ecommerce-monorepo/internal/cart"
	"github.com/manucarbs/ecommerce-monorepo/internal/checkout"
	"github.com/manucarbs/ecommerce-monorepo/internal/orders"
	"github.com/manucarbs/ecommerce-monorepo/internal/payments/squareconfirm"
	"github.com/manucarbs/ecommerce-monorepo/internal/payments/widget"
	"github.com/manucarbs/ecommerce-monorepo/pkg/config"
	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
	"github.com/manucarbs/ecommerce-monorepo/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "checkout-probe"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "checkout-probe",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	cartClient, err := cart.NewClient(cfg.Cart, logg)
	if err != nil {
		logg.Error(ctx, "failed to build cart client", err)
		os.Exit(1)
	}
	gateway, err := orders.NewClient(cfg.Backend, logg)
	if err != nil {
		logg.Error(ctx, "failed to build order gateway", err)
		os.Exit(1)
	}
	confirmGateway, err := squareconfirm.NewGateway(ctx, cfg.Square, logg)
	if err != nil {
		logg.Error(ctx, "failed to build square confirm gateway", err)
		os.Exit(1)
	}
	adapter, err := widget.NewAdapter(confirmGateway, logg, checkoutMetrics)
	if err != nil {
		logg.Error(ctx, "failed to build widget adapter", err)
		os.Exit(1)
	}
	orchestrator, err := checkout.New(checkout.Params{
		Gateway: gateway,
		Widget:  adapter,
		Logger:  logg,
		Metrics: checkoutMetrics,
		Config:  cfg.Checkout,
	})
	if err != nil {
		logg.Error(ctx, "failed to build orchestrator", err)
		os.Exit(1)
	}
	orchestrator.Subscribe(func(session checkout.Session) {
		fields := map[string]any{"step": string(session.Step)}
		if session.LastError != nil {
			fields["error_kind"] = string(session.LastError.Kind)
		}
		logg.Info(logg.WithFields(ctx, fields), "session transition")
	})

	service, err := NewService(ServiceParams{
		Config:       cfg.Probe,
		Logger:       logg,
		Cart:         cartClient,
		Orchestrator: orchestrator,
		Tokens:       confirmGateway,
	})
	if err != nil {
		logg.Error(ctx, "failed to build probe service", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "probe http server stopped unexpectedly", err)
		}
	}()

	runErr := service.Run(ctx)
	if runErr != nil {
		dump := pkgerrors.Dump(runErr)
		failCtx := logg.WithFields(ctx, map[string]any{
			"kind":     string(dump.Kind),
			"recovery": dump.Recovery,
			"chain":    dump.Chain,
		})
		logg.Error(failCtx, "probe checkout failed", runErr)
		orchestrator.Cancel(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error shutting down probe http server", err)
	}

	if runErr != nil {
		os.Exit(1)
	}
}
