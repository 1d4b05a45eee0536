package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	allocpg "github.com/zapdesk/golang_services/internal/allocation_service/repository/postgres"
	convapp "github.com/zapdesk/golang_services/internal/conversation_service/app"
	convpg "github.com/zapdesk/golang_services/internal/conversation_service/repository/postgres"
	"github.com/zapdesk/golang_services/internal/dispatch_service/adapters/gateway"
	inboundapp "github.com/zapdesk/golang_services/internal/inbound_processor_service/app"
	inboundpg "github.com/zapdesk/golang_services/internal/inbound_processor_service/repository/postgres"
	"github.com/zapdesk/golang_services/internal/notification"
	"github.com/zapdesk/golang_services/internal/platform/config"
	"github.com/zapdesk/golang_services/internal/platform/database"
	"github.com/zapdesk/golang_services/internal/platform/logger"
	"github.com/zapdesk/golang_services/internal/platform/messagebroker"
)

const serviceName = "inbound_processor_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Inbound processor service starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Connected to NATS")

	notifier := notification.NewNotifier(natsClient, appLogger)

	lineRepo := allocpg.NewPgLineRepository(dbPool, appLogger)
	operatorRepo := allocpg.NewPgOperatorRepository(dbPool, appLogger)
	convRepo := convpg.NewPgConversationRepository(dbPool, appLogger)
	contactRepo := convpg.NewPgContactRepository(dbPool, appLogger)
	stickyRepo := convpg.NewPgStickyBindingRepository(dbPool, appLogger)
	reportRepo := inboundpg.NewPgLineStateReportRepository(dbPool, appLogger)

	router := convapp.NewRouter(stickyRepo, convRepo, operatorRepo, appLogger)
	gatewayClient := gateway.NewHTTPClient(appLogger, cfg.GatewayBaseURL, cfg.GatewayAPIKey,
		cfg.GatewaySendTimeout, cfg.GatewayFetchTimeout, nil)

	processor := inboundapp.NewEventProcessor(lineRepo, router, convRepo, contactRepo,
		reportRepo, gatewayClient, notifier, appLogger)
	consumer := inboundapp.NewEventConsumer(natsClient, processor, appLogger)
	if err := consumer.Start(ctx); err != nil {
		appLogger.Error("Failed to start event consumer", "error", err)
		os.Exit(1)
	}

	// Metrics and health endpoint.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.InboundProcessorPort), Handler: mux}
	go func() {
		appLogger.Info("Metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics server failed to serve", "error", err)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan
	appLogger.Info("Shutdown signal received, draining subscriptions...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("Metrics server shutdown failed", "error", err)
	}
	appLogger.Info("Inbound processor service shut down.")
}
