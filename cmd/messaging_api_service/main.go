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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	allochttp "github.com/zapdesk/golang_services/internal/allocation_service/transport/http"

	allocapp "github.com/zapdesk/golang_services/internal/allocation_service/app"
	allocpg "github.com/zapdesk/golang_services/internal/allocation_service/repository/postgres"
	complianceapp "github.com/zapdesk/golang_services/internal/compliance_service/app"
	compliancepg "github.com/zapdesk/golang_services/internal/compliance_service/repository/postgres"
	convpg "github.com/zapdesk/golang_services/internal/conversation_service/repository/postgres"
	"github.com/zapdesk/golang_services/internal/dispatch_service/adapters/gateway"
	dispatchapp "github.com/zapdesk/golang_services/internal/dispatch_service/app"
	dispatchpg "github.com/zapdesk/golang_services/internal/dispatch_service/repository/postgres"
	dispatchhttp "github.com/zapdesk/golang_services/internal/dispatch_service/transport/http"
	"github.com/zapdesk/golang_services/internal/notification"
	"github.com/zapdesk/golang_services/internal/platform/circuitbreaker"
	"github.com/zapdesk/golang_services/internal/platform/config"
	"github.com/zapdesk/golang_services/internal/platform/database"
	"github.com/zapdesk/golang_services/internal/platform/logger"
	"github.com/zapdesk/golang_services/internal/platform/messagebroker"
	reputationapp "github.com/zapdesk/golang_services/internal/reputation_service/app"
)

const serviceName = "messaging_api_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Messaging API service starting...", "port", cfg.MessagingAPIPort)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
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

	// Repositories
	lineRepo := allocpg.NewPgLineRepository(dbPool, appLogger)
	bindingRepo := allocpg.NewPgLineBindingRepository(dbPool, appLogger)
	operatorRepo := allocpg.NewPgOperatorRepository(dbPool, appLogger)
	segmentRepo := allocpg.NewPgSegmentRepository(dbPool, appLogger)
	settingsRepo := allocpg.NewPgSettingsRepository(dbPool, appLogger)
	convRepo := convpg.NewPgConversationRepository(dbPool, appLogger)
	contactRepo := convpg.NewPgContactRepository(dbPool, appLogger)
	blocklistRepo := compliancepg.NewPgBlocklistRepository(dbPool, appLogger)
	templateRepo := dispatchpg.NewPgTemplateRepository(dbPool, appLogger)
	auditRepo := dispatchpg.NewPgAuditLogRepository(dbPool, appLogger)

	// Application services
	gate := complianceapp.NewGate(blocklistRepo, convRepo, appLogger)
	scorer := reputationapp.NewScorer(convRepo, cfg.ReputationCacheTTL, appLogger)
	rateGate := reputationapp.NewRateGate(scorer, convRepo, lineRepo, cfg.RateLimitEnforcementEnabled, appLogger)
	allocator := allocapp.NewAllocator(dbPool, lineRepo, bindingRepo, operatorRepo, segmentRepo, settingsRepo,
		cfg.DefaultSegmentName, allocapp.NewRandomRemovalPolicy(), notifier, notifier, appLogger)

	breakers := circuitbreaker.NewManager(circuitbreaker.Config{
		CallTimeout:      cfg.BreakerCallTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
		WindowSize:       cfg.BreakerWindowSize,
	}, appLogger)
	gatewayClient := gateway.NewHTTPClient(appLogger, cfg.GatewayBaseURL, cfg.GatewayAPIKey,
		cfg.GatewaySendTimeout, cfg.GatewayFetchTimeout, nil)
	pacer := dispatchapp.NewLinePacer(cfg.LinePaceSendsPerSecond, cfg.LinePaceBurst)
	expander := dispatchapp.NewSpintaxExpander(cfg.SpintaxMaxIterations)

	pipeline := dispatchapp.NewPipeline(gate, operatorRepo, allocator, lineRepo, rateGate,
		templateRepo, convRepo, contactRepo, auditRepo, gatewayClient, breakers,
		expander, pacer.Wait, cfg.BulkWorkers, appLogger)

	// HTTP wiring
	validate := validator.New()
	dispatchHandler := dispatchhttp.NewDispatchHandler(pipeline, validate, appLogger)
	reputationHandler := dispatchhttp.NewReputationHandler(rateGate, appLogger)
	webhookHandler := dispatchhttp.NewWebhookHandler(natsClient, appLogger)
	segmentHandler := allochttp.NewSegmentHandler(allocator, validate, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(dispatchhttp.PrometheusMetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		dispatchHandler.RegisterRoutes(v1)
		reputationHandler.RegisterRoutes(v1)
		webhookHandler.RegisterRoutes(v1)
		segmentHandler.RegisterRoutes(v1)
	})

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MessagingAPIPort), Handler: r}
	go func() {
		appLogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan
	appLogger.Info("Shutdown signal received, shutting down HTTP server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	appLogger.Info("Messaging API service shut down.")
}
