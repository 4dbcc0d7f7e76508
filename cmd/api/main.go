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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-concierge/cmd/mainconfig"
	"github.com/wolfman30/clinic-concierge/internal/api/router"
	"github.com/wolfman30/clinic-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-concierge/internal/config"
	"github.com/wolfman30/clinic-concierge/internal/conversation"
	observemetrics "github.com/wolfman30/clinic-concierge/internal/observability/metrics"
	"github.com/wolfman30/clinic-concierge/internal/whatsapp"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting clinic-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"llm_provider", cfg.LLMProvider,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}

	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	bundle, err := bootstrap.LoadCatalog(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	settings, err := bootstrap.ConversationSettings(cfg)
	if err != nil {
		return err
	}
	llmClient, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeLLM()

	metricsHandler, messagingMetrics := setupMessagingMetrics()
	orchestrator := conversation.NewOrchestrator(stores.Customers, bundle, llmClient, settings, logger)

	queue, err := bootstrap.BuildQueue(cfg, awsCfg)
	if err != nil {
		return err
	}
	publisher := conversation.NewPublisher(queue, logger)

	messenger, reason := setupMessenger(cfg, messagingMetrics, logger)
	if reason != "" {
		logger.Warn("whatsapp sending disabled; replies will only be logged", "reason", reason)
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	worker := conversation.NewWorker(orchestrator, queue, messenger, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithProcessedStore(stores.Processed),
	)
	worker.Start(workerCtx)

	webhook := whatsapp.NewWebhookHandler(whatsapp.WebhookConfig{
		VerifyToken: cfg.WhatsAppVerifyToken,
		AppSecret:   cfg.WhatsAppAppSecret,
		Sink:        publisher,
		Logger:      logger,
		Metrics:     messagingMetrics,
	})

	var customerHandler *conversation.Handler
	if strings.TrimSpace(cfg.AdminJWTSecret) != "" {
		customerHandler = conversation.NewHandler(stores.Customers, logger)
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes disabled")
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(&router.Config{
			Logger:          logger,
			Webhook:         webhook,
			CustomerHandler: customerHandler,
			AdminAuthSecret: cfg.AdminJWTSecret,
			MetricsHandler:  metricsHandler,
			HealthChecks:    stores.HealthChecks,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
	case err := <-serverErr:
		if err != nil {
			cancelWorkers()
			waitForWorker(worker, logger)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancelWorkers()
	waitForWorker(worker, logger)
	return nil
}

// setupMessagingMetrics builds a private registry carrying the runtime, conversation and
// messaging collectors, and the handler that exposes it.
func setupMessagingMetrics() (http.Handler, *observemetrics.MessagingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	conversation.RegisterMetrics(reg)
	messagingMetrics := observemetrics.NewMessagingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), messagingMetrics
}

// setupMessenger returns the WhatsApp client when credentials are present. Otherwise it returns a
// messenger that only logs, with the reason sending is disabled.
func setupMessenger(cfg *appconfig.Config, metrics *observemetrics.MessagingMetrics, logger *logging.Logger) (conversation.ReplyMessenger, string) {
	if strings.TrimSpace(cfg.WhatsAppAccessToken) == "" || strings.TrimSpace(cfg.WhatsAppPhoneNumberID) == "" {
		return logMessenger{logger: logger}, "missing WHATSAPP_ACCESS_TOKEN or WHATSAPP_PHONE_NUMBER_ID"
	}
	client, err := whatsapp.New(whatsapp.Config{
		BaseURL:       cfg.WhatsAppAPIBaseURL,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		return logMessenger{logger: logger}, err.Error()
	}
	return client, ""
}

type logMessenger struct {
	logger *logging.Logger
}

func (m logMessenger) SendReply(_ context.Context, reply conversation.OutboundReply) error {
	m.logger.Info("reply not sent", "to", reply.To, "job_id", reply.JobID, "body_len", len(reply.Body))
	return nil
}

func waitForWorker(worker *conversation.Worker, logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("conversation workers stopped")
	case <-time.After(30 * time.Second):
		logger.Error("conversation worker shutdown timed out")
	}
}
