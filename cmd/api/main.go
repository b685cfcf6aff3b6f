package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/somasaidi/somasaidi/internal/ai"
	"github.com/somasaidi/somasaidi/internal/auth"
	"github.com/somasaidi/somasaidi/internal/awsx"
	"github.com/somasaidi/somasaidi/internal/config"
	"github.com/somasaidi/somasaidi/internal/fulfillment"
	"github.com/somasaidi/somasaidi/internal/handlers"
	"github.com/somasaidi/somasaidi/internal/metrics"
	"github.com/somasaidi/somasaidi/internal/middleware"
	"github.com/somasaidi/somasaidi/internal/mpesa"
	"github.com/somasaidi/somasaidi/internal/notify"
	"github.com/somasaidi/somasaidi/internal/ocr"
	"github.com/somasaidi/somasaidi/internal/payments"
	"github.com/somasaidi/somasaidi/internal/questions"
	"github.com/somasaidi/somasaidi/internal/subscriptions"
	"github.com/somasaidi/somasaidi/internal/uploads"
	"github.com/somasaidi/somasaidi/internal/users"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := awsx.NewClients(ctx)
	if err != nil {
		logger.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	hub := notify.NewHub()
	emitter := metrics.NewEmitter(clients.CloudWatch, cfg.MetricsNamespace, logger)

	userStore := users.NewStore(clients.DynamoDB, cfg.UsersTable)
	questionStore := questions.NewStore(clients.DynamoDB, cfg.QuestionsTable)
	paymentStore := payments.NewStore(clients.DynamoDB, cfg.PaymentsTable)

	storage := uploads.NewS3Storage(clients.S3, cfg.UploadBucket, cfg.UploadPrefix, cfg.UploadPublicBaseURL)
	textract := ocr.NewTextract(clients.Textract)
	gateway := mpesa.NewClient(cfg.Mpesa)
	generator := ai.NewClient(cfg.AI)

	jobQueue := fulfillment.NewQueue(awsx.NewPublisher(clients.SQS, cfg.FulfillmentQueueURL))

	questionSvc := questions.NewService(questionStore, userStore, storage, textract, hub, logger)
	orchestrator := payments.NewOrchestrator(paymentStore, questionStore, userStore, gateway, jobQueue, hub, emitter, logger)
	subscriptionSvc := subscriptions.NewService(orchestrator, userStore)

	fulfiller := fulfillment.NewFulfiller(questionStore, userStore, generator, hub, emitter, logger)
	worker := fulfillment.NewWorker(clients.SQS, cfg.FulfillmentQueueURL, fulfiller, logger)
	go worker.Run(ctx)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.ErrorHandler(logger),
	)
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	handlers.Register(r, handlers.Config{
		Questions:      questionSvc,
		Payments:       orchestrator,
		Subscriptions:  subscriptionSvc,
		Hub:            hub,
		Verifier:       auth.NewVerifier(cfg.JWTSecret),
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
