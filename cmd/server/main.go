package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/api"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/config"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/gateway"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/gateway/easylink"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/gateway/netzme"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/handler"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/kafka"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/redis"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/jobs"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/ledger"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/observability"
	core "github.com/writdev-alt/easylink-webhook-sub000/internal/repository/postgres"
	service "github.com/writdev-alt/easylink-webhook-sub000/internal/services"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	shutdownTracing, metricsHandler := observability.Setup(ctx, "payment-webhook-service", cfg)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to open Postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		slog.Error("failed to reach Postgres", "error", err)
		os.Exit(1)
	}

	trxRepo := core.NewPostgresTransactionRepository(db, cfg.Sandbox)
	walletRepo := core.NewPostgresWalletRepository(db)
	merchantRepo := core.NewPostgresMerchantRepository(db)
	callRepo := core.NewPostgresWebhookCallRepository(db)
	logRepo := core.NewPostgresWebhookLogRepository(db)

	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		slog.Error("failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	locker := redis.NewLocker(redisClient, "notify:")

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()
	dispatcher := webhook.NewDispatcher(trxRepo, merchantRepo, webhook.NewKafkaQueue(producer, cfg.Webhook.Topic))

	walletLedger := ledger.New(walletRepo, cfg.Sandbox)
	trxService := service.NewTransactionService(trxRepo, walletLedger, dispatcher)

	netzmeKey, err := netzme.ParsePublicKey(cfg.Netzme.PublicKeyPEM)
	if err != nil {
		// Without a key every Netzme notification is rejected.
		slog.Warn("Netzme public key unavailable", "error", err)
	}
	easylinkAdapter := easylink.NewAdapter(trxService, easylink.NewClient(cfg.Easylink, redisClient), cfg.Easylink.CallbackSecret)
	registry := gateway.NewRegistry(
		netzme.NewAdapter(trxService, netzmeKey),
		easylinkAdapter,
	)

	deliverer := webhook.NewDeliverer(cfg.Webhook.Timeout, cfg.Webhook.MaxAttempts, cfg.Webhook.InitialBackoff, webhook.NewLogRecorder(logRepo))
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.Webhook.Topic, cfg.Webhook.GroupID, deliverer.Handle)
	defer consumer.Close()
	var consumers sync.WaitGroup
	consumers.Add(1)
	go func() {
		defer consumers.Done()
		consumer.Consume(ctx)
	}()

	scheduler := jobs.NewScheduler()
	scheduler.Add("stale_reaper", cfg.Jobs.ReaperInterval,
		service.NewReaper(trxRepo, trxService, cfg.Jobs.StaleAfter, cfg.Jobs.BatchSize))
	scheduler.Add("hold_release", cfg.Jobs.ReleaseInterval,
		service.NewHoldReleaser(trxRepo, walletLedger, cfg.Jobs.HoldPeriod, cfg.Jobs.BatchSize))
	scheduler.Add("easylink_reconcile", cfg.Jobs.ReconcileInterval,
		easylink.NewSweeper(trxRepo, easylinkAdapter, cfg.Jobs.ReconcileAfter, cfg.Jobs.BatchSize))
	scheduler.Start(ctx)

	h := handler.NewHandler(registry, callRepo, locker, trxService, dispatcher, cfg.Debug)
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.SetupRouter(h, metricsHandler, cfg.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", server.Addr, "sandbox", cfg.Sandbox)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	scheduler.Wait()
	consumers.Wait()
	slog.Info("server stopped")
}
