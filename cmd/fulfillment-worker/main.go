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

	"github.com/Chidera001-dev/e-commerce-system/internal/cache"
	"github.com/Chidera001-dev/e-commerce-system/internal/cart"
	"github.com/Chidera001-dev/e-commerce-system/internal/config"
	"github.com/Chidera001-dev/e-commerce-system/internal/deadletter"
	"github.com/Chidera001-dev/e-commerce-system/internal/fulfillment"
	"github.com/Chidera001-dev/e-commerce-system/internal/metrics"
	"github.com/Chidera001-dev/e-commerce-system/internal/notification"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
	"github.com/Chidera001-dev/e-commerce-system/internal/shipping"
	"github.com/Chidera001-dev/e-commerce-system/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("fulfillment-worker", cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fulfillment worker stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewRepository(&repository.Credentials{
		Host:        cfg.DBHost,
		Port:        cfg.DBPort,
		User:        cfg.DBUser,
		Password:    cfg.DBPassword,
		DBName:      cfg.DBName,
		LockTimeout: cfg.TxLockTimeout,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	mongoDB, err := deadletter.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDBName)
	cancel()
	if err != nil {
		return err
	}
	deadLetters := deadletter.NewMongoStore(mongoDB)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deadLetters.Close(closeCtx); err != nil {
			log.Error("failed to disconnect from MongoDB", "error", err)
		}
	}()
	if err := deadLetters.CreateIndexes(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "fulfillment")

	var sender notification.Sender
	if cfg.PostmarkAPIToken != "" {
		sender = notification.NewPostmarkSender(notification.PostmarkConfig{
			ServerToken: cfg.PostmarkAPIToken,
			From:        cfg.EmailSender,
		}, log)
	} else {
		log.Warn("POSTMARK_API_TOKEN not set, receipts are only logged")
		sender = notification.NewLogSender(log)
	}

	carts := cart.NewStore(repo, cache.NewRedisCache(rdb, cfg.CartTTL, log), log)
	worker := fulfillment.NewWorker(repo, carts, shipping.NewRecorder(repo, log), sender, log)
	runner := fulfillment.NewRunner(fulfillment.Settings{
		MaxAttempts: cfg.FulfillmentMaxAttempts,
		BaseDelay:   cfg.FulfillmentBaseDelay,
	}, worker, deadLetters, m, log)
	consumer := fulfillment.NewConsumer(
		fulfillment.NewReader(cfg.KafkaBrokers, cfg.FulfillmentTopic, cfg.FulfillmentGroup),
		runner,
		log,
	)
	defer consumer.Close()

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	log.Info("fulfillment worker started",
		"topic", cfg.FulfillmentTopic,
		"group", cfg.FulfillmentGroup,
		"max_attempts", cfg.FulfillmentMaxAttempts,
	)
	consumer.Run(ctx)

	log.Info("shutting down fulfillment worker")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	return metricsSrv.Shutdown(shutdownCtx)
}
