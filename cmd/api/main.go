package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/cache"
	"github.com/Chidera001-dev/e-commerce-system/internal/cart"
	"github.com/Chidera001-dev/e-commerce-system/internal/checkout"
	"github.com/Chidera001-dev/e-commerce-system/internal/config"
	h "github.com/Chidera001-dev/e-commerce-system/internal/http"
	"github.com/Chidera001-dev/e-commerce-system/internal/metrics"
	"github.com/Chidera001-dev/e-commerce-system/internal/orders"
	"github.com/Chidera001-dev/e-commerce-system/internal/payment"
	"github.com/Chidera001-dev/e-commerce-system/internal/publisher"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
	"github.com/Chidera001-dev/e-commerce-system/internal/shipping"
	"github.com/Chidera001-dev/e-commerce-system/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("api", cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
		LockTimeout:       cfg.TxLockTimeout,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return err
	}
	log.Info("database migrations completed")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// carts degrade to the database while redis is down
		log.Warn("redis unavailable at startup", "addr", cfg.RedisAddr, "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "api")

	carts := cart.NewStore(repo, cache.NewRedisCache(rdb, cfg.CartTTL, log), log)
	gateway := payment.NewPaystackClient(payment.PaystackConfig{
		BaseURL:     cfg.PaystackBaseURL,
		SecretKey:   cfg.PaystackSecretKey,
		CallbackURL: cfg.PaystackCallbackURL,
	}, log)
	coordinator := checkout.NewCoordinator(repo, carts, gateway, m, log)
	shipments := shipping.NewRecorder(repo, log)
	verifier := payment.NewVerifier(cfg.PaystackSecretKey, cfg.WebhookTrustedMode)
	if cfg.WebhookTrustedMode {
		log.Warn("webhook signature verification is disabled")
	}
	webhooks := payment.NewWebhookProcessor(verifier, repo, shipments, m, log)
	orderService := orders.NewService(repo, log)

	writer := publisher.NewWriter(cfg.KafkaBrokers, cfg.FulfillmentTopic)
	defer writer.Close()
	poller := publisher.NewOutboxPoller(repo, writer, m, log)

	router := h.NewRouter(h.RouterConfig{
		Carts:          carts,
		Checkout:       coordinator,
		Orders:         orderService,
		PaymentEvents:  webhooks,
		Validator:      h.NewJWTValidator(cfg.JWTSecret),
		Metrics:        m,
		MetricsHandler: metrics.Handler(reg),
		Health:         []h.HealthChecker{repo, redisPinger{client: rdb}},
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	}

	log.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	wg.Wait()

	log.Info("api exited")
	return nil
}
