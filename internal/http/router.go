package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Carts          CartService
	Checkout       CheckoutService
	Orders         OrderService
	PaymentEvents  PaymentEventHandler
	Validator      *JWTValidator
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Health         []HealthChecker
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cartHandler := NewCartHandler(cfg.Carts, timeout)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, timeout)
	ordersHandler := NewOrdersHandler(cfg.Orders, timeout)
	webhookHandler := NewWebhookHandler(cfg.PaymentEvents, timeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(cfg.Metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, h := range cfg.Health {
			if err := h.Ping(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// signed by the gateway, not by a user token
		r.Post("/webhooks/payment", webhookHandler.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Validator))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpsertItem)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
				r.With(RequireUser).Post("/merge", cartHandler.Merge)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireUser)
				r.Post("/checkout", checkoutHandler.Checkout)
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", ordersHandler.ListOrders)
					r.Get("/{id}", ordersHandler.GetOrder)
					r.Post("/{id}/payment", checkoutHandler.RetryPayment)
					r.Post("/{id}/cancel", ordersHandler.CancelOrder)
				})
			})
		})
	})

	return otelhttp.NewHandler(r, "api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
