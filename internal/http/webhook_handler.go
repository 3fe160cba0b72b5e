package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/payment"
)

const maxWebhookBody = 1 << 20 // 1MB

type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (payment.Outcome, error)
}

type WebhookHandler struct {
	events  PaymentEventHandler
	timeout time.Duration
}

func NewWebhookHandler(events PaymentEventHandler, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{events: events, timeout: timeout}
}

// PaymentWebhook acknowledges with 200 whenever the event needs no redelivery,
// including unknown and already processed orders. Anything else is a 4xx/5xx
// so the gateway retries.
func (h *WebhookHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read body")
		return
	}
	if len(payload) > maxWebhookBody {
		respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook body too large")
		return
	}

	outcome, err := h.events.HandlePaymentEvent(ctx, payload, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}
