package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/checkout"
	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	RetryPayment(ctx context.Context, owner domain.OwnerKey, orderID int64) (*checkout.Result, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(c CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: c, timeout: timeout}
}

type CheckoutRequestDTO struct {
	// Email overrides the contact address from the token.
	Email    string                     `json:"email"`
	Shipping domain.ShippingDestination `json:"shipping"`
}

type CheckoutResponseDTO struct {
	OrderID          int64  `json:"order_id"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	Total            string `json:"total"`
	Reference        string `json:"reference,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	AccessCode       string `json:"access_code,omitempty"`
}

func toCheckoutResponse(res *checkout.Result) CheckoutResponseDTO {
	dto := CheckoutResponseDTO{
		OrderID:       res.Order.ID,
		Status:        string(res.Order.Status),
		PaymentStatus: string(res.Order.PaymentStatus),
		Total:         res.Order.Total.StringFixed(2),
	}
	if a := res.Authorization; a != nil {
		dto.Reference = a.Reference
		dto.AuthorizationURL = a.AuthorizationURL
		dto.AccessCode = a.AccessCode
	}
	return dto
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, _ := principalFrom(r.Context())
	contact := req.Email
	if contact == "" {
		contact = p.Email
	}

	res, err := h.checkout.Checkout(ctx, checkout.Request{
		Owner:       p.Owner,
		Contact:     contact,
		Destination: req.Shipping,
	})
	h.respondResult(w, r, http.StatusCreated, res, err)
}

func (h *CheckoutHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	p, _ := principalFrom(r.Context())
	res, err := h.checkout.RetryPayment(ctx, p.Owner, orderID)
	h.respondResult(w, r, http.StatusOK, res, err)
}

// respondResult keeps the order id in the body when the order was committed
// but the gateway could not be reached, so the client can retry payment.
func (h *CheckoutHandler) respondResult(w http.ResponseWriter, r *http.Request, status int, res *checkout.Result, err error) {
	if errors.Is(err, checkout.ErrPaymentInitiation) && res != nil && res.Order != nil {
		body := toCheckoutResponse(res)
		respondJSON(w, http.StatusBadGateway, struct {
			ErrorResponse
			CheckoutResponseDTO
		}{
			ErrorResponse{Error: err.Error(), Code: "payment_unavailable"},
			body,
		})
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, status, toCheckoutResponse(res))
}
