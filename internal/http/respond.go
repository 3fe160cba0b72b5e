package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Chidera001-dev/e-commerce-system/internal/cart"
	"github.com/Chidera001-dev/e-commerce-system/internal/checkout"
	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/orders"
	"github.com/Chidera001-dev/e-commerce-system/internal/payment"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{domain.ErrInvalidPrice, http.StatusBadRequest, "invalid_price"},
	{domain.ErrInvalidProduct, http.StatusBadRequest, "invalid_product_id"},
	{domain.ErrInvalidOwner, http.StatusBadRequest, "invalid_session"},
	{domain.ErrInvalidDestination, http.StatusBadRequest, "invalid_destination"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{cart.ErrGuestOnly, http.StatusBadRequest, "invalid_merge_source"},
	{payment.ErrMalformedEvent, http.StatusBadRequest, "malformed_event"},

	{checkout.ErrGuestCheckout, http.StatusUnauthorized, "unauthorized"},
	{orders.ErrAuthenticationRequired, http.StatusUnauthorized, "unauthorized"},
	{cart.ErrUserOnly, http.StatusUnauthorized, "unauthorized"},
	{payment.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},

	{repository.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{repository.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{repository.ErrShipmentNotFound, http.StatusNotFound, "shipment_not_found"},

	{checkout.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{cart.ErrNotEnoughStock, http.StatusConflict, "insufficient_stock"},
	{checkout.ErrOrderNotPayable, http.StatusConflict, "order_not_payable"},
	{orders.ErrAlreadyPaid, http.StatusConflict, "order_already_paid"},

	{checkout.ErrPaymentInitiation, http.StatusBadGateway, "payment_unavailable"},
	{repository.ErrLockTimeout, http.StatusServiceUnavailable, "busy"},
}

// statusFor maps a service error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	var illegal *domain.IllegalTransitionError
	if errors.As(err, &illegal) {
		return http.StatusConflict, "illegal_transition"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}

	var stockErr *checkout.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Details = map[string]any{
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		}
	}
	respondJSON(w, status, resp)
}
