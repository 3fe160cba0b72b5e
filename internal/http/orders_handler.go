package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Get(ctx context.Context, owner domain.OwnerKey, orderID int64) (*domain.Order, error)
	List(ctx context.Context, owner domain.OwnerKey) ([]*domain.Order, error)
	CancelOwned(ctx context.Context, owner domain.OwnerKey, orderID int64) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

type OrderItemDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type OrderDTO struct {
	ID               int64                      `json:"id"`
	Status           string                     `json:"status"`
	PaymentStatus    string                     `json:"payment_status"`
	PaymentReference string                     `json:"payment_reference,omitempty"`
	Total            string                     `json:"total"`
	Fulfilled        bool                       `json:"fulfilled"`
	Shipping         domain.ShippingDestination `json:"shipping"`
	Items            []OrderItemDTO             `json:"items"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

func toOrderDTO(o *domain.Order) OrderDTO {
	dto := OrderDTO{
		ID:               o.ID,
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		PaymentReference: o.PaymentReference,
		Total:            o.Total.StringFixed(2),
		Fulfilled:        o.Fulfilled,
		Shipping:         o.Shipping,
		Items:            make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, it := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Subtotal:  it.Subtotal().StringFixed(2),
		})
	}
	return dto
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	orders, err := h.orders.List(ctx, p.Owner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	p, _ := principalFrom(r.Context())
	order, err := h.orders.Get(ctx, p.Owner, orderID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	p, _ := principalFrom(r.Context())
	order, err := h.orders.CancelOwned(ctx, p.Owner, orderID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a positive integer")
		return 0, false
	}
	return id, true
}
