package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	Read(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error)
	AddItem(ctx context.Context, owner domain.OwnerKey, productID int64, quantity int32) (domain.CartView, error)
	UpsertLine(ctx context.Context, owner domain.OwnerKey, productID int64, quantity int32) (domain.CartView, error)
	RemoveLine(ctx context.Context, owner domain.OwnerKey, productID int64) (domain.CartView, error)
	Merge(ctx context.Context, guest, user domain.OwnerKey) (domain.CartView, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

// UpsertItemRequestDTO carries no price; lines are always priced from the catalog.
type UpsertItemRequestDTO struct {
	Quantity int32 `json:"quantity"`
}

type CartItemDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type CartDTO struct {
	Items []CartItemDTO `json:"items"`
	Total string        `json:"total"`
}

func toCartDTO(v domain.CartView) CartDTO {
	dto := CartDTO{Items: make([]CartItemDTO, 0, len(v)), Total: v.Total().StringFixed(2)}
	for _, l := range v.Lines() {
		dto.Items = append(dto.Items, CartItemDTO{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return dto
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	view, err := h.carts.Read(ctx, p.Owner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(view))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	p, _ := principalFrom(r.Context())
	view, err := h.carts.AddItem(ctx, p.Owner, req.ProductID, req.Quantity)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCartDTO(view))
}

func (h *CartHandler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req UpsertItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	p, _ := principalFrom(r.Context())
	view, err := h.carts.UpsertLine(ctx, p.Owner, productID, req.Quantity)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(view))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	p, _ := principalFrom(r.Context())
	view, err := h.carts.RemoveLine(ctx, p.Owner, productID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(view))
}

// Merge folds the guest cart named by X-Session-Token into the caller's cart.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	if p.SessionToken == "" {
		respondError(w, http.StatusBadRequest, "invalid_session", SessionHeader+" header is required")
		return
	}
	guest, err := domain.GuestOwner(p.SessionToken)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	view, err := h.carts.Merge(ctx, guest, p.Owner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(view))
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return id, true
}
