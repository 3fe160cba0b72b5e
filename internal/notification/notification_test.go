package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *domain.Order {
	return &domain.Order{
		ID:           12,
		ContactEmail: "ada@example.com",
		Total:        decimal.RequireFromString("30"),
		Shipping:     domain.ShippingDestination{FullName: "Ada", Address: "1 Marina", City: "Lagos", Country: "NG"},
		Items: []domain.OrderItem{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("15")},
		},
	}
}

func TestReceipt(t *testing.T) {
	msg := Receipt(testOrder())

	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Order ORD-12 confirmed", msg.Subject)
	assert.Contains(t, msg.Body, "2 x 15.00")
	assert.Contains(t, msg.Body, "Total: <strong>30.00</strong>")
	assert.Contains(t, msg.Body, "Lagos")
}

func TestPostmarkSender_Send(t *testing.T) {
	var (
		m        sync.Mutex
		received map[string]any
		token    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Lock()
		defer m.Unlock()
		token = r.Header.Get("X-Postmark-Server-Token")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"ada@example.com","MessageID":"abc","ErrorCode":0,"Message":"OK"}`))
	}))
	defer srv.Close()

	s := NewPostmarkSender(PostmarkConfig{ServerToken: "server-token", From: "shop@example.com", BaseURL: srv.URL}, nil)
	err := s.Send(context.Background(), Receipt(testOrder()))
	require.NoError(t, err)

	m.Lock()
	defer m.Unlock()
	assert.Equal(t, "server-token", token)
	assert.Equal(t, "shop@example.com", received["From"])
	assert.Equal(t, "ada@example.com", received["To"])
	assert.Equal(t, "Order ORD-12 confirmed", received["Subject"])
}

func TestPostmarkSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	defer srv.Close()

	s := NewPostmarkSender(PostmarkConfig{ServerToken: "t", From: "shop@example.com", BaseURL: srv.URL}, nil)
	err := s.Send(context.Background(), Message{To: "ada@example.com", Subject: "x", Body: "y"})
	assert.Error(t, err)
}

func TestPostmarkSender_NoRecipient(t *testing.T) {
	s := NewPostmarkSender(PostmarkConfig{ServerToken: "t"}, nil)
	err := s.Send(context.Background(), Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(nil).Send(context.Background(), Message{To: "a@b.c"}))
}
