package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultPaystackURL = "https://api.paystack.co"

var ErrGatewayRejected = errors.New("payment gateway rejected the request")

type PaystackConfig struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

// PaystackClient initializes transactions against the Paystack REST API.
type PaystackClient struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *http.Client
	breaker     *circuitbreaker.Breaker[*domain.PaymentAuthorization]
}

func NewPaystackClient(cfg PaystackConfig, logger *slog.Logger) *PaystackClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultPaystackURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaystackClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[*domain.PaymentAuthorization](circuitbreaker.Settings{
			Name: "paystack",
			IsSuccessful: func(err error) bool {
				// a rejected request means the gateway is up
				return err == nil || errors.Is(err, ErrGatewayRejected)
			},
		}, logger),
	}
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (c *PaystackClient) Initiate(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentAuthorization, error) {
	return c.breaker.Execute(func() (*domain.PaymentAuthorization, error) {
		return c.initialize(ctx, req)
	})
}

func (c *PaystackClient) initialize(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentAuthorization, error) {
	body, err := json.Marshal(initializeRequest{
		Email:       req.Contact,
		Amount:      ToSubunits(req.Amount),
		Reference:   req.Reference,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal initialize request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initialize request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call paystack: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read paystack response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("paystack returned %d", resp.StatusCode)
	}

	var out initializeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode paystack response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !out.Status {
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, out.Message)
	}

	return &domain.PaymentAuthorization{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

// ToSubunits converts a major-unit amount to the integer minor unit the
// gateway expects (naira to kobo), rounding half away from zero.
func ToSubunits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
