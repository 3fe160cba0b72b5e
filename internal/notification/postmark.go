package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/pkg/circuitbreaker"
	"github.com/keighl/postmark"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrNoRecipient = errors.New("message has no recipient")

type PostmarkConfig struct {
	ServerToken string
	From        string
	// BaseURL overrides the Postmark API endpoint.
	BaseURL string
	Timeout time.Duration
}

type PostmarkSender struct {
	client  *postmark.Client
	from    string
	breaker *circuitbreaker.Breaker[postmark.EmailResponse]
	logger  *slog.Logger
}

func NewPostmarkSender(cfg PostmarkConfig, logger *slog.Logger) *PostmarkSender {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := postmark.NewClient(cfg.ServerToken, "")
	client.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return &PostmarkSender{
		client:  client,
		from:    cfg.From,
		breaker: circuitbreaker.New[postmark.EmailResponse](circuitbreaker.Settings{Name: "postmark"}, logger),
		logger:  logger.With("component", "notification"),
	}
}

// Send delivers msg as an HTML and plain text email. The Postmark client has
// no context support, so ctx only gates the call.
func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.breaker.Execute(func() (postmark.EmailResponse, error) {
		return s.client.SendEmail(postmark.Email{
			From:     s.from,
			To:       msg.To,
			Subject:  msg.Subject,
			HtmlBody: msg.Body,
			TextBody: msg.Body,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.DebugContext(ctx, "email sent", "to", msg.To, "message_id", res.MessageID)
	return nil
}
