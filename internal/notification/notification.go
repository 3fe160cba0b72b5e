// Package notification delivers customer emails. Delivery is best effort:
// callers log failures and carry on.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/shopspring/decimal"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them. Used when no
// email provider is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "notification")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent, no provider configured", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Receipt renders the payment confirmation for a paid order.
func Receipt(order *domain.Order) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "<strong>Thank you for your purchase!</strong><br><br>")
	fmt.Fprintf(&b, "Your payment for order %s has been received.<br><br>", domain.PaymentReference(order.ID))
	b.WriteString("<table>")
	for _, it := range order.Items {
		fmt.Fprintf(&b, "<tr><td>Product #%d</td><td>%d x %s</td><td>%s</td></tr>",
			it.ProductID, it.Quantity, money(it.UnitPrice), money(it.Subtotal()))
	}
	b.WriteString("</table><br>")
	fmt.Fprintf(&b, "Total: <strong>%s</strong><br>", money(order.Total))
	if d := order.Shipping; d.Address != "" {
		fmt.Fprintf(&b, "Shipping to: %s, %s, %s, %s", d.FullName, d.Address, d.City, d.Country)
	}

	return Message{
		To:      order.ContactEmail,
		Subject: fmt.Sprintf("Order %s confirmed", domain.PaymentReference(order.ID)),
		Body:    b.String(),
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
