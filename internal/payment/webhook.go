package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/metrics"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
)

var ErrMalformedEvent = errors.New("malformed payment event")

type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeUnknownOrder     Outcome = "unknown_order"
	OutcomeIgnored          Outcome = "ignored"
	OutcomePaymentFailed    Outcome = "payment_failed"
)

// ShipmentRecorder creates the shipment record for a paid order at most once.
type ShipmentRecorder interface {
	EnsureShipment(ctx context.Context, orderID int64) (*domain.Shipment, error)
}

type Event struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

func (e Event) succeeded() bool {
	return e.Event == "charge.success" && (e.Data.Status == "" || strings.EqualFold(e.Data.Status, "success"))
}

func (e Event) failed() bool {
	return e.Event == "charge.failed" || strings.EqualFold(e.Data.Status, "failed")
}

type WebhookProcessor struct {
	verifier  *Verifier
	db        repository.Store
	shipments ShipmentRecorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewWebhookProcessor(v *Verifier, db repository.Store, shipments ShipmentRecorder, m *metrics.Metrics, logger *slog.Logger) *WebhookProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookProcessor{
		verifier:  v,
		db:        db,
		shipments: shipments,
		metrics:   m,
		logger:    logger.With("component", "payment_webhook"),
	}
}

var errUnknownOrder = errors.New("unknown order")

// HandlePaymentEvent applies one gateway event. Delivering the same event
// any number of times yields one payment transition, one shipment and one
// fulfillment task: the order row lock serializes deliveries and a paid
// order is never transitioned again. The fulfillment task is written to the
// outbox in the same transaction as the transition.
func (p *WebhookProcessor) HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if err := p.verifier.Verify(payload, signature); err != nil {
		p.logger.WarnContext(ctx, "rejected payment webhook", "event", "security", "reason", err.Error())
		p.metrics.ObserveWebhook("invalid_signature")
		return "", err
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		p.metrics.ObserveWebhook("malformed")
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(ev.Data.Reference) == "" {
		p.metrics.ObserveWebhook("malformed")
		return "", fmt.Errorf("%w: missing reference", ErrMalformedEvent)
	}

	log := p.logger.With("reference", ev.Data.Reference, "event_kind", ev.Event)

	orderID, err := domain.ParsePaymentReference(ev.Data.Reference)
	if err != nil {
		log.InfoContext(ctx, "acknowledging event for unknown reference")
		p.metrics.ObserveWebhook(string(OutcomeUnknownOrder))
		return OutcomeUnknownOrder, nil
	}

	outcome, err := p.apply(ctx, log, orderID, ev)
	if errors.Is(err, errUnknownOrder) {
		log.InfoContext(ctx, "acknowledging event for unknown order", "order_id", orderID)
		p.metrics.ObserveWebhook(string(OutcomeUnknownOrder))
		return OutcomeUnknownOrder, nil
	}
	if err != nil {
		p.metrics.ObserveWebhook("error")
		return "", err
	}

	if outcome == OutcomeProcessed || outcome == OutcomeAlreadyProcessed {
		if _, err := p.shipments.EnsureShipment(ctx, orderID); err != nil {
			p.metrics.ObserveWebhook("error")
			return outcome, fmt.Errorf("ensure shipment for order %d: %w", orderID, err)
		}
	}

	log.InfoContext(ctx, "payment event handled", "order_id", orderID, "outcome", outcome)
	p.metrics.ObserveWebhook(string(outcome))
	return outcome, nil
}

func (p *WebhookProcessor) apply(ctx context.Context, log *slog.Logger, orderID int64, ev Event) (Outcome, error) {
	var outcome Outcome
	err := p.db.InTx(ctx, func(q repository.Queries) error {
		order, err := q.LockOrder(ctx, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return errUnknownOrder
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		if order.PaymentStatus == domain.PaymentStatusPaid {
			outcome = OutcomeAlreadyProcessed
			return nil
		}

		if !ev.succeeded() {
			if ev.failed() && order.PaymentStatus.CanTransitionTo(domain.PaymentStatusFailed) {
				outcome = OutcomePaymentFailed
				return q.UpdateOrderStatus(ctx, order.ID, order.Status, domain.PaymentStatusFailed)
			}
			outcome = OutcomeIgnored
			return nil
		}

		if !order.PaymentStatus.CanTransitionTo(domain.PaymentStatusPaid) || order.Status != domain.OrderStatusPending {
			log.WarnContext(ctx, "success event for order that cannot be paid",
				"order_id", order.ID, "status", order.Status, "payment_status", order.PaymentStatus)
			outcome = OutcomeIgnored
			return nil
		}
		if ev.Data.Amount > 0 && ev.Data.Amount != ToSubunits(order.Total) {
			log.WarnContext(ctx, "success event amount does not match order total",
				"event", "security", "order_id", order.ID, "amount", ev.Data.Amount, "expected", ToSubunits(order.Total))
			outcome = OutcomeIgnored
			return nil
		}

		if err := q.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusProcessing, domain.PaymentStatusPaid); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		task, err := domain.NewFulfillmentEvent(order.ID)
		if err != nil {
			return err
		}
		if _, err := q.InsertOutboxEvent(ctx, task); err != nil {
			return fmt.Errorf("enqueue fulfillment: %w", err)
		}

		outcome = OutcomeProcessed
		return nil
	})
	return outcome, err
}
