package repository

import (
	"context"
	"fmt"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
)

func (r *queries) InsertOutboxEvent(ctx context.Context, event *domain.OutboxEvent) (bool, error) {
	query := `INSERT INTO outbox_events (event_id, aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (event_id) DO NOTHING`

	res, err := r.q.ExecContext(ctx, query,
		event.EventID,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert outbox event: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert outbox event: %w", err)
	}
	return n == 1, nil
}

// GetUnprocessedEvents skips rows another poller has locked.
func (r *queries) GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	query := `SELECT id, event_id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events
	          WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1
	          FOR UPDATE SKIP LOCKED`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", mapError(err))
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *queries) MarkEventAsProcessed(ctx context.Context, id int64) error {
	query := `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark event processed: %w", mapError(err))
	}
	return nil
}
