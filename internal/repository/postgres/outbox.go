package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

const outboxColumns = "id, event_type, aggregate_id, payload, status, error_message, retry_count, created_at, processed_at"

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.Status = model.OutboxStatusPending

	if _, err := r.q(ctx).NamedExecContext(ctx, insertOutboxSQL, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEventsWithLock holds the row locks until the caller's
// transaction ends; call it inside InTx.
func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) (events []*model.OutboxEvent, err error) {
	defer func(start time.Time) { r.observe("outbox_events.claim", start, err) }(time.Now())
	q := r.q(ctx)
	query := q.Rebind(`
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED`)
	events = []*model.OutboxEvent{}
	if err := q.SelectContext(ctx, &events, query, model.OutboxStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}
	return events, nil
}

// UpdateStatus stamps processed_at on success and counts a retry on failure.
func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	q := r.q(ctx)
	query := q.Rebind(`
		UPDATE outbox_events
		SET status = ?,
			error_message = ?,
			processed_at = CASE WHEN ?::text = 'PROCESSED' THEN ? ELSE processed_at END,
			retry_count = CASE WHEN ?::text = 'FAILED' THEN retry_count + 1 ELSE retry_count END
		WHERE id = ?`)
	s := string(status)
	res, err := q.ExecContext(ctx, query, s, errMsg, s, time.Now().UTC(), s, id)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFound("outbox event", nil)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	q := r.q(ctx)
	result, err := q.ExecContext(ctx, q.Rebind(`
		DELETE FROM outbox_events
		WHERE status = ?
		AND processed_at < ?`), model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
