package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/hospital-core/internal/model"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	store *Store
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(store *Store) BaseRepository {
	return BaseRepository{store: store}
}

// q returns the transaction carried by ctx, or the pool.
func (r BaseRepository) q(ctx context.Context) dbtx {
	return r.store.querier(ctx)
}

// WithTx executes fn within the store's transaction.
func (r BaseRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.InTx(ctx, fn)
}

func (r BaseRepository) observe(operation string, start time.Time, err error) {
	r.store.metrics.ObserveDB(operation, start, err)
}

const insertAuditSQL = `
	INSERT INTO audit_logs (id, user_id, entity_type, entity_id, action, changes, created_at)
	VALUES (:id, :user_id, :entity_type, :entity_id, :action, :changes, :created_at)`

// audit appends a trail entry attributed to the context actor. Callers run
// it inside the transaction of the change.
func (r BaseRepository) audit(ctx context.Context, entityType string, id uuid.UUID, action string, changes model.JSONMap) error {
	entry := model.NewAuditLog(model.ActorID(ctx), entityType, id, action, changes)
	if _, err := r.q(ctx).NamedExecContext(ctx, insertAuditSQL, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

const insertOutboxSQL = `
	INSERT INTO outbox_events (id, event_type, aggregate_id, payload, status, retry_count, created_at)
	VALUES (:id, :event_type, :aggregate_id, :payload, :status, :retry_count, :created_at)`

// enqueue stores an event for the outbox worker in the caller's transaction.
func (r BaseRepository) enqueue(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{}) error {
	event, err := model.NewOutboxEvent(eventType, aggregateID, payload)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}
	if _, err := r.q(ctx).NamedExecContext(ctx, insertOutboxSQL, event); err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return nil
}

// mapError translates driver errors into application errors.
func mapError(resource string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFound(resource, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return apperrors.NewUniqueness(pqErr.Constraint, err)
		case "23503":
			if strings.HasPrefix(pqErr.Message, "update or delete") {
				return apperrors.NewReferenced(resource, err)
			}
			return apperrors.NewDanglingReference(resource, err)
		case "23514":
			return &apperrors.AppError{
				Kind:    apperrors.KindValidation,
				Message: fmt.Sprintf("%s violates %s", resource, pqErr.Constraint),
				Field:   pqErr.Column,
				Err:     err,
			}
		}
	}
	return fmt.Errorf("%s: %w", resource, err)
}

// changeSet records which fields differ between before and after, keyed by
// json name. A nil before records the created state.
func changeSet(before, after interface{}) model.JSONMap {
	b, a := asMap(before), asMap(after)
	out := model.JSONMap{}
	for k, v := range a {
		if k == "updated_at" || k == "created_at" {
			continue
		}
		if before == nil {
			if v != nil {
				out[k] = v
			}
			continue
		}
		if old := b[k]; !reflect.DeepEqual(old, v) {
			out[k] = map[string]interface{}{"from": old, "to": v}
		}
	}
	return out
}

func asMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
