package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.UserID == nil {
		log.UserID = model.ActorID(ctx)
	}
	if _, err := r.q(ctx).NamedExecContext(ctx, insertAuditSQL, log); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListForEntity returns an entity's trail, oldest first.
func (r *auditRepository) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error) {
	q := r.q(ctx)
	query := q.Rebind(`
		SELECT id, user_id, entity_type, entity_id, action, changes, created_at
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at ASC, id`)

	logs := []*model.AuditLog{}
	if err := q.SelectContext(ctx, &logs, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
