package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"

	AuditEntityMedicalRecord    = "medical_record"
	AuditEntityPrescription     = "prescription"
	AuditEntityOmaeraMedication = "omaera_medication"
)

// AuditLog is an append-only trail entry written in the same transaction as
// the change it describes.
type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id" db:"entity_id"`
	Action     string     `json:"action" db:"action"`
	Changes    JSONMap    `json:"changes,omitempty" db:"changes"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// NewAuditLog attributes the entry to the actor carried by the context.
func NewAuditLog(actor *uuid.UUID, entityType string, entityID uuid.UUID, action string, changes JSONMap) *AuditLog {
	return &AuditLog{
		ID:         uuid.New(),
		UserID:     actor,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
}
