package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type PrescriptionStatus string

const (
	PrescriptionStatusActive    PrescriptionStatus = "active"
	PrescriptionStatusCompleted PrescriptionStatus = "completed"
	PrescriptionStatusCancelled PrescriptionStatus = "cancelled"
)

type Prescription struct {
	Base
	SoftDelete
	PatientID     uuid.UUID          `db:"patient_id" json:"patient_id" validate:"required"`
	DoctorID      uuid.UUID          `db:"doctor_id" json:"doctor_id" validate:"required"`
	AppointmentID *uuid.UUID         `db:"appointment_id" json:"appointment_id,omitempty"`
	Status        PrescriptionStatus `db:"status" json:"status" validate:"required,vocab=prescription_status"`
	RefillCount   int                `db:"refill_count" json:"refill_count" validate:"gte=0"`
	MaxRefills    int                `db:"max_refills" json:"max_refills" validate:"gte=0"`
	Notes         *string            `db:"notes" json:"notes,omitempty"`
	IssuedAt      time.Time          `db:"issued_at" json:"issued_at"`
	ExpiresAt     *time.Time         `db:"expires_at" json:"expires_at,omitempty"`

	Lines []PrescriptionMedication `db:"-" json:"lines,omitempty" validate:"dive"`
}

// PrescriptionMedication is one line of a prescription.
type PrescriptionMedication struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id" validate:"required"`
	Quantity       int       `db:"quantity" json:"quantity" validate:"gt=0"`
	Dosage         string    `db:"dosage" json:"dosage" validate:"required,max=100"`
	Frequency      string    `db:"frequency" json:"frequency" validate:"required,max=100"`
	Duration       *string   `db:"duration" json:"duration,omitempty" validate:"omitempty,max=100"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func (p *Prescription) Validate() error {
	if err := validateTags(p); err != nil {
		return err
	}
	if p.RefillCount > p.MaxRefills {
		return apperrors.NewValidation("refill_count", fmt.Sprintf("refill_count %d exceeds max_refills %d", p.RefillCount, p.MaxRefills))
	}
	if p.ExpiresAt != nil && !p.IssuedAt.IsZero() && p.ExpiresAt.Before(p.IssuedAt) {
		return apperrors.NewValidation("expires_at", "expires_at must not precede issued_at")
	}
	seen := make(map[uuid.UUID]struct{}, len(p.Lines))
	for _, l := range p.Lines {
		if _, dup := seen[l.MedicationID]; dup {
			return apperrors.NewValidation("lines", fmt.Sprintf("medication %s listed twice", l.MedicationID))
		}
		seen[l.MedicationID] = struct{}{}
	}
	return nil
}

// CanTransitionTo reports whether s may move to to. Only an active
// prescription changes status, and never back to active.
func (s PrescriptionStatus) CanTransitionTo(to PrescriptionStatus) bool {
	return s == PrescriptionStatusActive && to != PrescriptionStatusActive
}

func (p *Prescription) TransitionTo(to PrescriptionStatus) error {
	if !p.Status.CanTransitionTo(to) {
		return apperrors.NewInvalidTransition("prescription", string(p.Status), string(to))
	}
	p.Status = to
	return nil
}

// RecordRefill counts one refill. The last permitted refill completes the
// prescription.
func (p *Prescription) RecordRefill() error {
	if p.Status != PrescriptionStatusActive {
		return apperrors.NewInvalidTransition("prescription", string(p.Status), "refilled")
	}
	if p.RefillCount >= p.MaxRefills {
		return apperrors.NewInvalidTransition("prescription",
			fmt.Sprintf("%d/%d refills", p.RefillCount, p.MaxRefills), "refilled")
	}
	p.RefillCount++
	if p.RefillCount == p.MaxRefills {
		p.Status = PrescriptionStatusCompleted
	}
	return nil
}

func (p *Prescription) RefillsRemaining() int {
	return p.MaxRefills - p.RefillCount
}
