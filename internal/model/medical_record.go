package model

import (
	"database/sql/driver"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type RecordStatus string

const (
	RecordStatusDraft RecordStatus = "draft"
	RecordStatusFinal RecordStatus = "final"
)

// Vitals is the structured measurement block of a visit. Every reading is
// optional.
type Vitals struct {
	TemperatureC     *decimal.Decimal `json:"temperature_c,omitempty"`
	HeartRate        *int             `json:"heart_rate,omitempty" validate:"omitempty,gt=0,lt=300"`
	RespiratoryRate  *int             `json:"respiratory_rate,omitempty" validate:"omitempty,gt=0,lt=100"`
	BloodPressure    string           `json:"blood_pressure,omitempty"`
	OxygenSaturation *int             `json:"oxygen_saturation,omitempty" validate:"omitempty,gte=0,lte=100"`
	WeightKg         *decimal.Decimal `json:"weight_kg,omitempty"`
	HeightCm         *decimal.Decimal `json:"height_cm,omitempty"`
}

func (v *Vitals) Scan(src interface{}) error { return scanJSON(src, v) }

func (v *Vitals) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return valueJSON(v)
}

// Attachment is file metadata; the bytes live with the Uploader.
type Attachment struct {
	Name        string `json:"name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
}

type Attachments []Attachment

func (a *Attachments) Scan(src interface{}) error { return scanJSON(src, a) }

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return valueJSON(a)
}

// PrescriptionLine is an embedded prescription entry on a record.
type PrescriptionLine struct {
	Medication   string `json:"medication" validate:"required"`
	Dosage       string `json:"dosage" validate:"required"`
	Frequency    string `json:"frequency" validate:"required"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type PrescriptionLines []PrescriptionLine

func (p *PrescriptionLines) Scan(src interface{}) error { return scanJSON(src, p) }

func (p PrescriptionLines) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return valueJSON(p)
}

type MedicalRecord struct {
	Base
	SoftDelete
	PatientID     uuid.UUID         `db:"patient_id" json:"patient_id" validate:"required"`
	DoctorID      uuid.UUID         `db:"doctor_id" json:"doctor_id" validate:"required"`
	AppointmentID *uuid.UUID        `db:"appointment_id" json:"appointment_id,omitempty"`
	Diagnosis     string            `db:"diagnosis" json:"diagnosis" validate:"required"`
	Symptoms      pq.StringArray    `db:"symptoms" json:"symptoms"`
	Vitals        *Vitals           `db:"vitals" json:"vitals,omitempty" validate:"omitempty"`
	Prescriptions PrescriptionLines `db:"prescriptions" json:"prescriptions" validate:"dive"`
	Notes         *string           `db:"notes" json:"notes,omitempty"`
	Attachments   Attachments       `db:"attachments" json:"attachments" validate:"dive"`
	Status        RecordStatus      `db:"status" json:"status" validate:"required,vocab=record_status"`
	CreatedBy     *uuid.UUID        `db:"created_by" json:"created_by,omitempty"`
}

func (m *MedicalRecord) Validate() error {
	if m.Status == "" {
		m.Status = RecordStatusDraft
	}
	return validateTags(m)
}

// EnsureMutable rejects changes to a finalized record.
func (m *MedicalRecord) EnsureMutable() error {
	if m.Status == RecordStatusFinal {
		return apperrors.NewInvalidTransition("medical record", string(RecordStatusFinal), "edited")
	}
	return nil
}

// Finalize locks the record. It may only be called on a draft.
func (m *MedicalRecord) Finalize() error {
	if m.Status != RecordStatusDraft {
		return apperrors.NewInvalidTransition("medical record", string(m.Status), string(RecordStatusFinal))
	}
	m.Status = RecordStatusFinal
	return nil
}
