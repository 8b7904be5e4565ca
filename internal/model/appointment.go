package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type AppointmentType string

const (
	AppointmentTypeInPerson   AppointmentType = "in-person"
	AppointmentTypeTelehealth AppointmentType = "telehealth"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no-show"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow},
}

// IsTerminal reports whether no transition leaves s.
func (s AppointmentStatus) IsTerminal() bool {
	return len(appointmentTransitions[s]) == 0
}

func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	for _, next := range appointmentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

const DefaultAppointmentDuration = 30

type Appointment struct {
	Base
	SoftDelete
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id" validate:"required"`
	DoctorID           uuid.UUID         `db:"doctor_id" json:"doctor_id" validate:"required"`
	DateTime           time.Time         `db:"date_time" json:"date_time" validate:"required"`
	DurationMinutes    int               `db:"duration_minutes" json:"duration_minutes" validate:"gt=0"`
	Type               AppointmentType   `db:"type" json:"type" validate:"required,vocab=appointment_type"`
	Status             AppointmentStatus `db:"status" json:"status" validate:"required,vocab=appointment_status"`
	Reason             *string           `db:"reason" json:"reason,omitempty"`
	Notes              *string           `db:"notes" json:"notes,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	MeetingLink        *string           `db:"meeting_link" json:"meeting_link,omitempty" validate:"omitempty,url,max=500"`
}

// NewAppointment returns a scheduled appointment with defaults applied.
func NewAppointment(patientID, doctorID uuid.UUID, at time.Time, typ AppointmentType) *Appointment {
	return &Appointment{
		PatientID:       patientID,
		DoctorID:        doctorID,
		DateTime:        at,
		DurationMinutes: DefaultAppointmentDuration,
		Type:            typ,
		Status:          AppointmentStatusScheduled,
	}
}

func (a *Appointment) Validate() error {
	if err := validateTags(a); err != nil {
		return err
	}
	if a.MeetingLink != nil && a.Type != AppointmentTypeTelehealth {
		return apperrors.NewValidation("meeting_link", "meeting_link is only allowed on telehealth appointments")
	}
	if a.Status == AppointmentStatusCancelled && (a.CancellationReason == nil || strings.TrimSpace(*a.CancellationReason) == "") {
		return apperrors.NewValidation("cancellation_reason", "cancellation_reason is required when cancelling")
	}
	return nil
}

func (a *Appointment) EndsAt() time.Time {
	return a.DateTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// TransitionTo moves the appointment to status. Terminal states never move.
func (a *Appointment) TransitionTo(to AppointmentStatus) error {
	if !a.Status.CanTransitionTo(to) {
		return apperrors.NewInvalidTransition("appointment", string(a.Status), string(to))
	}
	a.Status = to
	return nil
}

// Cancel transitions to cancelled and records why.
func (a *Appointment) Cancel(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apperrors.NewValidation("cancellation_reason", "cancellation_reason is required when cancelling")
	}
	if err := a.TransitionTo(AppointmentStatusCancelled); err != nil {
		return err
	}
	a.CancellationReason = &reason
	return nil
}

// OccupiesSlot reports whether the appointment blocks its doctor's slot.
func (a *Appointment) OccupiesSlot() bool {
	return a.Status == AppointmentStatusScheduled && !a.IsDeleted()
}
