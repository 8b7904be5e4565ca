package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

// slotIndex guards one scheduled appointment per doctor and start time.
const slotIndex = "idx_appointments_doctor_slot"

type appointmentRepository struct {
	*crud[model.Appointment, *model.Appointment]
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	r := &appointmentRepository{newCrud[model.Appointment](base, schema.TableAppointments, "appointment")}
	r.hooks.prepare = r.checkSlot
	r.hooks.afterUpdate = r.statusChanged
	return r
}

// checkSlot reports a double booking before the unique index does.
func (r *appointmentRepository) checkSlot(ctx context.Context, a *model.Appointment) error {
	if !a.OccupiesSlot() {
		return nil
	}
	q := r.q(ctx)
	var taken bool
	err := q.GetContext(ctx, &taken, q.Rebind(`
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = ? AND date_time = ? AND id <> ?
			AND status = 'scheduled' AND deleted_at IS NULL
		)`), a.DoctorID, a.DateTime, a.ID)
	if err != nil {
		return mapError(r.resource, err)
	}
	if taken {
		return apperrors.NewUniqueness(slotIndex, nil)
	}
	return nil
}

func (r *appointmentRepository) statusChanged(ctx context.Context, before, after *model.Appointment) error {
	if before.Status == after.Status {
		return nil
	}
	return r.enqueue(ctx, model.EventAppointmentStatusChanged, after.ID, model.StatusChange{
		ID: after.ID, From: string(before.Status), To: string(after.Status),
	})
}

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	return r.create(ctx, appt)
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id)
}

func (r *appointmentRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.Appointment], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

// Update rejects status changes that skip the state machine.
func (r *appointmentRepository) Update(ctx context.Context, appt *model.Appointment) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		cur, err := r.getBy(ctx, "id", appt.ID, true)
		if err != nil {
			return err
		}
		if cur.Status != appt.Status && !cur.Status.CanTransitionTo(appt.Status) {
			return apperrors.NewInvalidTransition("appointment", string(cur.Status), string(appt.Status))
		}
		return r.update(ctx, appt)
	})
}

func (r *appointmentRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Appointment) error) (*model.Appointment, error) {
	return r.patch(ctx, id, func(a *model.Appointment) error {
		from := a.Status
		if err := mutate(a); err != nil {
			return err
		}
		if a.Status != from && !from.CanTransitionTo(a.Status) {
			return apperrors.NewInvalidTransition("appointment", string(from), string(a.Status))
		}
		return nil
	})
}

func (r *appointmentRepository) Transition(ctx context.Context, id uuid.UUID, to model.AppointmentStatus, reason string) (*model.Appointment, error) {
	return r.patch(ctx, id, func(a *model.Appointment) error {
		if to == model.AppointmentStatusCancelled {
			return a.Cancel(reason)
		}
		return a.TransitionTo(to)
	})
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
