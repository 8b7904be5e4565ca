package postgres

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

const insertLineSQL = `
	INSERT INTO prescription_medications (
		id, prescription_id, medication_id, quantity, dosage, frequency, duration, instructions, created_at
	) VALUES (
		:id, :prescription_id, :medication_id, :quantity, :dosage, :frequency, :duration, :instructions, :created_at
	)`

type prescriptionRepository struct {
	*crud[model.Prescription, *model.Prescription]
	assoc repository.Associations
}

func NewPrescriptionRepository(base BaseRepository, assoc repository.Associations) repository.PrescriptionRepository {
	r := &prescriptionRepository{newCrud[model.Prescription](base, schema.TablePrescriptions, "prescription"), assoc}
	r.hooks.prepare = func(ctx context.Context, p *model.Prescription) error {
		if p.IssuedAt.IsZero() {
			p.IssuedAt = p.CreatedAt
		}
		return nil
	}
	r.hooks.afterCreate = func(ctx context.Context, p *model.Prescription) error {
		if err := r.insertLines(ctx, p); err != nil {
			return err
		}
		return r.audit(ctx, model.AuditEntityPrescription, p.ID, model.AuditActionCreate, changeSet(nil, p))
	}
	r.hooks.load = r.loadLines
	r.hooks.beforeUpdate = guardPrescription
	r.hooks.afterUpdate = func(ctx context.Context, before, after *model.Prescription) error {
		if !reflect.DeepEqual(before.Lines, after.Lines) {
			if err := r.deleteLines(ctx, after.ID); err != nil {
				return err
			}
			if err := r.insertLines(ctx, after); err != nil {
				return err
			}
		}
		return r.audit(ctx, model.AuditEntityPrescription, after.ID, model.AuditActionUpdate, changeSet(before, after))
	}
	r.hooks.afterDelete = func(ctx context.Context, before *model.Prescription) error {
		if err := r.deleteLines(ctx, before.ID); err != nil {
			return err
		}
		return r.audit(ctx, model.AuditEntityPrescription, before.ID, model.AuditActionDelete, nil)
	}
	return r
}

type refillKey struct{}

// guardPrescription keeps writes on the status machine and leaves the refill
// count to RecordRefill. Nil Lines keep the stored lines.
func guardPrescription(ctx context.Context, before, after *model.Prescription) error {
	if before.Status != after.Status && !before.Status.CanTransitionTo(after.Status) {
		return apperrors.NewInvalidTransition("prescription", string(before.Status), string(after.Status))
	}
	if after.RefillCount != before.RefillCount && ctx.Value(refillKey{}) == nil {
		return apperrors.NewInvalidTransition("prescription",
			fmt.Sprintf("refill_count %d", before.RefillCount), fmt.Sprintf("refill_count %d", after.RefillCount))
	}
	if after.Lines == nil {
		after.Lines = before.Lines
	}
	return nil
}

func (r *prescriptionRepository) insertLines(ctx context.Context, p *model.Prescription) error {
	for i := range p.Lines {
		line := &p.Lines[i]
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		if line.CreatedAt.IsZero() {
			line.CreatedAt = p.UpdatedAt
		}
		line.PrescriptionID = p.ID
		if _, err := r.q(ctx).NamedExecContext(ctx, insertLineSQL, line); err != nil {
			return mapError("prescription line", err)
		}
	}
	return nil
}

func (r *prescriptionRepository) deleteLines(ctx context.Context, id uuid.UUID) error {
	q := r.q(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind("DELETE FROM prescription_medications WHERE prescription_id = ?"), id); err != nil {
		return mapError("prescription line", err)
	}
	return nil
}

func (r *prescriptionRepository) loadLines(ctx context.Context, p *model.Prescription) error {
	lines := []model.PrescriptionMedication{}
	if err := r.assoc.Load(ctx, model.PrescriptionLineItems, []uuid.UUID{p.ID}, &lines); err != nil {
		return err
	}
	p.Lines = lines
	return nil
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	return r.create(ctx, p)
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	p, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns prescriptions without their lines.
func (r *prescriptionRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.Prescription], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *prescriptionRepository) Update(ctx context.Context, p *model.Prescription) error {
	return r.update(ctx, p)
}

// Patch hands mutate the prescription with its lines loaded.
func (r *prescriptionRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Prescription) error) (*model.Prescription, error) {
	return r.patch(ctx, id, mutate)
}

func (r *prescriptionRepository) RecordRefill(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	return r.patch(context.WithValue(ctx, refillKey{}, true), id, func(p *model.Prescription) error {
		return p.RecordRefill()
	})
}

func (r *prescriptionRepository) Medications(ctx context.Context, id uuid.UUID) ([]*model.Medication, error) {
	meds := []*model.Medication{}
	if err := r.assoc.Load(ctx, model.PrescriptionMedications, []uuid.UUID{id}, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}

func (r *prescriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
