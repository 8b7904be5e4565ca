package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

type medicalRecordRepository struct {
	*crud[model.MedicalRecord, *model.MedicalRecord]
}

func NewMedicalRecordRepository(base BaseRepository) repository.MedicalRecordRepository {
	r := &medicalRecordRepository{newCrud[model.MedicalRecord](base, schema.TableMedicalRecords, "medical record")}
	r.hooks.afterCreate = func(ctx context.Context, v *model.MedicalRecord) error {
		return r.audit(ctx, model.AuditEntityMedicalRecord, v.ID, model.AuditActionCreate, changeSet(nil, v))
	}
	r.hooks.afterUpdate = func(ctx context.Context, before, after *model.MedicalRecord) error {
		return r.audit(ctx, model.AuditEntityMedicalRecord, after.ID, model.AuditActionUpdate, changeSet(before, after))
	}
	r.hooks.afterDelete = func(ctx context.Context, before *model.MedicalRecord) error {
		return r.audit(ctx, model.AuditEntityMedicalRecord, before.ID, model.AuditActionDelete, nil)
	}
	return r
}

func (r *medicalRecordRepository) Create(ctx context.Context, record *model.MedicalRecord) error {
	if record.CreatedBy == nil {
		record.CreatedBy = model.ActorID(ctx)
	}
	return r.create(ctx, record)
}

func (r *medicalRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	return r.get(ctx, id)
}

func (r *medicalRecordRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.MedicalRecord], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *medicalRecordRepository) ForPatient(ctx context.Context, patientID uuid.UUID, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.MedicalRecord], error) {
	spec := listSpec{
		joins: []string{model.MedicalRecordPatient.Join(alias, "p")},
		where: []string{"p.id = ?", "p.deleted_at IS NULL"},
		args:  []interface{}{patientID},
	}
	return r.list(ctx, spec, nil, page, scopes)
}

// Update and Patch refuse to touch a finalized record.
func (r *medicalRecordRepository) Update(ctx context.Context, record *model.MedicalRecord) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		cur, err := r.getBy(ctx, "id", record.ID, true)
		if err != nil {
			return err
		}
		if err := cur.EnsureMutable(); err != nil {
			return err
		}
		return r.update(ctx, record)
	})
}

func (r *medicalRecordRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.MedicalRecord) error) (*model.MedicalRecord, error) {
	return r.patch(ctx, id, func(m *model.MedicalRecord) error {
		if err := m.EnsureMutable(); err != nil {
			return err
		}
		return mutate(m)
	})
}

func (r *medicalRecordRepository) Finalize(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	return r.patch(ctx, id, func(m *model.MedicalRecord) error { return m.Finalize() })
}

func (r *medicalRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
