package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type medicationRepository struct {
	*crud[model.Medication, *model.Medication]
}

func NewMedicationRepository(base BaseRepository) repository.MedicationRepository {
	return &medicationRepository{newCrud[model.Medication](base, schema.TableMedications, "medication")}
}

func (r *medicationRepository) Create(ctx context.Context, med *model.Medication) error {
	return r.create(ctx, med)
}

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	return r.get(ctx, id)
}

func (r *medicationRepository) GetByItemCode(ctx context.Context, code string) (*model.Medication, error) {
	return r.getBy(ctx, "item_code", code, false)
}

func (r *medicationRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.Medication], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *medicationRepository) Update(ctx context.Context, med *model.Medication) error {
	return r.update(ctx, med)
}

func (r *medicationRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Medication) error) (*model.Medication, error) {
	return r.patch(ctx, id, mutate)
}

// Delete fails while prescriptions still list the medication.
func (r *medicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}

type omaeraMedicationRepository struct {
	*crud[model.OmaeraMedication, *model.OmaeraMedication]
}

func NewOmaeraMedicationRepository(base BaseRepository) repository.OmaeraMedicationRepository {
	r := &omaeraMedicationRepository{newCrud[model.OmaeraMedication](base, schema.TableOmaeraMedications, "omaera medication")}
	r.hooks.afterCreate = func(ctx context.Context, v *model.OmaeraMedication) error {
		return r.audit(ctx, model.AuditEntityOmaeraMedication, v.ID, model.AuditActionCreate, changeSet(nil, v))
	}
	r.hooks.afterUpdate = func(ctx context.Context, before, after *model.OmaeraMedication) error {
		return r.audit(ctx, model.AuditEntityOmaeraMedication, after.ID, model.AuditActionUpdate, changeSet(before, after))
	}
	return r
}

// Create attributes the initial price to the context actor when the caller
// left it unset.
func (r *omaeraMedicationRepository) Create(ctx context.Context, med *model.OmaeraMedication) error {
	if med.LastUpdatedBy == uuid.Nil {
		actor := model.ActorID(ctx)
		if actor == nil {
			return apperrors.NewValidation("last_updated_by", "price changes require an acting user")
		}
		med.LastUpdatedBy = *actor
	}
	return r.create(ctx, med)
}

func (r *omaeraMedicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.OmaeraMedication, error) {
	return r.get(ctx, id)
}

func (r *omaeraMedicationRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.OmaeraMedication], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *omaeraMedicationRepository) SetPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*model.OmaeraMedication, error) {
	actor := model.ActorID(ctx)
	if actor == nil {
		return nil, apperrors.NewValidation("last_updated_by", "price changes require an acting user")
	}
	return r.patch(ctx, id, func(o *model.OmaeraMedication) error {
		return o.SetPrice(price, *actor)
	})
}

func (r *omaeraMedicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
