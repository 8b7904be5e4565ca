package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

type patientRepository struct {
	*crud[model.Patient, *model.Patient]
	assoc repository.Associations
}

func NewPatientRepository(base BaseRepository, assoc repository.Associations) repository.PatientRepository {
	return &patientRepository{newCrud[model.Patient](base, schema.TablePatients, "patient"), assoc}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	return r.create(ctx, patient)
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return r.get(ctx, id)
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	return r.getBy(ctx, "user_id", userID, false)
}

func (r *patientRepository) LoadUser(ctx context.Context, p *model.Patient) error {
	var users []*model.User
	if err := r.assoc.Load(ctx, model.PatientUser, []uuid.UUID{p.ID}, &users); err != nil {
		return err
	}
	if len(users) > 0 {
		p.User = users[0]
	}
	return nil
}

func (r *patientRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.Patient], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	return r.update(ctx, patient)
}

func (r *patientRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Patient) error) (*model.Patient, error) {
	return r.patch(ctx, id, mutate)
}

// Delete hides the patient. Appointments and records stay in place.
func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
