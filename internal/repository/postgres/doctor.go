package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

type doctorRepository struct {
	*crud[model.Doctor, *model.Doctor]
	assoc repository.Associations
}

func NewDoctorRepository(base BaseRepository, assoc repository.Associations) repository.DoctorRepository {
	return &doctorRepository{newCrud[model.Doctor](base, schema.TableDoctors, "doctor"), assoc}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	return r.create(ctx, doctor)
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return r.get(ctx, id)
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	return r.getBy(ctx, "user_id", userID, false)
}

func (r *doctorRepository) LoadUser(ctx context.Context, d *model.Doctor) error {
	var users []*model.User
	if err := r.assoc.Load(ctx, model.DoctorUser, []uuid.UUID{d.ID}, &users); err != nil {
		return err
	}
	if len(users) > 0 {
		d.User = users[0]
	}
	return nil
}

func (r *doctorRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.Doctor], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	return r.update(ctx, doctor)
}

func (r *doctorRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Doctor) error) (*model.Doctor, error) {
	return r.patch(ctx, id, mutate)
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
