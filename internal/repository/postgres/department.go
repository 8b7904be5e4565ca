package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

type departmentRepository struct {
	*crud[model.Department, *model.Department]
}

func NewDepartmentRepository(base BaseRepository) repository.DepartmentRepository {
	return &departmentRepository{newCrud[model.Department](base, schema.TableDepartments, "department")}
}

func (r *departmentRepository) Create(ctx context.Context, dept *model.Department) error {
	return r.create(ctx, dept)
}

func (r *departmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	return r.get(ctx, id)
}

func (r *departmentRepository) GetByName(ctx context.Context, name string) (*model.Department, error) {
	return r.getBy(ctx, "name", name, false)
}

func (r *departmentRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.Department], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *departmentRepository) Update(ctx context.Context, dept *model.Department) error {
	return r.update(ctx, dept)
}

func (r *departmentRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Department) error) (*model.Department, error) {
	return r.patch(ctx, id, mutate)
}

// Delete fails with a referential integrity error while doctors still
// belong to the department.
func (r *departmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
