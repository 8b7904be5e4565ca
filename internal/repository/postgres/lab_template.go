package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

type labTestTemplateRepository struct {
	*crud[model.LabTestTemplate, *model.LabTestTemplate]
}

func NewLabTestTemplateRepository(base BaseRepository) repository.LabTestTemplateRepository {
	return &labTestTemplateRepository{newCrud[model.LabTestTemplate](base, schema.TableLabTestTemplates, "lab test template")}
}

func (r *labTestTemplateRepository) Create(ctx context.Context, tmpl *model.LabTestTemplate) error {
	return r.create(ctx, tmpl)
}

func (r *labTestTemplateRepository) Get(ctx context.Context, id uuid.UUID) (*model.LabTestTemplate, error) {
	return r.get(ctx, id)
}

func (r *labTestTemplateRepository) GetByName(ctx context.Context, name string) (*model.LabTestTemplate, error) {
	return r.getBy(ctx, "name", name, false)
}

func (r *labTestTemplateRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.LabTestTemplate], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *labTestTemplateRepository) Update(ctx context.Context, tmpl *model.LabTestTemplate) error {
	return r.update(ctx, tmpl)
}

func (r *labTestTemplateRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.LabTestTemplate) error) (*model.LabTestTemplate, error) {
	return r.patch(ctx, id, mutate)
}

// Delete fails while results still reference the template.
func (r *labTestTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
