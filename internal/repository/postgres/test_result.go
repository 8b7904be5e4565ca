package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

type testResultRepository struct {
	*crud[model.TestResult, *model.TestResult]
	templates *crud[model.LabTestTemplate, *model.LabTestTemplate]
}

func NewTestResultRepository(base BaseRepository) repository.TestResultRepository {
	r := &testResultRepository{
		crud:      newCrud[model.TestResult](base, schema.TableTestResults, "test result"),
		templates: newCrud[model.LabTestTemplate](base, schema.TableLabTestTemplates, "lab test template"),
	}
	r.hooks.prepare = r.applyTemplate
	return r
}

// applyTemplate reads the result's template in the write transaction and
// derives the abnormal flag from it.
func (r *testResultRepository) applyTemplate(ctx context.Context, res *model.TestResult) error {
	if res.TemplateID == nil {
		return nil
	}
	tmpl, err := r.templates.getBy(ctx, "id", *res.TemplateID, false)
	if err != nil {
		return err
	}
	return res.ApplyTemplate(tmpl)
}

func (r *testResultRepository) Create(ctx context.Context, result *model.TestResult) error {
	return r.create(ctx, result)
}

func (r *testResultRepository) Get(ctx context.Context, id uuid.UUID) (*model.TestResult, error) {
	return r.get(ctx, id)
}

func (r *testResultRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.TestResult], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *testResultRepository) Update(ctx context.Context, result *model.TestResult) error {
	return r.update(ctx, result)
}

func (r *testResultRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.TestResult) error) (*model.TestResult, error) {
	return r.patch(ctx, id, mutate)
}

func (r *testResultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
