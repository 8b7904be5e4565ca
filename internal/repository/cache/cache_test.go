package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type fakeDepartments struct {
	repository.DepartmentRepository
	rows  map[uuid.UUID]*model.Department
	reads int
}

func (f *fakeDepartments) Get(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	f.reads++
	d, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NewNotFound("department", nil)
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDepartments) Update(ctx context.Context, dept *model.Department) error {
	cp := *dept
	f.rows[dept.ID] = &cp
	return nil
}

func TestDepartments_CachesReadsUntilWrite(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	fake := &fakeDepartments{rows: map[uuid.UUID]*model.Department{
		id: {Base: model.Base{ID: id}, Name: "Cardiology", Status: model.DepartmentStatusActive},
	}}
	repo := Departments(fake, time.Minute)

	first, err := repo.Get(ctx, id)
	require.NoError(t, err)
	first.Name = "mutated by caller"

	second, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", second.Name)
	assert.Equal(t, 1, fake.reads)

	second.Name = "Cardiac Sciences"
	require.NoError(t, repo.Update(ctx, second))

	third, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cardiac Sciences", third.Name)
	assert.Equal(t, 2, fake.reads)
}

func TestDepartments_DoesNotCacheMisses(t *testing.T) {
	fake := &fakeDepartments{rows: map[uuid.UUID]*model.Department{}}
	repo := Departments(fake, time.Minute)
	id := uuid.New()

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 2, fake.reads)
}

type fakeTemplates struct {
	repository.LabTestTemplateRepository
	byName map[string]*model.LabTestTemplate
	reads  int
}

func (f *fakeTemplates) GetByName(ctx context.Context, name string) (*model.LabTestTemplate, error) {
	f.reads++
	if t, ok := f.byName[name]; ok {
		return t, nil
	}
	return nil, apperrors.NewNotFound("lab test template", nil)
}

func (f *fakeTemplates) Delete(ctx context.Context, id uuid.UUID) error {
	for k, v := range f.byName {
		if v.ID == id {
			delete(f.byName, k)
		}
	}
	return nil
}

func TestLabTestTemplates_DeleteFlushes(t *testing.T) {
	ctx := context.Background()
	tmpl := &model.LabTestTemplate{Base: model.Base{ID: uuid.New()}, Name: "Complete Blood Count"}
	fake := &fakeTemplates{byName: map[string]*model.LabTestTemplate{tmpl.Name: tmpl}}
	repo := LabTestTemplates(fake, time.Minute)

	_, err := repo.GetByName(ctx, "Complete Blood Count")
	require.NoError(t, err)
	_, err = repo.GetByName(ctx, "Complete Blood Count")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.reads)

	require.NoError(t, repo.Delete(ctx, tmpl.ID))
	_, err = repo.GetByName(ctx, "Complete Blood Count")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 2, fake.reads)
}
