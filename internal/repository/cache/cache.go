// Package cache decorates the reference data repositories with an
// in-process read cache. Every write through the decorator flushes it.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
)

const cleanupFactor = 2

type store[T any] struct {
	c *gocache.Cache
}

func newStore[T any](ttl time.Duration) store[T] {
	return store[T]{c: gocache.New(ttl, cleanupFactor*ttl)}
}

// load returns a copy of the cached value for key, calling fetch on a miss.
func (s store[T]) load(key string, fetch func() (*T, error)) (*T, error) {
	if v, ok := s.c.Get(key); ok {
		cp := *(v.(*T))
		return &cp, nil
	}
	v, err := fetch()
	if err != nil {
		return nil, err
	}
	cp := *v
	s.c.SetDefault(key, &cp)
	return v, nil
}

func (s store[T]) flush(err error) error {
	s.c.Flush()
	return err
}

func idKey(id uuid.UUID) string  { return "id:" + id.String() }
func nameKey(name string) string { return "name:" + name }

type departments struct {
	repository.DepartmentRepository
	store store[model.Department]
}

// Departments caches Get and GetByName of next for ttl.
func Departments(next repository.DepartmentRepository, ttl time.Duration) repository.DepartmentRepository {
	return &departments{DepartmentRepository: next, store: newStore[model.Department](ttl)}
}

func (d *departments) Get(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	return d.store.load(idKey(id), func() (*model.Department, error) {
		return d.DepartmentRepository.Get(ctx, id)
	})
}

func (d *departments) GetByName(ctx context.Context, name string) (*model.Department, error) {
	return d.store.load(nameKey(name), func() (*model.Department, error) {
		return d.DepartmentRepository.GetByName(ctx, name)
	})
}

func (d *departments) Create(ctx context.Context, dept *model.Department) error {
	return d.store.flush(d.DepartmentRepository.Create(ctx, dept))
}

func (d *departments) Update(ctx context.Context, dept *model.Department) error {
	return d.store.flush(d.DepartmentRepository.Update(ctx, dept))
}

func (d *departments) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Department) error) (*model.Department, error) {
	v, err := d.DepartmentRepository.Patch(ctx, id, mutate)
	return v, d.store.flush(err)
}

func (d *departments) Delete(ctx context.Context, id uuid.UUID) error {
	return d.store.flush(d.DepartmentRepository.Delete(ctx, id))
}

type labTemplates struct {
	repository.LabTestTemplateRepository
	store store[model.LabTestTemplate]
}

// LabTestTemplates caches Get and GetByName of next for ttl.
func LabTestTemplates(next repository.LabTestTemplateRepository, ttl time.Duration) repository.LabTestTemplateRepository {
	return &labTemplates{LabTestTemplateRepository: next, store: newStore[model.LabTestTemplate](ttl)}
}

func (l *labTemplates) Get(ctx context.Context, id uuid.UUID) (*model.LabTestTemplate, error) {
	return l.store.load(idKey(id), func() (*model.LabTestTemplate, error) {
		return l.LabTestTemplateRepository.Get(ctx, id)
	})
}

func (l *labTemplates) GetByName(ctx context.Context, name string) (*model.LabTestTemplate, error) {
	return l.store.load(nameKey(name), func() (*model.LabTestTemplate, error) {
		return l.LabTestTemplateRepository.GetByName(ctx, name)
	})
}

func (l *labTemplates) Create(ctx context.Context, tmpl *model.LabTestTemplate) error {
	return l.store.flush(l.LabTestTemplateRepository.Create(ctx, tmpl))
}

func (l *labTemplates) Update(ctx context.Context, tmpl *model.LabTestTemplate) error {
	return l.store.flush(l.LabTestTemplateRepository.Update(ctx, tmpl))
}

func (l *labTemplates) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.LabTestTemplate) error) (*model.LabTestTemplate, error) {
	v, err := l.LabTestTemplateRepository.Patch(ctx, id, mutate)
	return v, l.store.flush(err)
}

func (l *labTemplates) Delete(ctx context.Context, id uuid.UUID) error {
	return l.store.flush(l.LabTestTemplateRepository.Delete(ctx, id))
}
