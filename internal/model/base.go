// Package model holds the typed records of the hospital store, their
// validation rules, relationships and state machines.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SoftDelete marks rows that are hidden rather than removed.
type SoftDelete struct {
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (s SoftDelete) IsDeleted() bool { return s.DeletedAt != nil }

// Init mints the id and timestamps of a new record.
func (b *Base) Init(now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = now
	b.UpdatedAt = now
}

// Touch bumps the update timestamp.
func (b *Base) Touch(now time.Time) {
	b.UpdatedAt = now
}

// Meta exposes the common fields of any record embedding Base.
func (b *Base) Meta() *Base { return b }

// Deriver is implemented by records with fields computed from others. The
// store calls Derive before every write.
type Deriver interface {
	Derive()
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Normalize clamps the request to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

// Page is one page of a list result.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func NewPage[T any](items []T, total int, p Pagination) Page[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}

func (p Page[T]) HasNext() bool {
	return p.Page*p.PageSize < p.Total
}
