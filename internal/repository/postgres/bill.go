package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

// billRepository recomputes total and final amounts from the items on every
// write.
type billRepository struct {
	*crud[model.Bill, *model.Bill]
}

func NewBillRepository(base BaseRepository) repository.BillRepository {
	r := &billRepository{newCrud[model.Bill](base, schema.TableBills, "bill")}
	r.hooks.prepare = func(ctx context.Context, b *model.Bill) error {
		if b.CreatedBy == nil {
			b.CreatedBy = model.ActorID(ctx)
		}
		return nil
	}
	return r
}

func (r *billRepository) Create(ctx context.Context, bill *model.Bill) error {
	return r.create(ctx, bill)
}

func (r *billRepository) Get(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	return r.get(ctx, id)
}

func (r *billRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.Bill], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *billRepository) Update(ctx context.Context, bill *model.Bill) error {
	return r.update(ctx, bill)
}

func (r *billRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Bill) error) (*model.Bill, error) {
	return r.patch(ctx, id, mutate)
}

func (r *billRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
