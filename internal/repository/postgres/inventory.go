package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type inventoryRepository struct {
	*crud[model.InventoryItem, *model.InventoryItem]
}

func NewInventoryRepository(base BaseRepository) repository.InventoryRepository {
	r := &inventoryRepository{newCrud[model.InventoryItem](base, schema.TableInventoryItems, "inventory item")}
	r.hooks.afterUpdate = func(ctx context.Context, before, after *model.InventoryItem) error {
		return r.statusChanged(ctx, after.ID, before.Status, after.Status)
	}
	return r
}

func (r *inventoryRepository) statusChanged(ctx context.Context, id uuid.UUID, from, to model.InventoryStatus) error {
	if from == to {
		return nil
	}
	return r.enqueue(ctx, model.EventInventoryStatusChanged, id, model.StatusChange{ID: id, From: string(from), To: string(to)})
}

func (r *inventoryRepository) Create(ctx context.Context, item *model.InventoryItem) error {
	return r.create(ctx, item)
}

func (r *inventoryRepository) Get(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	return r.get(ctx, id)
}

func (r *inventoryRepository) GetByItemCode(ctx context.Context, code string) (*model.InventoryItem, error) {
	return r.getBy(ctx, "item_code", code, false)
}

func (r *inventoryRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.InventoryItem], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *inventoryRepository) Update(ctx context.Context, item *model.InventoryItem) error {
	return r.update(ctx, item)
}

func (r *inventoryRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.InventoryItem) error) (*model.InventoryItem, error) {
	return r.patch(ctx, id, mutate)
}

func (r *inventoryRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (item *model.InventoryItem, err error) {
	defer func(start time.Time) { r.observe(r.table.Name+".adjust", start, err) }(time.Now())
	err = r.WithTx(ctx, func(ctx context.Context) error {
		q := r.q(ctx)
		var from model.InventoryStatus
		if err := q.GetContext(ctx, &from, q.Rebind("SELECT status FROM inventory_items WHERE id = ? FOR UPDATE"), id); err != nil {
			return mapError(r.resource, err)
		}

		now := r.now()
		query := fmt.Sprintf(`
			UPDATE inventory_items AS t SET
				quantity = t.quantity + ?,
				status = %s,
				last_restocked_at = CASE WHEN ?::int > 0 THEN ?::timestamptz ELSE t.last_restocked_at END,
				updated_at = ?
			WHERE t.id = ? AND t.quantity + ? >= 0
			RETURNING %s`,
			model.InventoryStatusSQL("t.quantity + ?", "t.minimum_level"), r.selectColumns())

		adjusted := new(model.InventoryItem)
		err := q.GetContext(ctx, adjusted, q.Rebind(query), delta, delta, delta, delta, now, now, id, delta)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewValidation("quantity", "quantity cannot go below zero")
		}
		if err != nil {
			return mapError(r.resource, err)
		}
		if err := r.statusChanged(ctx, id, from, adjusted.Status); err != nil {
			return err
		}
		item = adjusted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *inventoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}
