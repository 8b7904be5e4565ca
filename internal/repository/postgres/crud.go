package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

// record is a pointer to an entity that embeds model.Base.
type record[T any] interface {
	*T
	model.Validatable
	Meta() *model.Base
}

// hooks run inside the write transaction.
type hooks[T any, P record[T]] struct {
	// prepare runs before derivation and validation on every write.
	prepare func(ctx context.Context, v P) error
	// load completes a row read for a write before it is snapshotted.
	load func(ctx context.Context, v P) error
	// beforeUpdate checks after against the stored row and may fill in
	// what the caller left out.
	beforeUpdate func(ctx context.Context, before, after P) error
	afterCreate  func(ctx context.Context, v P) error
	afterUpdate  func(ctx context.Context, before, after P) error
	afterDelete  func(ctx context.Context, before P) error
}

// crud implements the shared create/get/list/update/patch/delete paths of
// one table. Column lists come from the schema registry, so the struct's db
// tags must name exactly the table's columns.
type crud[T any, P record[T]] struct {
	BaseRepository
	table    schema.Table
	resource string
	hooks    hooks[T, P]
	now      func() time.Time
}

func newCrud[T any, P record[T]](base BaseRepository, table, resource string) *crud[T, P] {
	t, ok := schema.Current().Table(table)
	if !ok {
		panic(fmt.Sprintf("unknown table %s", table))
	}
	return &crud[T, P]{
		BaseRepository: base,
		table:          t,
		resource:       resource,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

const alias = "t"

func (c *crud[T, P]) selectColumns() string {
	names := c.table.ColumnNames()
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = alias + "." + n
	}
	return strings.Join(cols, ", ")
}

func (c *crud[T, P]) live() string {
	if c.table.SoftDelete {
		return " AND " + alias + ".deleted_at IS NULL"
	}
	return ""
}

func (c *crud[T, P]) getBy(ctx context.Context, column string, value interface{}, forUpdate bool) (P, error) {
	query := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s.%s = ?%s",
		c.selectColumns(), c.table.Name, alias, alias, column, c.live())
	if forUpdate {
		query += " FOR UPDATE"
	}
	q := c.q(ctx)
	v := P(new(T))
	if err := q.GetContext(ctx, v, q.Rebind(query), value); err != nil {
		return nil, mapError(c.resource, err)
	}
	return v, nil
}

// getForWrite reads the row FOR UPDATE and runs the load hook.
func (c *crud[T, P]) getForWrite(ctx context.Context, id uuid.UUID) (P, error) {
	v, err := c.getBy(ctx, "id", id, true)
	if err != nil {
		return nil, err
	}
	if c.hooks.load != nil {
		if err := c.hooks.load(ctx, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (c *crud[T, P]) get(ctx context.Context, id uuid.UUID) (v P, err error) {
	defer func(start time.Time) { c.observe(c.table.Name+".get", start, err) }(time.Now())
	return c.getBy(ctx, "id", id, false)
}

func (c *crud[T, P]) insert(ctx context.Context, v P) error {
	names := c.table.ColumnNames()
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)",
		c.table.Name, strings.Join(names, ", "), strings.Join(names, ", :"))
	if _, err := c.q(ctx).NamedExecContext(ctx, query, v); err != nil {
		return mapError(c.resource, err)
	}
	return nil
}

func (c *crud[T, P]) write(ctx context.Context, v P) error {
	var sets []string
	for _, n := range c.table.ColumnNames() {
		if n == "id" || n == "created_at" {
			continue
		}
		sets = append(sets, n+" = :"+n)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", c.table.Name, strings.Join(sets, ", "))
	if c.table.SoftDelete {
		query += " AND deleted_at IS NULL"
	}
	res, err := c.q(ctx).NamedExecContext(ctx, query, v)
	if err != nil {
		return mapError(c.resource, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFound(c.resource, nil)
	}
	return nil
}

// check runs the prepare hook, recomputes derived fields and validates.
func (c *crud[T, P]) check(ctx context.Context, v P) error {
	if c.hooks.prepare != nil {
		if err := c.hooks.prepare(ctx, v); err != nil {
			return err
		}
	}
	if d, ok := any(v).(model.Deriver); ok {
		d.Derive()
	}
	return v.Validate()
}

func (c *crud[T, P]) create(ctx context.Context, v P) (err error) {
	defer func(start time.Time) { c.observe(c.table.Name+".create", start, err) }(time.Now())
	return c.WithTx(ctx, func(ctx context.Context) error {
		v.Meta().Init(c.now())
		if err := c.check(ctx, v); err != nil {
			return err
		}
		if err := c.insert(ctx, v); err != nil {
			return err
		}
		if c.hooks.afterCreate != nil {
			return c.hooks.afterCreate(ctx, v)
		}
		return nil
	})
}

// update writes v in full over the stored row.
func (c *crud[T, P]) update(ctx context.Context, v P) (err error) {
	defer func(start time.Time) { c.observe(c.table.Name+".update", start, err) }(time.Now())
	return c.WithTx(ctx, func(ctx context.Context) error {
		before, err := c.getForWrite(ctx, v.Meta().ID)
		if err != nil {
			return err
		}
		return c.save(ctx, before, v)
	})
}

// patch reads the row for update, applies mutate and writes the result.
func (c *crud[T, P]) patch(ctx context.Context, id uuid.UUID, mutate func(P) error) (v P, err error) {
	defer func(start time.Time) { c.observe(c.table.Name+".patch", start, err) }(time.Now())
	err = c.WithTx(ctx, func(ctx context.Context) error {
		cur, err := c.getForWrite(ctx, id)
		if err != nil {
			return err
		}
		before := P(clone[T](cur))
		if err := mutate(cur); err != nil {
			return err
		}
		cur.Meta().ID = id
		if err := c.save(ctx, before, cur); err != nil {
			return err
		}
		v = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *crud[T, P]) save(ctx context.Context, before, v P) error {
	v.Meta().CreatedAt = before.Meta().CreatedAt
	v.Meta().Touch(c.now())
	if c.hooks.beforeUpdate != nil {
		if err := c.hooks.beforeUpdate(ctx, before, v); err != nil {
			return err
		}
	}
	if err := c.check(ctx, v); err != nil {
		return err
	}
	if err := c.write(ctx, v); err != nil {
		return err
	}
	if c.hooks.afterUpdate != nil {
		return c.hooks.afterUpdate(ctx, before, v)
	}
	return nil
}

// remove soft deletes when the table supports it and hard deletes otherwise.
func (c *crud[T, P]) remove(ctx context.Context, id uuid.UUID) (err error) {
	defer func(start time.Time) { c.observe(c.table.Name+".delete", start, err) }(time.Now())
	return c.WithTx(ctx, func(ctx context.Context) error {
		before, err := c.getBy(ctx, "id", id, true)
		if err != nil {
			return err
		}
		q := c.q(ctx)
		if c.table.SoftDelete {
			now := c.now()
			_, err = q.ExecContext(ctx, q.Rebind(fmt.Sprintf(
				"UPDATE %s SET deleted_at = ?, updated_at = ? WHERE id = ?", c.table.Name)), now, now, id)
		} else {
			_, err = q.ExecContext(ctx, q.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.table.Name)), id)
		}
		if err != nil {
			return mapError(c.resource, err)
		}
		if c.hooks.afterDelete != nil {
			return c.hooks.afterDelete(ctx, before)
		}
		return nil
	})
}

// listSpec adds joins and fixed predicates to a list query.
type listSpec struct {
	joins []string
	where []string
	args  []interface{}
}

func (c *crud[T, P]) list(ctx context.Context, spec listSpec, filter repository.Filter, page model.Pagination, scopes []repository.Scope) (out model.Page[P], err error) {
	defer func(start time.Time) { c.observe(c.table.Name+".list", start, err) }(time.Now())
	page = page.Normalize()

	where := append([]string(nil), spec.where...)
	args := append([]interface{}(nil), spec.args...)
	if c.table.SoftDelete {
		where = append(where, alias+".deleted_at IS NULL")
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := c.table.Column(k); !ok {
			return out, apperrors.NewValidation(k, fmt.Sprintf("cannot filter %s by %s", c.table.Name, k))
		}
		where = append(where, fmt.Sprintf("%s.%s = ?", alias, k))
		args = append(args, filter[k])
	}
	for _, s := range scopes {
		where = append(where, "("+fmt.Sprintf(s.Expr, alias)+")")
		args = append(args, s.Args...)
	}

	from := fmt.Sprintf(" FROM %s %s", c.table.Name, alias)
	if len(spec.joins) > 0 {
		from += " " + strings.Join(spec.joins, " ")
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	q := c.q(ctx)
	var total int
	if err := q.GetContext(ctx, &total, q.Rebind("SELECT COUNT(*)"+from+cond), args...); err != nil {
		return out, mapError(c.resource, err)
	}

	items := []P{}
	query := fmt.Sprintf("SELECT %s%s%s ORDER BY %s.created_at DESC, %s.id LIMIT ? OFFSET ?",
		c.selectColumns(), from, cond, alias, alias)
	if err := q.SelectContext(ctx, &items, q.Rebind(query), append(args, page.PageSize, page.Offset())...); err != nil {
		return out, mapError(c.resource, err)
	}
	return model.NewPage(items, total, page), nil
}
