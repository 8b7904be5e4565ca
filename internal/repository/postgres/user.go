package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type userRepository struct {
	*crud[model.User, *model.User]
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{newCrud[model.User](base, schema.TableUsers, "user")}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.create(ctx, user)
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.get(ctx, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)), false)
}

func (r *userRepository) List(ctx context.Context, filter repository.Filter, page model.Pagination, scopes ...repository.Scope) (model.Page[*model.User], error) {
	return r.list(ctx, listSpec{}, filter, page, scopes)
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return r.update(ctx, user)
}

func (r *userRepository) Patch(ctx context.Context, id uuid.UUID, mutate func(*model.User) error) (*model.User, error) {
	return r.patch(ctx, id, mutate)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.remove(ctx, id)
}

func (r *userRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := r.q(ctx)
	res, err := q.ExecContext(ctx, q.Rebind(
		"UPDATE users SET last_login_at = ? WHERE id = ? AND deleted_at IS NULL"), at, id)
	if err != nil {
		return mapError(r.resource, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFound(r.resource, nil)
	}
	return nil
}
