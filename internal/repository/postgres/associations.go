package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
)

type associations struct {
	BaseRepository
}

func NewAssociations(base BaseRepository) repository.Associations {
	return &associations{base}
}

// Load selects the relation's target rows for ownerIDs into dest. Soft
// deleted targets are skipped.
func (a *associations) Load(ctx context.Context, rel model.Relation, ownerIDs []uuid.UUID, dest interface{}) (err error) {
	defer func(start time.Time) { a.observe("associations."+rel.Name, start, err) }(time.Now())
	if len(ownerIDs) == 0 {
		return nil
	}
	target, ok := schema.Current().Table(rel.Target)
	if !ok {
		return fmt.Errorf("relation %s: unknown table %s", rel.Name, rel.Target)
	}

	names := target.ColumnNames()
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = "t." + n
	}
	query := fmt.Sprintf("SELECT %s FROM %s o %s WHERE o.id = ANY(?::uuid[])",
		strings.Join(cols, ", "), rel.Owner, rel.Join("o", "t"))
	if target.SoftDelete {
		query += " AND t.deleted_at IS NULL"
	}
	query += " ORDER BY t.created_at"

	ids := make(pq.StringArray, len(ownerIDs))
	for i, id := range ownerIDs {
		ids[i] = id.String()
	}
	q := a.q(ctx)
	if err := q.SelectContext(ctx, dest, q.Rebind(query), ids); err != nil {
		return mapError(rel.Target, err)
	}
	return nil
}
