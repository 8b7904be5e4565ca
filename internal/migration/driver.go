package migration

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	"github.com/jwalitptl/hospital-core/internal/schema"
)

// LedgerTable records applied steps.
const LedgerTable = "schema_migrations"

// Driver is a migration target.
type Driver interface {
	// Lock blocks until this process holds the exclusive migration lock.
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error

	EnsureLedger(ctx context.Context) error
	Ledger(ctx context.Context) ([]Record, error)

	// Apply runs fn inside one transaction and, in the same transaction,
	// records the step as applied (up) or removes its ledger row (down).
	Apply(ctx context.Context, step Step, dir Direction, fn func(Session) error) error

	// MarkDirty flags the step as failed outside any step transaction.
	MarkDirty(ctx context.Context, step Step, cause error) error

	// ResetLedger replaces the ledger with records.
	ResetLedger(ctx context.Context, records []Record) error

	// Inspect introspects the live schema, ledger excluded.
	Inspect(ctx context.Context) (*schema.Snapshot, error)
}

// IsTransient reports whether err is worth retrying: lost connections,
// serialization failures and deadlocks.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == "40001", pqErr.Code == "40P01":
			return true
		}
	}
	return false
}
