package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/hospital-core/internal/schema"
)

// DefaultLockID is the pg_advisory_lock key migration runs share.
const DefaultLockID int64 = 72_841_903

// PostgresDriver migrates a PostgreSQL database through sqlx. The advisory
// lock is held on a dedicated connection for the whole batch.
type PostgresDriver struct {
	db     *sqlx.DB
	lockID int64
	conn   *sql.Conn
}

func NewPostgresDriver(db *sqlx.DB, lockID int64) *PostgresDriver {
	if lockID == 0 {
		lockID = DefaultLockID
	}
	return &PostgresDriver{db: db, lockID: lockID}
}

func (d *PostgresDriver) Lock(ctx context.Context) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get lock connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, d.lockID); err != nil {
		conn.Close()
		return fmt.Errorf("failed to take advisory lock: %w", err)
	}
	d.conn = conn
	return nil
}

func (d *PostgresDriver) Unlock(ctx context.Context) error {
	if d.conn == nil {
		return nil
	}
	defer func() {
		d.conn.Close()
		d.conn = nil
	}()
	if _, err := d.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, d.lockID); err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	return nil
}

func (d *PostgresDriver) EnsureLedger(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			key        VARCHAR(14) PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			dirty      BOOLEAN NOT NULL DEFAULT FALSE,
			error      TEXT
		)`
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", LedgerTable, err)
	}
	return nil
}

func (d *PostgresDriver) Ledger(ctx context.Context) ([]Record, error) {
	query := `SELECT key, name, applied_at, dirty, COALESCE(error, '') AS error FROM schema_migrations ORDER BY key`
	var records []Record
	if err := d.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", LedgerTable, err)
	}
	return records, nil
}

func (d *PostgresDriver) Apply(ctx context.Context, step Step, dir Direction, fn func(Session) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&pgSession{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	switch dir {
	case DirectionUp:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO schema_migrations (key, name, applied_at, dirty, error)
			VALUES ($1, $2, NOW(), FALSE, NULL)
			ON CONFLICT (key) DO UPDATE SET name = EXCLUDED.name, applied_at = NOW(), dirty = FALSE, error = NULL`,
			step.Key, step.Name)
	case DirectionDown:
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE key = $1`, step.Key)
	}
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update %s: %w", LedgerTable, err)
	}
	return tx.Commit()
}

func (d *PostgresDriver) MarkDirty(ctx context.Context, step Step, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO schema_migrations (key, name, applied_at, dirty, error)
		VALUES ($1, $2, NOW(), TRUE, $3)
		ON CONFLICT (key) DO UPDATE SET dirty = TRUE, error = EXCLUDED.error`,
		step.Key, step.Name, msg)
	if err != nil {
		return fmt.Errorf("failed to mark %s dirty: %w", step.Key, err)
	}
	return nil
}

func (d *PostgresDriver) ResetLedger(ctx context.Context, records []Record) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		tx.Rollback()
		return err
	}
	for _, r := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (key, name, applied_at, dirty) VALUES ($1, $2, $3, FALSE)`,
			r.Key, r.Name, r.AppliedAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

type columnInfo struct {
	Table     string        `db:"table_name"`
	Column    string        `db:"column_name"`
	DataType  string        `db:"data_type"`
	UDTName   string        `db:"udt_name"`
	MaxLength sql.NullInt64 `db:"character_maximum_length"`
	Precision sql.NullInt64 `db:"numeric_precision"`
	Scale     sql.NullInt64 `db:"numeric_scale"`
	Nullable  string        `db:"is_nullable"`
}

// storageType maps information_schema output onto the registry rendering.
func (c columnInfo) storageType() string {
	switch c.DataType {
	case "uuid":
		return "UUID"
	case "character varying":
		return fmt.Sprintf("VARCHAR(%d)", c.MaxLength.Int64)
	case "text":
		return "TEXT"
	case "integer":
		return "INTEGER"
	case "numeric":
		return fmt.Sprintf("NUMERIC(%d,%d)", c.Precision.Int64, c.Scale.Int64)
	case "boolean":
		return "BOOLEAN"
	case "timestamp with time zone":
		return "TIMESTAMPTZ"
	case "jsonb":
		return "JSONB"
	case "ARRAY":
		if c.UDTName == "_text" {
			return "TEXT[]"
		}
	}
	return strings.ToUpper(c.DataType)
}

const columnsQuery = `
	SELECT table_name, column_name, data_type, udt_name,
	       character_maximum_length, numeric_precision, numeric_scale, is_nullable
	FROM information_schema.columns
	WHERE table_schema = current_schema()`

func (d *PostgresDriver) Inspect(ctx context.Context) (*schema.Snapshot, error) {
	snap := schema.NewSnapshot()

	var tables []string
	if err := d.db.SelectContext(ctx, &tables, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' AND table_name <> $1`,
		LedgerTable); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	for _, t := range tables {
		snap.Tables[t] = &schema.TableShape{Columns: map[string]schema.ColumnShape{}, Checks: map[string]string{}}
	}

	var cols []columnInfo
	if err := d.db.SelectContext(ctx, &cols, columnsQuery); err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	for _, c := range cols {
		t, ok := snap.Tables[c.Table]
		if !ok {
			continue
		}
		t.Columns[c.Column] = schema.ColumnShape{Type: c.storageType(), Nullable: c.Nullable == "YES"}
	}

	var indexes []struct {
		Name  string `db:"indexname"`
		Table string `db:"tablename"`
	}
	if err := d.db.SelectContext(ctx, &indexes, `
		SELECT indexname, tablename FROM pg_indexes
		WHERE schemaname = current_schema()
		  AND indexname NOT IN (SELECT conname FROM pg_constraint)`); err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if _, ok := snap.Tables[idx.Table]; ok {
			snap.Indexes[idx.Name] = schema.IndexShape{Table: idx.Table}
		}
	}

	var checks []struct {
		Table string `db:"relname"`
		Name  string `db:"conname"`
	}
	if err := d.db.SelectContext(ctx, &checks, `
		SELECT t.relname, c.conname
		FROM pg_constraint c
		JOIN pg_class t ON t.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE c.contype = 'c' AND n.nspname = current_schema()`); err != nil {
		return nil, fmt.Errorf("failed to list check constraints: %w", err)
	}
	for _, chk := range checks {
		if t, ok := snap.Tables[chk.Table]; ok {
			t.Checks[chk.Name] = ""
		}
	}
	return snap, nil
}

type pgSession struct {
	tx *sqlx.Tx
}

func (s *pgSession) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := s.tx.GetContext(ctx, &ok, query, args...); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *pgSession) TableExists(ctx context.Context, table string) (bool, error) {
	return s.exists(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, table)
}

func (s *pgSession) ColumnType(ctx context.Context, table, column string) (string, bool, error) {
	var c columnInfo
	err := s.tx.GetContext(ctx, &c, columnsQuery+` AND table_name = $1 AND column_name = $2`, table, column)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return c.storageType(), true, nil
}

func (s *pgSession) IndexExists(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = current_schema() AND indexname = $1
		)`, name)
}

func (s *pgSession) CheckExpr(ctx context.Context, table, name string) (string, bool, error) {
	var def string
	err := s.tx.GetContext(ctx, &def, `
		SELECT pg_get_constraintdef(c.oid)
		FROM pg_constraint c
		JOIN pg_class t ON t.oid = c.conrelid
		WHERE t.relname = $1 AND c.conname = $2`, table, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return def, true, nil
}

func (s *pgSession) exec(ctx context.Context, stmt string) error {
	_, err := s.tx.ExecContext(ctx, stmt)
	return err
}

func (s *pgSession) CreateTable(ctx context.Context, t schema.Table) error {
	return s.exec(ctx, schema.CreateTableSQL(t))
}

func (s *pgSession) DropTable(ctx context.Context, name string) error {
	return s.exec(ctx, schema.DropTableSQL(name))
}

func (s *pgSession) AddColumn(ctx context.Context, table string, c schema.Column) error {
	return s.exec(ctx, schema.AddColumnSQL(table, c))
}

func (s *pgSession) DropColumn(ctx context.Context, table, column string) error {
	return s.exec(ctx, schema.DropColumnSQL(table, column))
}

func (s *pgSession) AlterColumnType(ctx context.Context, table, column string, typ schema.ColumnType) error {
	return s.exec(ctx, schema.AlterColumnTypeSQL(table, column, typ))
}

func (s *pgSession) CreateIndex(ctx context.Context, idx schema.Index) error {
	return s.exec(ctx, schema.CreateIndexSQL(idx))
}

func (s *pgSession) DropIndex(ctx context.Context, name string) error {
	return s.exec(ctx, schema.DropIndexSQL(name))
}

func (s *pgSession) AddCheck(ctx context.Context, table string, chk schema.Check) error {
	return s.exec(ctx, schema.AddCheckSQL(table, chk))
}

func (s *pgSession) DropCheck(ctx context.Context, table, name string) error {
	return s.exec(ctx, schema.DropCheckSQL(table, name))
}

func (s *pgSession) InsertRow(ctx context.Context, table string, row Row) error {
	cols := sortedColumns(row)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	_, err := s.tx.ExecContext(ctx, query, args...)
	return err
}

func (s *pgSession) DeleteRows(ctx context.Context, table, key string, values []string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s::text = ANY($1)", table, key)
	_, err := s.tx.ExecContext(ctx, query, pq.Array(values))
	return err
}

func (s *pgSession) RowExists(ctx context.Context, table string, where Row) (bool, error) {
	cols := sortedColumns(where)
	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		conds[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args[i] = where[c]
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s", table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ")"
	return s.exists(ctx, query, args...)
}

func (s *pgSession) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.tx.ExecContext(ctx, query, args...)
	return err
}

func (s *pgSession) Count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := s.tx.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS q", query), args...)
	return n, err
}
