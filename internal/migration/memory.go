package migration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/hospital-core/internal/schema"
)

// MemoryDriver replays steps against an in-memory snapshot. It rejects the
// same things PostgreSQL would (creating what exists, dropping what does
// not, dropping referenced tables), so non-idempotent ops fail here too.
// Data statements are recorded, not executed.
type MemoryDriver struct {
	lock sync.Mutex

	mu       sync.Mutex
	snapshot *schema.Snapshot
	rows     map[string][]Row
	ledger   map[string]Record
	executed []string
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		snapshot: schema.NewSnapshot(),
		rows:     make(map[string][]Row),
		ledger:   make(map[string]Record),
	}
}

func (d *MemoryDriver) Lock(ctx context.Context) error {
	d.lock.Lock()
	return nil
}

func (d *MemoryDriver) Unlock(context.Context) error {
	d.lock.Unlock()
	return nil
}

func (d *MemoryDriver) EnsureLedger(context.Context) error { return nil }

func (d *MemoryDriver) Ledger(context.Context) ([]Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Record, 0, len(d.ledger))
	for _, r := range d.ledger {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (d *MemoryDriver) Apply(ctx context.Context, step Step, dir Direction, fn func(Session) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess := &memorySession{snapshot: d.snapshot.Clone(), rows: cloneRows(d.rows)}
	if err := fn(sess); err != nil {
		return err
	}
	d.snapshot = sess.snapshot
	d.rows = sess.rows
	d.executed = append(d.executed, sess.executed...)
	switch dir {
	case DirectionUp:
		d.ledger[step.Key] = Record{Key: step.Key, Name: step.Name, AppliedAt: time.Now().UTC()}
	case DirectionDown:
		delete(d.ledger, step.Key)
	}
	return nil
}

func (d *MemoryDriver) MarkDirty(_ context.Context, step Step, cause error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.ledger[step.Key]
	r.Key, r.Name, r.Dirty = step.Key, step.Name, true
	if r.AppliedAt.IsZero() {
		r.AppliedAt = time.Now().UTC()
	}
	if cause != nil {
		r.Error = cause.Error()
	}
	d.ledger[step.Key] = r
	return nil
}

func (d *MemoryDriver) ResetLedger(_ context.Context, records []Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ledger = make(map[string]Record, len(records))
	for _, r := range records {
		d.ledger[r.Key] = r
	}
	return nil
}

func (d *MemoryDriver) Inspect(context.Context) (*schema.Snapshot, error) {
	return d.Snapshot(), nil
}

// Snapshot returns a copy of the current shape.
func (d *MemoryDriver) Snapshot() *schema.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot.Clone()
}

// Rows returns the rows data ops left in table.
func (d *MemoryDriver) Rows(table string) []Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Row(nil), d.rows[table]...)
}

// Executed lists the data statements committed so far.
func (d *MemoryDriver) Executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.executed...)
}

func cloneRows(in map[string][]Row) map[string][]Row {
	out := make(map[string][]Row, len(in))
	for table, rows := range in {
		cp := make([]Row, len(rows))
		for i, r := range rows {
			row := make(Row, len(r))
			for k, v := range r {
				row[k] = v
			}
			cp[i] = row
		}
		out[table] = cp
	}
	return out
}

type memorySession struct {
	snapshot *schema.Snapshot
	rows     map[string][]Row
	executed []string
}

func (s *memorySession) TableExists(_ context.Context, table string) (bool, error) {
	return s.snapshot.HasTable(table), nil
}

func (s *memorySession) ColumnType(_ context.Context, table, column string) (string, bool, error) {
	typ, ok := s.snapshot.ColumnType(table, column)
	return typ, ok, nil
}

func (s *memorySession) IndexExists(_ context.Context, name string) (bool, error) {
	return s.snapshot.HasIndex(name), nil
}

func (s *memorySession) CheckExpr(_ context.Context, table, name string) (string, bool, error) {
	expr, ok := s.snapshot.CheckExpr(table, name)
	return expr, ok, nil
}

func (s *memorySession) needTable(table string) error {
	if !s.snapshot.HasTable(table) {
		return fmt.Errorf("relation %q does not exist", table)
	}
	return nil
}

func (s *memorySession) CreateTable(_ context.Context, t schema.Table) error {
	if s.snapshot.HasTable(t.Name) {
		return fmt.Errorf("relation %q already exists", t.Name)
	}
	for _, c := range t.Columns {
		if fk := c.References; fk != nil && fk.Table != t.Name {
			if err := s.needTable(fk.Table); err != nil {
				return err
			}
		}
	}
	s.snapshot.CreateTable(t)
	return nil
}

func (s *memorySession) DropTable(_ context.Context, name string) error {
	if err := s.needTable(name); err != nil {
		return err
	}
	for other, t := range s.snapshot.Tables {
		if other == name {
			continue
		}
		for col, c := range t.Columns {
			if strings.HasPrefix(c.References, name+"(") {
				return fmt.Errorf("cannot drop table %s because %s.%s depends on it", name, other, col)
			}
		}
	}
	s.snapshot.DropTable(name)
	delete(s.rows, name)
	return nil
}

func (s *memorySession) AddColumn(_ context.Context, table string, c schema.Column) error {
	if err := s.needTable(table); err != nil {
		return err
	}
	if s.snapshot.HasColumn(table, c.Name) {
		return fmt.Errorf("column %q of relation %q already exists", c.Name, table)
	}
	if fk := c.References; fk != nil {
		if err := s.needTable(fk.Table); err != nil {
			return err
		}
	}
	s.snapshot.AddColumn(table, c)
	return nil
}

func (s *memorySession) DropColumn(_ context.Context, table, column string) error {
	if !s.snapshot.HasColumn(table, column) {
		return fmt.Errorf("column %q of relation %q does not exist", column, table)
	}
	s.snapshot.DropColumn(table, column)
	for _, r := range s.rows[table] {
		delete(r, column)
	}
	return nil
}

func (s *memorySession) AlterColumnType(_ context.Context, table, column string, typ schema.ColumnType) error {
	if !s.snapshot.HasColumn(table, column) {
		return fmt.Errorf("column %q of relation %q does not exist", column, table)
	}
	s.snapshot.AlterColumnType(table, column, typ)
	return nil
}

func (s *memorySession) CreateIndex(_ context.Context, idx schema.Index) error {
	if s.snapshot.HasIndex(idx.Name) {
		return fmt.Errorf("relation %q already exists", idx.Name)
	}
	for _, c := range idx.Columns {
		if !s.snapshot.HasColumn(idx.Table, c) {
			return fmt.Errorf("column %q of relation %q does not exist", c, idx.Table)
		}
	}
	s.snapshot.CreateIndex(idx)
	return nil
}

func (s *memorySession) DropIndex(_ context.Context, name string) error {
	if !s.snapshot.HasIndex(name) {
		return fmt.Errorf("index %q does not exist", name)
	}
	s.snapshot.DropIndex(name)
	return nil
}

func (s *memorySession) AddCheck(_ context.Context, table string, chk schema.Check) error {
	if err := s.needTable(table); err != nil {
		return err
	}
	if _, ok := s.snapshot.CheckExpr(table, chk.Name); ok {
		return fmt.Errorf("constraint %q for relation %q already exists", chk.Name, table)
	}
	s.snapshot.AddCheck(table, chk)
	return nil
}

func (s *memorySession) DropCheck(_ context.Context, table, name string) error {
	if _, ok := s.snapshot.CheckExpr(table, name); !ok {
		return fmt.Errorf("constraint %q of relation %q does not exist", name, table)
	}
	s.snapshot.DropCheck(table, name)
	return nil
}

func (s *memorySession) InsertRow(_ context.Context, table string, row Row) error {
	if err := s.needTable(table); err != nil {
		return err
	}
	for col := range row {
		if !s.snapshot.HasColumn(table, col) {
			return fmt.Errorf("column %q of relation %q does not exist", col, table)
		}
	}
	for _, existing := range s.rows[table] {
		if fmt.Sprint(existing["id"]) == fmt.Sprint(row["id"]) {
			return nil
		}
	}
	cp := make(Row, len(row))
	for k, v := range row {
		cp[k] = v
	}
	s.rows[table] = append(s.rows[table], cp)
	return nil
}

func (s *memorySession) DeleteRows(_ context.Context, table, key string, values []string) error {
	drop := make(map[string]struct{}, len(values))
	for _, v := range values {
		drop[v] = struct{}{}
	}
	kept := s.rows[table][:0]
	for _, r := range s.rows[table] {
		if _, ok := drop[fmt.Sprint(r[key])]; !ok {
			kept = append(kept, r)
		}
	}
	s.rows[table] = kept
	return nil
}

func (s *memorySession) RowExists(_ context.Context, table string, where Row) (bool, error) {
	if err := s.needTable(table); err != nil {
		return false, err
	}
	for _, r := range s.rows[table] {
		match := true
		for k, v := range where {
			if fmt.Sprint(r[k]) != fmt.Sprint(v) {
				match = false
				break
			}
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (s *memorySession) Exec(_ context.Context, query string, _ ...any) error {
	s.executed = append(s.executed, query)
	return nil
}

func (s *memorySession) Count(context.Context, string, ...any) (int, error) {
	return 0, nil
}
