package migration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jwalitptl/hospital-core/internal/schema"
)

// Row is one data row written or matched by a data op.
type Row map[string]any

// ErrMissingDependency is returned when a step needs data an earlier step
// should have inserted.
var ErrMissingDependency = errors.New("migration dependency missing")

// Session is what an op sees of the store inside a step's transaction. The
// introspection methods let every op check the current shape before it
// mutates anything.
type Session interface {
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnType(ctx context.Context, table, column string) (string, bool, error)
	IndexExists(ctx context.Context, name string) (bool, error)
	CheckExpr(ctx context.Context, table, name string) (string, bool, error)

	CreateTable(ctx context.Context, t schema.Table) error
	DropTable(ctx context.Context, name string) error
	AddColumn(ctx context.Context, table string, c schema.Column) error
	DropColumn(ctx context.Context, table, column string) error
	AlterColumnType(ctx context.Context, table, column string, typ schema.ColumnType) error
	CreateIndex(ctx context.Context, idx schema.Index) error
	DropIndex(ctx context.Context, name string) error
	AddCheck(ctx context.Context, table string, chk schema.Check) error
	DropCheck(ctx context.Context, table, name string) error

	InsertRow(ctx context.Context, table string, row Row) error
	DeleteRows(ctx context.Context, table, key string, values []string) error
	RowExists(ctx context.Context, table string, where Row) (bool, error)
	Exec(ctx context.Context, query string, args ...any) error
	Count(ctx context.Context, query string, args ...any) (int, error)
}

// Op is one schema or data change inside a step.
type Op interface {
	Apply(ctx context.Context, s Session) error
	String() string
}

type CreateTable struct {
	Table schema.Table
}

func (o CreateTable) Apply(ctx context.Context, s Session) error {
	exists, err := s.TableExists(ctx, o.Table.Name)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.CreateTable(ctx, o.Table); err != nil {
			return err
		}
	}
	for _, idx := range o.Table.Indexes {
		if err := (CreateIndex{Index: idx}).Apply(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (o CreateTable) String() string { return "create table " + o.Table.Name }

// DropTable carries the full definition so it can be inverted.
type DropTable struct {
	Table schema.Table
}

func (o DropTable) Apply(ctx context.Context, s Session) error {
	exists, err := s.TableExists(ctx, o.Table.Name)
	if err != nil || !exists {
		return err
	}
	return s.DropTable(ctx, o.Table.Name)
}

func (o DropTable) String() string { return "drop table " + o.Table.Name }

type AddColumn struct {
	Table  string
	Column schema.Column
}

func (o AddColumn) Apply(ctx context.Context, s Session) error {
	_, exists, err := s.ColumnType(ctx, o.Table, o.Column.Name)
	if err != nil || exists {
		return err
	}
	return s.AddColumn(ctx, o.Table, o.Column)
}

func (o AddColumn) String() string { return fmt.Sprintf("add column %s.%s", o.Table, o.Column.Name) }

type DropColumn struct {
	Table  string
	Column schema.Column
}

func (o DropColumn) Apply(ctx context.Context, s Session) error {
	_, exists, err := s.ColumnType(ctx, o.Table, o.Column.Name)
	if err != nil || !exists {
		return err
	}
	return s.DropColumn(ctx, o.Table, o.Column.Name)
}

func (o DropColumn) String() string { return fmt.Sprintf("drop column %s.%s", o.Table, o.Column.Name) }

type AlterColumnType struct {
	Table  string
	Column string
	From   schema.ColumnType
	To     schema.ColumnType
}

func (o AlterColumnType) Apply(ctx context.Context, s Session) error {
	current, exists, err := s.ColumnType(ctx, o.Table, o.Column)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("cannot alter %s.%s: column does not exist", o.Table, o.Column)
	}
	if current == o.To.SQL() {
		return nil
	}
	return s.AlterColumnType(ctx, o.Table, o.Column, o.To)
}

func (o AlterColumnType) String() string {
	return fmt.Sprintf("alter column %s.%s %s -> %s", o.Table, o.Column, o.From.SQL(), o.To.SQL())
}

// Narrows reports whether the change can lose data.
func (o AlterColumnType) Narrows() bool {
	from, to := o.From, o.To
	if from.Kind != to.Kind {
		return !(from.Kind == schema.KindString && to.Kind == schema.KindText)
	}
	switch from.Kind {
	case schema.KindString:
		return to.Length < from.Length
	case schema.KindDecimal:
		return to.Scale < from.Scale || to.Precision-to.Scale < from.Precision-from.Scale
	}
	return false
}

type CreateIndex struct {
	Index schema.Index
}

func (o CreateIndex) Apply(ctx context.Context, s Session) error {
	exists, err := s.IndexExists(ctx, o.Index.Name)
	if err != nil || exists {
		return err
	}
	return s.CreateIndex(ctx, o.Index)
}

func (o CreateIndex) String() string { return "create index " + o.Index.Name }

type DropIndex struct {
	Index schema.Index
}

func (o DropIndex) Apply(ctx context.Context, s Session) error {
	exists, err := s.IndexExists(ctx, o.Index.Name)
	if err != nil || !exists {
		return err
	}
	return s.DropIndex(ctx, o.Index.Name)
}

func (o DropIndex) String() string { return "drop index " + o.Index.Name }

type AddCheck struct {
	Table string
	Check schema.Check
}

func (o AddCheck) Apply(ctx context.Context, s Session) error {
	_, exists, err := s.CheckExpr(ctx, o.Table, o.Check.Name)
	if err != nil || exists {
		return err
	}
	return s.AddCheck(ctx, o.Table, o.Check)
}

func (o AddCheck) String() string { return fmt.Sprintf("add check %s on %s", o.Check.Name, o.Table) }

type DropCheck struct {
	Table string
	Check schema.Check
}

func (o DropCheck) Apply(ctx context.Context, s Session) error {
	_, exists, err := s.CheckExpr(ctx, o.Table, o.Check.Name)
	if err != nil || !exists {
		return err
	}
	return s.DropCheck(ctx, o.Table, o.Check.Name)
}

func (o DropCheck) String() string { return fmt.Sprintf("drop check %s on %s", o.Check.Name, o.Table) }

// SetEnumVocabulary replaces the CHECK constraint guarding an enum column.
type SetEnumVocabulary struct {
	Table  string
	Column string
	Enum   string
	From   []string
	To     []string
}

var literalRe = regexp.MustCompile(`'((?:[^']|'')*)'`)

// literals extracts the quoted values of a check definition. Works for both
// the registry rendering and pg_get_constraintdef output.
func literals(expr string) []string {
	var out []string
	for _, m := range literalRe.FindAllStringSubmatch(expr, -1) {
		out = append(out, strings.ReplaceAll(m[1], "''", "'"))
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func (o SetEnumVocabulary) Apply(ctx context.Context, s Session) error {
	name := schema.EnumCheckName(o.Table, o.Column)
	expr, exists, err := s.CheckExpr(ctx, o.Table, name)
	if err != nil {
		return err
	}
	if exists && sameSet(literals(expr), o.To) {
		return nil
	}
	if exists {
		if err := s.DropCheck(ctx, o.Table, name); err != nil {
			return err
		}
	}
	return s.AddCheck(ctx, o.Table, schema.Check{Name: name, Expr: schema.EnumCheckExpr(o.Column, o.To)})
}

func (o SetEnumVocabulary) String() string {
	return fmt.Sprintf("set vocabulary of %s.%s (%s) to %d values", o.Table, o.Column, o.Enum, len(o.To))
}

// InsertRows inserts fixed rows, leaving conflicting rows untouched. Key
// names the column DeleteRows uses to remove them again.
type InsertRows struct {
	Table string
	Key   string
	Rows  []Row
}

func (o InsertRows) Apply(ctx context.Context, s Session) error {
	for _, r := range o.Rows {
		if err := s.InsertRow(ctx, o.Table, r); err != nil {
			return err
		}
	}
	return nil
}

func (o InsertRows) String() string { return fmt.Sprintf("insert %d rows into %s", len(o.Rows), o.Table) }

type DeleteRows struct {
	Table string
	Key   string
	Rows  []Row
}

func (o DeleteRows) Apply(ctx context.Context, s Session) error {
	exists, err := s.TableExists(ctx, o.Table)
	if err != nil || !exists {
		return err
	}
	values := make([]string, 0, len(o.Rows))
	for _, r := range o.Rows {
		values = append(values, fmt.Sprint(r[o.Key]))
	}
	return s.DeleteRows(ctx, o.Table, o.Key, values)
}

func (o DeleteRows) String() string { return fmt.Sprintf("delete %d rows from %s", len(o.Rows), o.Table) }

// RequireRow fails the step when no row matches Where.
type RequireRow struct {
	Table  string
	Where  Row
	Reason string
}

func (o RequireRow) Apply(ctx context.Context, s Session) error {
	found, err := s.RowExists(ctx, o.Table, o.Where)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s needs a row in %s matching %s", ErrMissingDependency, o.Reason, o.Table, formatRow(o.Where))
	}
	return nil
}

func (o RequireRow) String() string { return "require row in " + o.Table }

// Exec runs a data statement. It has no inverse.
type Exec struct {
	Description string
	SQL         string
	Args        []any
}

func (o Exec) Apply(ctx context.Context, s Session) error {
	return s.Exec(ctx, o.SQL, o.Args...)
}

func (o Exec) String() string { return o.Description }

// AssertEmpty is a read-only check: the step fails when Query returns rows.
type AssertEmpty struct {
	Description string
	Query       string
}

func (o AssertEmpty) Apply(ctx context.Context, s Session) error {
	n, err := s.Count(ctx, o.Query)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("check failed: %s (%d offending rows)", o.Description, n)
	}
	return nil
}

func (o AssertEmpty) String() string { return "check " + o.Description }

// Noop is the documented revert of a step with nothing to undo.
type Noop struct {
	Reason string
}

func (o Noop) Apply(context.Context, Session) error { return nil }

func (o Noop) String() string { return "no-op: " + o.Reason }

// Invert returns the exact inverse of a shape op.
func Invert(op Op) (Op, error) {
	switch o := op.(type) {
	case CreateTable:
		return DropTable{Table: o.Table}, nil
	case DropTable:
		return CreateTable{Table: o.Table}, nil
	case AddColumn:
		return DropColumn{Table: o.Table, Column: o.Column}, nil
	case DropColumn:
		return AddColumn{Table: o.Table, Column: o.Column}, nil
	case AlterColumnType:
		return AlterColumnType{Table: o.Table, Column: o.Column, From: o.To, To: o.From}, nil
	case CreateIndex:
		return DropIndex{Index: o.Index}, nil
	case DropIndex:
		return CreateIndex{Index: o.Index}, nil
	case AddCheck:
		return DropCheck{Table: o.Table, Check: o.Check}, nil
	case DropCheck:
		return AddCheck{Table: o.Table, Check: o.Check}, nil
	case SetEnumVocabulary:
		return SetEnumVocabulary{Table: o.Table, Column: o.Column, Enum: o.Enum, From: o.To, To: o.From}, nil
	case InsertRows:
		return DeleteRows{Table: o.Table, Key: o.Key, Rows: o.Rows}, nil
	case Noop:
		return o, nil
	default:
		return nil, fmt.Errorf("%s has no inverse", op)
	}
}

func formatRow(r Row) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, r[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// sortedColumns returns the row's columns in a stable order.
func sortedColumns(r Row) []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
