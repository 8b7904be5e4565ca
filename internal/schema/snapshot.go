package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

type ColumnShape struct {
	Type       string
	Nullable   bool
	Default    string
	Unique     bool
	PrimaryKey bool
	References string
}

type TableShape struct {
	Columns map[string]ColumnShape
	Checks  map[string]string
}

type IndexShape struct {
	Table   string
	Columns []string
	Unique  bool
	Where   string
}

// Snapshot is a comparable rendering of a schema: the registry produces one
// for its target state and the in-memory migration driver mutates one while
// replaying steps.
type Snapshot struct {
	Tables  map[string]*TableShape
	Indexes map[string]IndexShape
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Tables:  make(map[string]*TableShape),
		Indexes: make(map[string]IndexShape),
	}
}

func shapeOf(c Column) ColumnShape {
	s := ColumnShape{
		Type:       c.Type.SQL(),
		Nullable:   c.Nullable && !c.PrimaryKey,
		Default:    c.Default,
		Unique:     c.Unique,
		PrimaryKey: c.PrimaryKey,
	}
	if fk := c.References; fk != nil {
		s.References = fmt.Sprintf("%s(%s) ON DELETE %s", fk.Table, fk.Column, fk.OnDelete)
	}
	return s
}

func (s *Snapshot) IsEmpty() bool {
	return len(s.Tables) == 0 && len(s.Indexes) == 0
}

func (s *Snapshot) HasTable(name string) bool {
	_, ok := s.Tables[name]
	return ok
}

func (s *Snapshot) HasColumn(table, column string) bool {
	t, ok := s.Tables[table]
	if !ok {
		return false
	}
	_, ok = t.Columns[column]
	return ok
}

func (s *Snapshot) ColumnType(table, column string) (string, bool) {
	t, ok := s.Tables[table]
	if !ok {
		return "", false
	}
	c, ok := t.Columns[column]
	return c.Type, ok
}

func (s *Snapshot) HasIndex(name string) bool {
	_, ok := s.Indexes[name]
	return ok
}

func (s *Snapshot) CheckExpr(table, name string) (string, bool) {
	t, ok := s.Tables[table]
	if !ok {
		return "", false
	}
	expr, ok := t.Checks[name]
	return expr, ok
}

func (s *Snapshot) CreateTable(t Table) {
	shape := &TableShape{
		Columns: make(map[string]ColumnShape, len(t.Columns)),
		Checks:  make(map[string]string),
	}
	s.Tables[t.Name] = shape
	for _, c := range t.Columns {
		s.AddColumn(t.Name, c)
	}
	for _, chk := range t.Checks {
		shape.Checks[chk.Name] = chk.Expr
	}
}

func (s *Snapshot) DropTable(name string) {
	delete(s.Tables, name)
	for idxName, idx := range s.Indexes {
		if idx.Table == name {
			delete(s.Indexes, idxName)
		}
	}
}

func (s *Snapshot) AddColumn(table string, c Column) {
	t, ok := s.Tables[table]
	if !ok {
		return
	}
	t.Columns[c.Name] = shapeOf(c)
	if c.Type.Kind == KindEnum {
		t.Checks[EnumCheckName(table, c.Name)] = EnumCheckExpr(c.Name, c.Type.Values)
	}
}

// DropColumn mirrors PostgreSQL: constraints and indexes over the column go
// with it.
func (s *Snapshot) DropColumn(table, column string) {
	t, ok := s.Tables[table]
	if !ok {
		return
	}
	delete(t.Columns, column)
	delete(t.Checks, EnumCheckName(table, column))
	for name, idx := range s.Indexes {
		if idx.Table != table {
			continue
		}
		for _, c := range idx.Columns {
			if c == column {
				delete(s.Indexes, name)
				break
			}
		}
	}
}

func (s *Snapshot) AlterColumnType(table, column string, typ ColumnType) {
	t, ok := s.Tables[table]
	if !ok {
		return
	}
	c, ok := t.Columns[column]
	if !ok {
		return
	}
	c.Type = typ.SQL()
	t.Columns[column] = c
}

func (s *Snapshot) CreateIndex(idx Index) {
	cols := make([]string, len(idx.Columns))
	copy(cols, idx.Columns)
	s.Indexes[idx.Name] = IndexShape{Table: idx.Table, Columns: cols, Unique: idx.Unique, Where: idx.Where}
}

func (s *Snapshot) DropIndex(name string) {
	delete(s.Indexes, name)
}

func (s *Snapshot) AddCheck(table string, chk Check) {
	if t, ok := s.Tables[table]; ok {
		t.Checks[chk.Name] = chk.Expr
	}
}

func (s *Snapshot) DropCheck(table, name string) {
	if t, ok := s.Tables[table]; ok {
		delete(t.Checks, name)
	}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := NewSnapshot()
	for name, t := range s.Tables {
		shape := &TableShape{
			Columns: make(map[string]ColumnShape, len(t.Columns)),
			Checks:  make(map[string]string, len(t.Checks)),
		}
		for k, v := range t.Columns {
			shape.Columns[k] = v
		}
		for k, v := range t.Checks {
			shape.Checks[k] = v
		}
		out.Tables[name] = shape
	}
	for name, idx := range s.Indexes {
		cols := make([]string, len(idx.Columns))
		copy(cols, idx.Columns)
		idx.Columns = cols
		out.Indexes[name] = idx
	}
	return out
}

// Outline keeps only what database introspection reports reliably: table
// and column names, storage types, nullability, index and check names.
func (s *Snapshot) Outline() *Snapshot {
	out := NewSnapshot()
	for name, t := range s.Tables {
		shape := &TableShape{
			Columns: make(map[string]ColumnShape, len(t.Columns)),
			Checks:  make(map[string]string, len(t.Checks)),
		}
		for k, v := range t.Columns {
			shape.Columns[k] = ColumnShape{Type: v.Type, Nullable: v.Nullable}
		}
		for k := range t.Checks {
			shape.Checks[k] = ""
		}
		out.Tables[name] = shape
	}
	for name, idx := range s.Indexes {
		out.Indexes[name] = IndexShape{Table: idx.Table}
	}
	return out
}

func (s *Snapshot) Equal(other *Snapshot) bool {
	return len(s.Diff(other)) == 0
}

// Diff lists every difference between s (actual) and want, sorted.
func (s *Snapshot) Diff(want *Snapshot) []string {
	var out []string
	for name, wt := range want.Tables {
		at, ok := s.Tables[name]
		if !ok {
			out = append(out, "missing table "+name)
			continue
		}
		for col, wc := range wt.Columns {
			ac, ok := at.Columns[col]
			if !ok {
				out = append(out, fmt.Sprintf("missing column %s.%s", name, col))
				continue
			}
			if ac != wc {
				out = append(out, fmt.Sprintf("column %s.%s is %+v, want %+v", name, col, ac, wc))
			}
		}
		for col := range at.Columns {
			if _, ok := wt.Columns[col]; !ok {
				out = append(out, fmt.Sprintf("unexpected column %s.%s", name, col))
			}
		}
		for chk, wexpr := range wt.Checks {
			aexpr, ok := at.Checks[chk]
			if !ok {
				out = append(out, fmt.Sprintf("missing check %s on %s", chk, name))
				continue
			}
			if aexpr != wexpr {
				out = append(out, fmt.Sprintf("check %s is %q, want %q", chk, aexpr, wexpr))
			}
		}
		for chk := range at.Checks {
			if _, ok := wt.Checks[chk]; !ok {
				out = append(out, fmt.Sprintf("unexpected check %s on %s", chk, name))
			}
		}
	}
	for name := range s.Tables {
		if _, ok := want.Tables[name]; !ok {
			out = append(out, "unexpected table "+name)
		}
	}
	for name, widx := range want.Indexes {
		aidx, ok := s.Indexes[name]
		if !ok {
			out = append(out, "missing index "+name)
			continue
		}
		if !reflect.DeepEqual(aidx, widx) {
			out = append(out, fmt.Sprintf("index %s is %+v, want %+v", name, aidx, widx))
		}
	}
	for name := range s.Indexes {
		if _, ok := want.Indexes[name]; !ok {
			out = append(out, "unexpected index "+name)
		}
	}
	sort.Strings(out)
	return out
}

// String renders a short summary for logs.
func (s *Snapshot) String() string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%d tables [%s], %d indexes", len(names), strings.Join(names, ", "), len(s.Indexes))
}
