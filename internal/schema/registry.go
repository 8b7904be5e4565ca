package schema

import (
	"fmt"
)

// Version is the released schema version described by Current. Enum members
// with Since <= Version are part of it.
const Version = 2

// Registry is the canonical description of the record store.
type Registry struct {
	Version int
	tables  []Table
	enums   map[string]Enum
}

var current = mustBuild()

// Current returns the registry for the current schema version.
func Current() *Registry {
	return current
}

func mustBuild() *Registry {
	r, err := New(Version, tables(), enums())
	if err != nil {
		panic(fmt.Sprintf("schema registry: %v", err))
	}
	return r
}

// New assembles and validates a registry. Enum columns get their storage
// vocabulary filled in from the enum descriptors.
func New(version int, tables []Table, enums []Enum) (*Registry, error) {
	r := &Registry{Version: version, enums: make(map[string]Enum, len(enums))}
	for _, e := range enums {
		if _, dup := r.enums[e.Name]; dup {
			return nil, fmt.Errorf("duplicate enum %s", e.Name)
		}
		r.enums[e.Name] = e
	}
	for _, t := range tables {
		cols := make([]Column, len(t.Columns))
		copy(cols, t.Columns)
		for i, c := range cols {
			if c.Type.Kind != KindEnum {
				continue
			}
			e, ok := r.enums[c.Type.Enum]
			if !ok {
				return nil, fmt.Errorf("%s.%s references unknown enum %s", t.Name, c.Name, c.Type.Enum)
			}
			cols[i].Type.Values = e.StorageValues()
		}
		t.Columns = cols
		r.tables = append(r.tables, t)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Tables returns the tables in creation order.
func (r *Registry) Tables() []Table {
	out := make([]Table, len(r.tables))
	copy(out, r.tables)
	return out
}

func (r *Registry) Table(name string) (Table, bool) {
	for _, t := range r.tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

func (r *Registry) Enum(name string) (Enum, bool) {
	e, ok := r.enums[name]
	return e, ok
}

// Validate checks descriptor integrity: unique names, foreign keys pointing
// at earlier tables, indexes over existing columns.
func (r *Registry) Validate() error {
	seen := make(map[string]Table)
	indexes := make(map[string]struct{})
	for _, t := range r.tables {
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("duplicate table %s", t.Name)
		}
		cols := make(map[string]struct{})
		for _, c := range t.Columns {
			if _, dup := cols[c.Name]; dup {
				return fmt.Errorf("duplicate column %s.%s", t.Name, c.Name)
			}
			cols[c.Name] = struct{}{}
			if fk := c.References; fk != nil {
				target, ok := seen[fk.Table]
				if !ok && fk.Table != t.Name {
					return fmt.Errorf("%s.%s references %s which is not declared before it", t.Name, c.Name, fk.Table)
				}
				if ok {
					if _, ok := target.Column(fk.Column); !ok {
						return fmt.Errorf("%s.%s references missing column %s.%s", t.Name, c.Name, fk.Table, fk.Column)
					}
				}
			}
		}
		if t.SoftDelete {
			if _, ok := cols["deleted_at"]; !ok {
				return fmt.Errorf("soft-delete table %s has no deleted_at column", t.Name)
			}
		}
		for _, idx := range t.Indexes {
			if _, dup := indexes[idx.Name]; dup {
				return fmt.Errorf("duplicate index %s", idx.Name)
			}
			indexes[idx.Name] = struct{}{}
			if idx.Table != t.Name {
				return fmt.Errorf("index %s declared on %s but targets %s", idx.Name, t.Name, idx.Table)
			}
			for _, c := range idx.Columns {
				if _, ok := cols[c]; !ok {
					return fmt.Errorf("index %s covers missing column %s.%s", idx.Name, t.Name, c)
				}
			}
		}
		seen[t.Name] = t
	}
	return nil
}

// Snapshot renders the registry into a comparable shape.
func (r *Registry) Snapshot() *Snapshot {
	s := NewSnapshot()
	for _, t := range r.tables {
		s.CreateTable(t)
		for _, idx := range t.Indexes {
			s.CreateIndex(idx)
		}
	}
	return s
}
