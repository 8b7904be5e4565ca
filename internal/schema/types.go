// Package schema holds the canonical, data-only description of every table
// the record store persists. The migration engine replays towards it and the
// model layer validates enumerated fields against its vocabularies.
package schema

import (
	"fmt"
	"strings"
)

// Kind is the semantic type of a column.
type Kind int

const (
	KindUUID Kind = iota + 1
	KindString
	KindText
	KindInteger
	KindDecimal
	KindBoolean
	KindTimestamp
	KindEnum
	KindJSON
	KindStringArray
)

// enumStorageLength is the VARCHAR width used to store enumerated values.
const enumStorageLength = 32

// ColumnType is a semantic type plus its parameters.
type ColumnType struct {
	Kind      Kind
	Length    int
	Precision int
	Scale     int
	// Enum names the vocabulary for KindEnum columns. Values is the storage
	// vocabulary the CHECK constraint admits at the time the type is used.
	Enum   string
	Values []string
}

func UUID() ColumnType        { return ColumnType{Kind: KindUUID} }
func String(n int) ColumnType { return ColumnType{Kind: KindString, Length: n} }
func Text() ColumnType        { return ColumnType{Kind: KindText} }
func Integer() ColumnType     { return ColumnType{Kind: KindInteger} }
func Boolean() ColumnType     { return ColumnType{Kind: KindBoolean} }
func Timestamp() ColumnType   { return ColumnType{Kind: KindTimestamp} }
func JSON() ColumnType        { return ColumnType{Kind: KindJSON} }
func StringArray() ColumnType { return ColumnType{Kind: KindStringArray} }

func Decimal(precision, scale int) ColumnType {
	return ColumnType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// EnumOf stores a value from the named vocabulary, admitting values.
func EnumOf(name string, values ...string) ColumnType {
	return ColumnType{Kind: KindEnum, Enum: name, Values: values}
}

// SQL renders the PostgreSQL storage type.
func (t ColumnType) SQL() string {
	switch t.Kind {
	case KindUUID:
		return "UUID"
	case KindString:
		return fmt.Sprintf("VARCHAR(%d)", t.Length)
	case KindText:
		return "TEXT"
	case KindInteger:
		return "INTEGER"
	case KindDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
	case KindBoolean:
		return "BOOLEAN"
	case KindTimestamp:
		return "TIMESTAMPTZ"
	case KindEnum:
		return fmt.Sprintf("VARCHAR(%d)", enumStorageLength)
	case KindJSON:
		return "JSONB"
	case KindStringArray:
		return "TEXT[]"
	default:
		return "UNKNOWN"
	}
}

// OnDelete is the referential action of a foreign key.
type OnDelete string

const (
	Restrict OnDelete = "RESTRICT"
	Cascade  OnDelete = "CASCADE"
	SetNull  OnDelete = "SET NULL"
)

type ForeignKey struct {
	Table    string
	Column   string
	OnDelete OnDelete
}

type Column struct {
	Name       string
	Type       ColumnType
	Nullable   bool
	Unique     bool
	PrimaryKey bool
	Default    string
	References *ForeignKey
}

type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
	Where   string
}

type Check struct {
	Name string
	Expr string
}

type Table struct {
	Name       string
	Columns    []Column
	Indexes    []Index
	Checks     []Check
	SoftDelete bool
}

// Column looks a column up by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames lists columns in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Constraint names follow one convention so introspection can find them.
func UniqueName(table, column string) string { return "uq_" + table + "_" + column }
func ForeignKeyName(table, column string) string {
	return "fk_" + table + "_" + column
}
func EnumCheckName(table, column string) string { return "chk_" + table + "_" + column }

// EnumCheckExpr is the CHECK expression admitting values for column.
func EnumCheckExpr(column string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(quoted, ", "))
}

// Column constructors shared by the registry and the migration steps.

func ID() Column {
	return Column{Name: "id", Type: UUID(), PrimaryKey: true}
}

func Ref(name, table string, onDelete OnDelete, nullable bool) Column {
	return Column{
		Name:       name,
		Type:       UUID(),
		Nullable:   nullable,
		References: &ForeignKey{Table: table, Column: "id", OnDelete: onDelete},
	}
}

func Timestamps() []Column {
	return []Column{
		{Name: "created_at", Type: Timestamp(), Default: "NOW()"},
		{Name: "updated_at", Type: Timestamp(), Default: "NOW()"},
	}
}

func DeletedAt() Column {
	return Column{Name: "deleted_at", Type: Timestamp(), Nullable: true}
}
