package schema

import (
	"fmt"
	"strings"
)

// ColumnDef renders a column definition without table-level constraints.
func ColumnDef(c Column) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(c.Type.SQL())
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	} else if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

// ColumnConstraints renders the named constraints a column carries.
func ColumnConstraints(table string, c Column) []string {
	var out []string
	if c.Unique {
		out = append(out, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", UniqueName(table, c.Name), c.Name))
	}
	if fk := c.References; fk != nil {
		out = append(out, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE %s",
			ForeignKeyName(table, c.Name), c.Name, fk.Table, fk.Column, fk.OnDelete))
	}
	if c.Type.Kind == KindEnum {
		out = append(out, fmt.Sprintf("CONSTRAINT %s CHECK (%s)",
			EnumCheckName(table, c.Name), EnumCheckExpr(c.Name, c.Type.Values)))
	}
	return out
}

func CreateTableSQL(t Table) string {
	var parts []string
	for _, c := range t.Columns {
		parts = append(parts, ColumnDef(c))
	}
	for _, c := range t.Columns {
		parts = append(parts, ColumnConstraints(t.Name, c)...)
	}
	for _, chk := range t.Checks {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s CHECK (%s)", chk.Name, chk.Expr))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", t.Name, strings.Join(parts, ",\n    "))
}

func DropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", name)
}

// AddColumnSQL adds the column and its constraints in one statement.
func AddColumnSQL(table string, c Column) string {
	clauses := []string{"ADD COLUMN IF NOT EXISTS " + ColumnDef(c)}
	for _, con := range ColumnConstraints(table, c) {
		clauses = append(clauses, "ADD "+con)
	}
	return fmt.Sprintf("ALTER TABLE %s %s", table, strings.Join(clauses, ", "))
}

func DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", table, column)
}

func AlterColumnTypeSQL(table, column string, typ ColumnType) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, column, typ.SQL())
}

func CreateIndexSQL(idx Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, idx.Name, idx.Table, strings.Join(idx.Columns, ", "))
	if idx.Where != "" {
		stmt += " WHERE " + idx.Where
	}
	return stmt
}

func DropIndexSQL(name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", name)
}

func AddCheckSQL(table string, chk Check) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", table, chk.Name, chk.Expr)
}

func DropCheckSQL(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", table, name)
}

// DDL renders the full registry as a script, tables then indexes.
func (r *Registry) DDL() string {
	var stmts []string
	for _, t := range r.tables {
		stmts = append(stmts, CreateTableSQL(t))
	}
	for _, t := range r.tables {
		for _, idx := range t.Indexes {
			stmts = append(stmts, CreateIndexSQL(idx))
		}
	}
	return strings.Join(stmts, ";\n\n") + ";\n"
}
