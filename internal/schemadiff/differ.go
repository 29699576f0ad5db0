// Package schemadiff computes ordered schema changes between two
// Snapshots and renders their forward and reverse SQL.
//
// There is no direct analogue for schema diffing in the source framework;
// it applies migrations written by hand rather than computing them. This
// package is grounded instead on xataio-pgroll's change-oriented migration
// model (pkg/schema and the per-operation SQL generation its migrations
// package performs), adapted to pgorm's narrower change-kind vocabulary.
package schemadiff

import (
	"fmt"
	"strings"

	"github.com/onyx-go/pgorm/internal/snapshot"
)

// Kind is one of the five schema-change kinds this package names.
type Kind int

const (
	CreateTable Kind = iota
	DropTable
	AddColumn
	DropColumn
	AlterColumn
)

func (k Kind) String() string {
	switch k {
	case CreateTable:
		return "CreateTable"
	case DropTable:
		return "DropTable"
	case AddColumn:
		return "AddColumn"
	case DropColumn:
		return "DropColumn"
	case AlterColumn:
		return "AlterColumn"
	default:
		return "Unknown"
	}
}

// Change is one schema edit, carrying enough of the old/new snapshot state
// to render both its forward and reverse SQL.
type Change struct {
	Kind      Kind
	Table     string
	OldTable  *snapshot.TableSnapshot
	NewTable  *snapshot.TableSnapshot
	OldColumn *snapshot.ColumnSnapshot
	NewColumn *snapshot.ColumnSnapshot
}

// Compare computes the ordered set of changes from old to new.
func Compare(old, new *snapshot.Snapshot) []Change {
	var changes []Change

	if old == nil {
		for _, t := range new.Tables {
			t := t
			changes = append(changes, Change{Kind: CreateTable, Table: t.TableName, NewTable: &t})
		}
		return changes
	}

	for _, newTable := range new.Tables {
		newTable := newTable
		oldTable, ok := old.FindTable(newTable.TableName)
		if !ok {
			changes = append(changes, Change{Kind: CreateTable, Table: newTable.TableName, NewTable: &newTable})
			continue
		}
		changes = append(changes, compareColumns(oldTable, &newTable)...)
	}

	for _, oldTable := range old.Tables {
		oldTable := oldTable
		if _, ok := new.FindTable(oldTable.TableName); !ok {
			changes = append(changes, Change{Kind: DropTable, Table: oldTable.TableName, OldTable: &oldTable})
		}
	}

	return changes
}

func compareColumns(oldTable *snapshot.TableSnapshot, newTable *snapshot.TableSnapshot) []Change {
	var changes []Change

	for _, newCol := range newTable.Columns {
		newCol := newCol
		oldCol, ok := oldTable.FindColumn(newCol.Name)
		switch {
		case !ok:
			changes = append(changes, Change{Kind: AddColumn, Table: newTable.TableName, NewColumn: &newCol})
		case !oldCol.Equal(newCol):
			changes = append(changes, Change{Kind: AlterColumn, Table: newTable.TableName, OldColumn: oldCol, NewColumn: &newCol})
		}
	}

	for _, oldCol := range oldTable.Columns {
		oldCol := oldCol
		if _, ok := newTable.FindColumn(oldCol.Name); !ok {
			changes = append(changes, Change{Kind: DropColumn, Table: oldTable.TableName, OldColumn: &oldCol})
		}
	}

	return changes
}

func quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// typeDefault renders the type-default literal the AddColumn rule
// injects for non-nullable columns with no explicit default.
func typeDefault(sqlType string) string {
	upper := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(upper, "INT") || strings.Contains(upper, "SERIAL"):
		return "0"
	case strings.Contains(upper, "REAL") || strings.Contains(upper, "DOUBLE") || strings.Contains(upper, "DECIMAL") || strings.Contains(upper, "NUMERIC"):
		return "0.0"
	case strings.Contains(upper, "BOOL"):
		return "FALSE"
	case strings.Contains(upper, "TIMESTAMP"):
		return "NOW()"
	default:
		return "''"
	}
}

func columnDDL(c snapshot.ColumnSnapshot) string {
	if c.PrimaryKey && c.AutoIncrement {
		return fmt.Sprintf("%s SERIAL PRIMARY KEY", quote(c.Name))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", quote(c.Name), c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.DefaultValue != nil {
		fmt.Fprintf(&b, " DEFAULT %s", *c.DefaultValue)
	}
	return b.String()
}

func createTableSQL(t *snapshot.TableSnapshot) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = columnDDL(c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ( %s );", quote(t.TableName), strings.Join(defs, ", "))
}

func dropTableSQL(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", quote(tableName))
}

func addColumnSQL(table string, c *snapshot.ColumnSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN %s %s", quote(table), quote(c.Name), c.Type)
	if !c.Nullable {
		if c.DefaultValue != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *c.DefaultValue)
		} else {
			fmt.Fprintf(&b, " DEFAULT %s", typeDefault(c.Type))
		}
	} else if c.DefaultValue != nil {
		fmt.Fprintf(&b, " DEFAULT %s", *c.DefaultValue)
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	b.WriteString(";")
	return b.String()
}

func dropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", quote(table), quote(column))
}

func uniqueConstraintName(table, column string) string {
	return fmt.Sprintf("%s_%s_unique", table, column)
}

func alterColumnSQL(table string, old, new *snapshot.ColumnSnapshot) string {
	var stmts []string
	if old.Type != new.Type {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", quote(table), quote(new.Name), new.Type))
	}
	if old.Nullable != new.Nullable {
		if new.Nullable {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", quote(table), quote(new.Name)))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", quote(table), quote(new.Name)))
		}
	}
	if old.Unique != new.Unique {
		name := quote(uniqueConstraintName(table, new.Name))
		if new.Unique {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s);", quote(table), name, quote(new.Name)))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", quote(table), name))
		}
	}
	return strings.Join(stmts, "\n")
}

// UpSQL renders the forward statement(s) for a Change.
func UpSQL(c Change) string {
	switch c.Kind {
	case CreateTable:
		return createTableSQL(c.NewTable)
	case DropTable:
		return dropTableSQL(c.Table)
	case AddColumn:
		return addColumnSQL(c.Table, c.NewColumn)
	case DropColumn:
		return dropColumnSQL(c.Table, c.OldColumn.Name)
	case AlterColumn:
		return alterColumnSQL(c.Table, c.OldColumn, c.NewColumn)
	default:
		return ""
	}
}

// DownSQL renders the reverse statement(s) for a Change, so that applying
// Up then Down is a no-op on schema.
func DownSQL(c Change) string {
	switch c.Kind {
	case CreateTable:
		return dropTableSQL(c.Table)
	case DropTable:
		return createTableSQL(c.OldTable)
	case AddColumn:
		return dropColumnSQL(c.Table, c.NewColumn.Name)
	case DropColumn:
		return addColumnSQL(c.Table, c.OldColumn)
	case AlterColumn:
		return alterColumnSQL(c.Table, c.NewColumn, c.OldColumn)
	default:
		return ""
	}
}
