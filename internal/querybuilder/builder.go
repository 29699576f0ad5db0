// Package querybuilder renders the SQL statements pgorm issues against
// PostgreSQL.
//
// Grounded on the QueryBuilder in database.go, which accumulates
// where/order/limit state and renders a driver-ready string. pgorm's
// builder is considerably narrower — it has no joins or grouping —
// because EntitySet only ever needs a handful of statement shapes, plus a
// raw WHERE-fragment escape hatch for callers.
package querybuilder

import (
	"fmt"
	"strings"

	"github.com/onyx-go/pgorm/internal/metadata"
)

// Quote wraps an identifier in double quotes for PostgreSQL.
func Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// CreateTable renders a CREATE TABLE statement.
func CreateTable(d *metadata.EntityDescriptor) string {
	defs := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		defs[i] = metadata.ColumnDefinition(col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ( %s );", Quote(d.TableName), strings.Join(defs, ", "))
}

// DropTable renders a DROP TABLE statement.
func DropTable(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", Quote(tableName))
}

// Insert renders an INSERT statement. It omits an
// auto-increment primary key from both the column and value lists and, in
// that case, appends a RETURNING clause so the caller can read back the
// generated value. cols lists the columns to bind, in placeholder order
// (excluding the omitted PK).
func Insert(d *metadata.EntityDescriptor) (sql string, cols []*metadata.ColumnDescriptor) {
	for _, col := range d.Columns {
		if col.IsPrimaryKey && col.IsAutoIncrement {
			continue
		}
		cols = append(cols, col)
	}

	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		names[i] = Quote(col.Name)
		placeholders[i] = fmt.Sprintf("@p%d", i)
	}

	stmt := fmt.Sprintf("INSERT INTO %s ( %s ) VALUES ( %s )", Quote(d.TableName), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if d.PrimaryKey.IsAutoIncrement {
		stmt += fmt.Sprintf(" RETURNING %s;", Quote(d.PrimaryKey.Name))
	} else {
		stmt += ";"
	}
	return stmt, cols
}

// SelectAll renders a SELECT ALL statement.
func SelectAll(d *metadata.EntityDescriptor) string {
	return fmt.Sprintf("SELECT %s FROM %s;", columnList(d), Quote(d.TableName))
}

// SelectByID renders a SELECT BY ID statement.
func SelectByID(d *metadata.EntityDescriptor) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = @p0;", columnList(d), Quote(d.TableName), Quote(d.PrimaryKey.Name))
}

// SelectWhereOptions configures SelectWhere.
type SelectWhereOptions struct {
	// Fragment is a raw WHERE clause body (no leading "WHERE"), using the
	// caller's own @pN placeholders. Empty means no filter.
	Fragment string
	// OrderBy is a column name to sort by. Empty means unordered.
	OrderBy string
	// Ascending selects ASC vs DESC when OrderBy is set.
	Ascending bool
}

// SelectWhere renders a SELECT WHERE statement.
func SelectWhere(d *metadata.EntityDescriptor, opts SelectWhereOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", columnList(d), Quote(d.TableName))
	if opts.Fragment != "" {
		fmt.Fprintf(&b, " WHERE %s", opts.Fragment)
	}
	if opts.OrderBy != "" {
		direction := "ASC"
		if !opts.Ascending {
			direction = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", Quote(opts.OrderBy), direction)
	}
	b.WriteString(";")
	return b.String()
}

// Count renders a COUNT(*) statement.
func Count(d *metadata.EntityDescriptor, fragment string) string {
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s", Quote(d.TableName))
	if fragment != "" {
		stmt += " WHERE " + fragment
	}
	return stmt + ";"
}

// Update renders an UPDATE statement, excluding the primary key
// from the SET list and binding it via the reserved @pId placeholder.
func Update(d *metadata.EntityDescriptor) (sql string, cols []*metadata.ColumnDescriptor) {
	for _, col := range d.Columns {
		if col.IsPrimaryKey {
			continue
		}
		cols = append(cols, col)
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s=@p%d", Quote(col.Name), i)
	}

	sql = fmt.Sprintf("UPDATE %s SET %s WHERE %s = @pId;", Quote(d.TableName), strings.Join(sets, ","), Quote(d.PrimaryKey.Name))
	return sql, cols
}

// DeleteByID renders a DELETE statement.
func DeleteByID(d *metadata.EntityDescriptor) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = @p0;", Quote(d.TableName), Quote(d.PrimaryKey.Name))
}

func columnList(d *metadata.EntityDescriptor) string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = Quote(col.Name)
	}
	return strings.Join(names, ", ")
}
