// Package eagerload implements naive, one-query-per-(root,navigation)
// eager loading of related entities.
//
// Grounded on eager_loading.go's EagerLoadingEngine, which accumulates
// EagerLoadDefinitions and dispatches by relationship kind
// (BelongsTo/HasOne/HasMany/…). pgorm has no explicit relationship
// declarations — navigation fields must not carry an ownership marker, so
// this package infers the FK column purely from naming convention at load
// time instead of consulting a stored relationship registry.
package eagerload

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/onyx-go/pgorm/internal/metadata"
	"github.com/onyx-go/pgorm/internal/querybuilder"
)

// Navigation names one navigation field to eager-load, by its Go field
// name on the owner entity.
type Navigation struct {
	FieldName string
}

// Loader runs one or more Navigations against a materialized root set.
type Loader struct {
	db *sql.DB
}

// New returns a Loader backed by db.
func New(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// Load populates nav on every element of roots (a slice of pointers to the
// owner entity type).
func (l *Loader) Load(ctx context.Context, ownerType reflect.Type, roots []reflect.Value, nav Navigation) error {
	if len(roots) == 0 {
		return nil
	}

	field, ok := ownerType.FieldByName(nav.FieldName)
	if !ok {
		return fmt.Errorf("pgorm: %s has no field %q to include", ownerType, nav.FieldName)
	}

	ownerDescriptor, err := metadata.Describe(ownerType)
	if err != nil {
		return err
	}

	switch field.Type.Kind() {
	case reflect.Slice:
		return l.loadCollection(ctx, ownerType, ownerDescriptor, roots, field)
	case reflect.Ptr, reflect.Struct:
		return l.loadSingle(ctx, ownerDescriptor, roots, field)
	default:
		return fmt.Errorf("pgorm: field %q is not a navigation member", nav.FieldName)
	}
}

// loadCollection implements the collection-navigation rule: the FK column
// in the related table is snake_case(<OwnerType>) + "_id", the column name
// a Go field "<OwnerType>Id" maps to without a db tag.
func (l *Loader) loadCollection(ctx context.Context, ownerType reflect.Type, ownerDescriptor *metadata.EntityDescriptor, roots []reflect.Value, field reflect.StructField) error {
	relatedType := field.Type.Elem()
	for relatedType.Kind() == reflect.Ptr {
		relatedType = relatedType.Elem()
	}

	relatedDescriptor, err := metadata.Describe(relatedType)
	if err != nil {
		return err
	}

	fkName := fkColumnName(ownerType.Name())
	fkColumn, ok := findColumn(relatedDescriptor, fkName)
	if !ok {
		return nil // no matching FK column: nothing to populate
	}

	for _, root := range roots {
		rootStruct := indirect(root)
		pkValue := metadata.FieldValue(rootStruct, ownerDescriptor.PrimaryKey)

		sql := querybuilder.SelectWhere(relatedDescriptor, querybuilder.SelectWhereOptions{
			Fragment: fmt.Sprintf("%s = @p0", querybuilder.Quote(fkColumn.Name)),
		})
		translated, args, err := querybuilder.Translate(sql, querybuilder.PositionalParams([]interface{}{pkValue.Interface()}))
		if err != nil {
			return err
		}

		rows, err := l.db.QueryContext(ctx, translated, args...)
		if err != nil {
			return err
		}

		related, err := querybuilder.ScanRows(rows, relatedDescriptor, relatedType)
		if err != nil {
			return err
		}

		slice := reflect.MakeSlice(field.Type, 0, len(related))
		for _, r := range related {
			if field.Type.Elem().Kind() == reflect.Ptr {
				slice = reflect.Append(slice, r)
			} else {
				slice = reflect.Append(slice, r.Elem())
			}
		}
		rootStruct.FieldByIndex(field.Index).Set(slice)
	}

	return nil
}

// loadSingle implements the single-entity-navigation rule: the local FK
// field is named "<navName>Id".
func (l *Loader) loadSingle(ctx context.Context, ownerDescriptor *metadata.EntityDescriptor, roots []reflect.Value, field reflect.StructField) error {
	relatedType := field.Type
	if relatedType.Kind() == reflect.Ptr {
		relatedType = relatedType.Elem()
	}

	relatedDescriptor, err := metadata.Describe(relatedType)
	if err != nil {
		return err
	}

	localFKName := field.Name + "Id"
	localFKColumn, ok := findFieldByGoName(ownerDescriptor, localFKName)
	if !ok {
		return nil // no matching local FK field: nothing to populate
	}

	for _, root := range roots {
		rootStruct := indirect(root)
		fkValue := metadata.FieldValue(rootStruct, localFKColumn)
		if isZero(fkValue) {
			continue // zero/NULL FK value: nothing to resolve
		}

		sql := querybuilder.SelectWhere(relatedDescriptor, querybuilder.SelectWhereOptions{
			Fragment: fmt.Sprintf("%s = @p0", querybuilder.Quote(relatedDescriptor.PrimaryKey.Name)),
		})
		translated, args, err := querybuilder.Translate(sql, querybuilder.PositionalParams([]interface{}{fkValue.Interface()}))
		if err != nil {
			return err
		}

		rows, err := l.db.QueryContext(ctx, translated, args...)
		if err != nil {
			return err
		}

		value, found, err := querybuilder.ScanRow(rows, relatedDescriptor, relatedType)
		if err != nil {
			return err
		}
		if !found {
			continue
		}

		target := rootStruct.FieldByIndex(field.Index)
		if field.Type.Kind() == reflect.Ptr {
			target.Set(value)
		} else {
			target.Set(value.Elem())
		}
	}

	return nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

func isZero(v reflect.Value) bool {
	return v.IsZero()
}

func fkColumnName(ownerTypeName string) string {
	return toSnakeCase(ownerTypeName) + "_id"
}

func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			prevUpper := prev >= 'A' && prev <= 'Z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if !prevUpper || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func findColumn(d *metadata.EntityDescriptor, name string) (*metadata.ColumnDescriptor, bool) {
	for _, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// findFieldByGoName locates the ColumnDescriptor for the Go struct field
// named goName (not its SQL column name), used for local FK lookups since
// the convention names the FK after the navigation field, not the
// underlying column.
func findFieldByGoName(d *metadata.EntityDescriptor, goName string) (*metadata.ColumnDescriptor, bool) {
	ownerStruct := d.Type
	field, ok := ownerStruct.FieldByName(goName)
	if !ok {
		return nil, false
	}
	for _, c := range d.Columns {
		if len(c.FieldIndex) == len(field.Index) {
			match := true
			for i := range field.Index {
				if c.FieldIndex[i] != field.Index[i] {
					match = false
					break
				}
			}
			if match {
				return c, true
			}
		}
	}
	return nil, false
}
