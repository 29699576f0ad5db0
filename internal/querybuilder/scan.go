package querybuilder

import (
	"database/sql"
	"reflect"

	"github.com/onyx-go/pgorm/internal/metadata"
)

// ScanRows materializes every row of rows into a freshly allocated entity
// of entityType: for each mapped column, look up the reader ordinal by
// column name; a missing ordinal leaves the field at its zero value; NULL
// yields an optional-none; otherwise the value passes through
// TypeMap.from_db.
//
// Grounded on scanRowsIntoStruct in database.go, generalized from
// hardcoded field-name matching to EntityDescriptor-driven column lookup.
func ScanRows(rows *sql.Rows, d *metadata.EntityDescriptor, entityType reflect.Type) ([]reflect.Value, error) {
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	ordinal := make(map[string]int, len(names))
	for i, n := range names {
		ordinal[n] = i
	}

	var results []reflect.Value
	for rows.Next() {
		raw := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		entity := reflect.New(entityType)
		if err := populate(entity, d, raw, ordinal); err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// ScanRow materializes a single row, returning (value, false, nil) when
// the row set is empty.
func ScanRow(rows *sql.Rows, d *metadata.EntityDescriptor, entityType reflect.Type) (reflect.Value, bool, error) {
	values, err := ScanRows(rows, d, entityType)
	if err != nil {
		return reflect.Value{}, false, err
	}
	if len(values) == 0 {
		return reflect.Value{}, false, nil
	}
	return values[0], true, nil
}

func populate(entity reflect.Value, d *metadata.EntityDescriptor, raw []interface{}, ordinal map[string]int) error {
	for _, col := range d.Columns {
		idx, ok := ordinal[col.Name]
		if !ok {
			continue
		}

		field := metadata.FieldValue(entity, col)
		converted, err := metadata.FromDB(raw[idx], field.Type())
		if err != nil {
			return err
		}
		field.Set(converted)
	}
	return nil
}
