package metadata

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Decimal is the fixed-point numeric type pgorm maps to SQL DECIMAL. Go has
// no built-in arbitrary-precision decimal; rather than pull in a decimal
// library no repo in the retrieval pack depends on, pgorm represents it as
// its exact textual form (grounded on PostgreSQL's own NUMERIC wire format,
// which is text) and leaves arithmetic to the caller.
type Decimal string

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(Decimal(""))
	byteSliceTy = reflect.TypeOf([]byte(nil))
)

// SQLType maps an application type to its SQL type. It returns the SQL
// type fragment and, for VARCHAR, the effective length.
func SQLType(t reflect.Type, length int) (string, int, error) {
	switch {
	case t == timeType:
		return "TIMESTAMP", 0, nil
	case t == uuidType:
		return "UUID", 0, nil
	case t == decimalType:
		return "DECIMAL", 0, nil
	case t == byteSliceTy:
		return "BYTEA", 0, nil
	case isEnum(t):
		return "INTEGER", 0, nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int32:
		return "INTEGER", 0, nil
	case reflect.Int64:
		return "BIGINT", 0, nil
	case reflect.Int8, reflect.Int16:
		return "SMALLINT", 0, nil
	case reflect.Uint, reflect.Uint32, reflect.Uint64, reflect.Uint8, reflect.Uint16:
		return "INTEGER", 0, nil
	case reflect.Float32:
		return "REAL", 0, nil
	case reflect.Float64:
		return "DOUBLE PRECISION", 0, nil
	case reflect.Bool:
		return "BOOLEAN", 0, nil
	case reflect.String:
		if length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", length), length, nil
		}
		return "TEXT", 0, nil
	default:
		return "TEXT", 0, nil
	}
}

// isEnum reports whether t is an application enumeration: a defined type
// (not one of Go's predeclared integer types) whose underlying kind is
// integral. Enums are stored as INTEGER ordinals.
func isEnum(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return t.PkgPath() != "" && t.Name() != ""
	default:
		return false
	}
}

// ToDB converts an application value to its driver-native representation.
func ToDB(value reflect.Value) (driver.Value, error) {
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil, nil
		}
		value = value.Elem()
	}

	t := value.Type()
	switch {
	case t == uuidType:
		return value.Interface().(uuid.UUID).String(), nil
	case t == decimalType:
		return string(value.Interface().(Decimal)), nil
	case isEnum(t):
		return value.Convert(reflect.TypeOf(int64(0))).Interface(), nil
	}

	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(value.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return value.Float(), nil
	case reflect.Bool:
		return value.Bool(), nil
	case reflect.String:
		return value.String(), nil
	case reflect.Slice:
		if t == byteSliceTy {
			return value.Bytes(), nil
		}
	}

	return value.Interface(), nil
}

// FromDB converts a value scanned from the driver back into targetType.
// A nil src with an optional
// (pointer) targetType yields a nil pointer; a nil src with a non-optional
// targetType yields the zero value of targetType.
func FromDB(src interface{}, targetType reflect.Type) (reflect.Value, error) {
	optional := targetType.Kind() == reflect.Ptr
	elemType := targetType
	if optional {
		elemType = targetType.Elem()
	}

	if src == nil {
		if optional {
			return reflect.Zero(targetType), nil
		}
		return reflect.Zero(elemType), nil
	}

	converted, err := convertScalar(src, elemType)
	if err != nil {
		return reflect.Value{}, err
	}

	if optional {
		ptr := reflect.New(elemType)
		ptr.Elem().Set(converted)
		return ptr, nil
	}
	return converted, nil
}

func convertScalar(src interface{}, elemType reflect.Type) (reflect.Value, error) {
	switch {
	case elemType == timeType:
		switch v := src.(type) {
		case time.Time:
			return reflect.ValueOf(v), nil
		case string:
			parsed, err := time.Parse("2006-01-02 15:04:05", v)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(parsed), nil
		}
	case elemType == uuidType:
		switch v := src.(type) {
		case string:
			parsed, err := uuid.Parse(v)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(parsed), nil
		case [16]byte:
			return reflect.ValueOf(uuid.UUID(v)), nil
		}
	case elemType == decimalType:
		switch v := src.(type) {
		case string:
			return reflect.ValueOf(Decimal(v)), nil
		case []byte:
			return reflect.ValueOf(Decimal(v)), nil
		}
	case isEnum(elemType):
		rv := reflect.ValueOf(src)
		switch rv.Kind() {
		case reflect.Int64, reflect.Int32, reflect.Int, reflect.Int16, reflect.Int8:
			return rv.Convert(elemType), nil
		}
	}

	switch elemType.Kind() {
	case reflect.String:
		switch v := src.(type) {
		case string:
			return reflect.ValueOf(v), nil
		case []byte:
			return reflect.ValueOf(string(v)), nil
		}
	case reflect.Bool:
		if v, ok := src.(bool); ok {
			return reflect.ValueOf(v), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		rv := reflect.ValueOf(src)
		if rv.CanConvert(elemType) {
			return rv.Convert(elemType), nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		rv := reflect.ValueOf(src)
		if rv.CanConvert(elemType) {
			return rv.Convert(elemType), nil
		}
	case reflect.Float32, reflect.Float64:
		rv := reflect.ValueOf(src)
		if rv.CanConvert(elemType) {
			return rv.Convert(elemType), nil
		}
	case reflect.Slice:
		if elemType == byteSliceTy {
			if v, ok := src.([]byte); ok {
				return reflect.ValueOf(v), nil
			}
		}
	}

	rv := reflect.ValueOf(src)
	if rv.Type().ConvertibleTo(elemType) {
		return rv.Convert(elemType), nil
	}
	return reflect.Value{}, fmt.Errorf("pgorm: cannot convert %T to %s", src, elemType)
}
