// Package metadata derives table/column schema from entity struct
// declarations.
//
// Grounded on the db:"..." tag convention used throughout database.go and
// internal/database/model.go, generalized from a single "db" tag to a
// "db" + "pgorm" pair, since the source never needed to express primary
// keys, uniqueness, or foreign keys through tags (it hardcoded an "id"
// BaseModel instead).
package metadata

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ForeignKeyDescriptor describes a column's reference to another entity's
// primary key.
type ForeignKeyDescriptor struct {
	ReferenceEntity string
	ReferenceColumn string
}

// ColumnDescriptor describes one mapped column.
type ColumnDescriptor struct {
	Name            string
	FieldIndex      []int
	GoType          reflect.Type
	SQLType         string
	Nullable        bool
	IsPrimaryKey    bool
	IsAutoIncrement bool
	IsUnique        bool
	HasDefault      bool
	DefaultValue    interface{}
	ForeignKey      *ForeignKeyDescriptor
	Length          int
}

// EntityDescriptor describes one mapped entity type.
type EntityDescriptor struct {
	Type       reflect.Type
	TableName  string
	Columns    []*ColumnDescriptor // mapped_columns, declaration order
	PrimaryKey *ColumnDescriptor
}

// Model lets an entity override its table name (mirrors the Model
// interface in database.go). Entities that don't implement it get the
// "ClassName+s" pluralization convention.
type Model interface {
	TableName() string
}

var (
	registryMu sync.Mutex
	registry   = map[reflect.Type]*EntityDescriptor{}
)

// Describe returns the EntityDescriptor for entityType (a struct type, not
// a pointer), building and caching it on first use via lazy runtime
// reflection rather than a build-time code generator.
func Describe(entityType reflect.Type) (*EntityDescriptor, error) {
	for entityType.Kind() == reflect.Ptr {
		entityType = entityType.Elem()
	}
	if entityType.Kind() != reflect.Struct {
		return nil, &Error{EntityType: entityType.String(), Message: "not a struct type"}
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if d, ok := registry[entityType]; ok {
		return d, nil
	}

	d, err := build(entityType)
	if err != nil {
		return nil, err
	}
	registry[entityType] = d
	return d, nil
}

func build(entityType reflect.Type) (*EntityDescriptor, error) {
	d := &EntityDescriptor{
		Type:      entityType,
		TableName: tableName(entityType),
	}

	for i := 0; i < entityType.NumField(); i++ {
		field := entityType.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}

		tag := field.Tag.Get("pgorm")
		if tag == "-" {
			continue
		}

		if isNavigationField(field.Type) {
			continue // mapped_columns excludes navigation members
		}

		col, err := buildColumn(field, tag)
		if err != nil {
			return nil, &Error{EntityType: entityType.String(), Field: field.Name, Message: err.Error(), Err: err}
		}
		col.FieldIndex = append([]int{}, field.Index...)

		d.Columns = append(d.Columns, col)
		if col.IsPrimaryKey {
			if d.PrimaryKey != nil {
				return nil, &Error{EntityType: entityType.String(), Message: "declares more than one primary key column"}
			}
			d.PrimaryKey = col
		}
	}

	if d.PrimaryKey == nil {
		return nil, &Error{EntityType: entityType.String(), Message: "has no primary key column"}
	}

	return d, nil
}

// Error reports a problem with an entity's declared metadata: a missing
// primary key, an unsupported field shape, or a malformed struct tag.
// pgorm.MetadataError is a type alias for this type, so callers can
// errors.As into either name.
type Error struct {
	EntityType string
	Field      string // empty when the problem isn't specific to one field
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("pgorm: metadata error on %s.%s: %s", e.EntityType, e.Field, e.Message)
	}
	return fmt.Sprintf("pgorm: metadata error on %s: %s", e.EntityType, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func tableName(entityType reflect.Type) string {
	if m, ok := reflect.New(entityType).Interface().(Model); ok {
		return m.TableName()
	}
	return entityType.Name() + "s"
}

// isNavigationField reports collection-typed and entity-typed fields,
// which stay opaque to QueryBuilder. string and []byte are explicit
// exemptions.
func isNavigationField(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return false // []byte maps to BYTEA, uuid.UUID to UUID
		}
		return true
	case reflect.Map:
		return true
	case reflect.Struct:
		return !isValueStructType(t)
	case reflect.Ptr:
		if t.Elem().Kind() == reflect.Struct {
			return !isValueStructType(t.Elem())
		}
		return false
	default:
		return false
	}
}

func isValueStructType(t reflect.Type) bool {
	return t == reflect.TypeOf(time.Time{})
}

func buildColumn(field reflect.StructField, tag string) (*ColumnDescriptor, error) {
	col := &ColumnDescriptor{
		Name:   columnName(field),
		GoType: field.Type,
	}

	goType := field.Type
	optional := goType.Kind() == reflect.Ptr
	if optional {
		goType = goType.Elem()
	}
	col.Nullable = optional

	sqlType, length, err := SQLType(goType, 0)
	if err != nil {
		return nil, err
	}
	col.SQLType = sqlType
	col.Length = length

	for _, part := range splitTag(tag) {
		switch {
		case part == "pk":
			col.IsPrimaryKey = true
		case part == "autoincrement":
			col.IsAutoIncrement = true
		case part == "unique":
			col.IsUnique = true
		case part == "nullable":
			col.Nullable = true
		case part == "notnull":
			col.Nullable = false
		case strings.HasPrefix(part, "default="):
			col.HasDefault = true
			col.DefaultValue = parseDefaultLiteral(goType, strings.TrimPrefix(part, "default="))
		case strings.HasPrefix(part, "length="):
			n, err := strconv.Atoi(strings.TrimPrefix(part, "length="))
			if err != nil {
				return nil, fmt.Errorf("invalid length tag: %w", err)
			}
			col.Length = n
			if goType.Kind() == reflect.String {
				col.SQLType = fmt.Sprintf("VARCHAR(%d)", n)
			}
		case strings.HasPrefix(part, "fk="):
			ref := strings.TrimPrefix(part, "fk=")
			entity, column, ok := strings.Cut(ref, ".")
			if !ok {
				column = "id"
				entity = ref
			}
			col.ForeignKey = &ForeignKeyDescriptor{ReferenceEntity: entity, ReferenceColumn: column}
		case part == "":
			// ignore
		default:
			return nil, fmt.Errorf("unrecognized pgorm tag %q", part)
		}
	}

	if col.IsAutoIncrement && !col.IsPrimaryKey {
		return nil, fmt.Errorf("autoincrement without pk is not supported")
	}
	if col.IsPrimaryKey {
		col.Nullable = false
	}

	return col, nil
}

func splitTag(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

func columnName(field reflect.StructField) string {
	if db := field.Tag.Get("db"); db != "" && db != "-" {
		return db
	}
	return toSnakeCase(field.Name)
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

func parseDefaultLiteral(goType reflect.Type, raw string) interface{} {
	switch goType.Kind() {
	case reflect.Bool:
		return raw == "true" || raw == "TRUE"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			return n
		}
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			return f
		}
	}
	return raw
}

// MappedColumns returns d.Columns — an explicit accessor mirroring the
// mapped_columns(T) operation name.
func (d *EntityDescriptor) MappedColumns() []*ColumnDescriptor {
	return d.Columns
}

// FieldValue returns the reflect.Value for col within entity (a pointer to
// the entity struct, or the struct itself).
func FieldValue(entity reflect.Value, col *ColumnDescriptor) reflect.Value {
	for entity.Kind() == reflect.Ptr {
		entity = entity.Elem()
	}
	return entity.FieldByIndex(col.FieldIndex)
}

// ColumnDefinition produces the DDL fragment for col.
func ColumnDefinition(col *ColumnDescriptor) string {
	if col.IsPrimaryKey && col.IsAutoIncrement {
		return fmt.Sprintf(`"%s" SERIAL PRIMARY KEY`, col.Name)
	}

	sqlType := col.SQLType
	var b strings.Builder
	fmt.Fprintf(&b, `"%s" %s`, col.Name, sqlType)

	if col.IsPrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.IsUnique {
		b.WriteString(" UNIQUE")
	}
	if col.HasDefault {
		fmt.Fprintf(&b, " DEFAULT %s", FormatLiteral(col.DefaultValue))
	}

	return b.String()
}

// FormatLiteral renders a default-value literal: strings single-quoted,
// booleans TRUE/FALSE, timestamps
// 'YYYY-MM-DD HH:MM:SS', numerics as plain decimal.
func FormatLiteral(value interface{}) string {
	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05") + "'"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
