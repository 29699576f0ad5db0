package metadata

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderStatus int32

func TestSQLType_Scalars(t *testing.T) {
	cases := []struct {
		name string
		typ  reflect.Type
		want string
	}{
		{"int", reflect.TypeOf(int(0)), "INTEGER"},
		{"int64", reflect.TypeOf(int64(0)), "BIGINT"},
		{"int16", reflect.TypeOf(int16(0)), "SMALLINT"},
		{"float32", reflect.TypeOf(float32(0)), "REAL"},
		{"float64", reflect.TypeOf(float64(0)), "DOUBLE PRECISION"},
		{"bool", reflect.TypeOf(false), "BOOLEAN"},
		{"time.Time", reflect.TypeOf(time.Time{}), "TIMESTAMP"},
		{"uuid.UUID", reflect.TypeOf(uuid.UUID{}), "UUID"},
		{"[]byte", reflect.TypeOf([]byte(nil)), "BYTEA"},
		{"Decimal", reflect.TypeOf(Decimal("")), "DECIMAL"},
		{"enum", reflect.TypeOf(orderStatus(0)), "INTEGER"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, _, err := SQLType(c.typ, 0)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestSQLType_StringWithLength(t *testing.T) {
	got, length, err := SQLType(reflect.TypeOf(""), 32)
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR(32)", got)
	assert.Equal(t, 32, length)
}

func TestSQLType_StringWithoutLength(t *testing.T) {
	got, _, err := SQLType(reflect.TypeOf(""), 0)
	require.NoError(t, err)
	assert.Equal(t, "TEXT", got)
}

func TestToDB_UUID(t *testing.T) {
	id := uuid.New()
	v, err := ToDB(reflect.ValueOf(id))
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)
}

func TestToDB_NilPointer(t *testing.T) {
	var s *string
	v, err := ToDB(reflect.ValueOf(s))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestToDB_Enum(t *testing.T) {
	v, err := ToDB(reflect.ValueOf(orderStatus(3)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestFromDB_NilIntoOptional(t *testing.T) {
	v, err := FromDB(nil, reflect.TypeOf((*string)(nil)))
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

func TestFromDB_StringIntoOptional(t *testing.T) {
	v, err := FromDB("hello", reflect.TypeOf((*string)(nil)))
	require.NoError(t, err)
	require.False(t, v.IsNil())
	assert.Equal(t, "hello", v.Elem().String())
}

func TestFromDB_UUIDFromString(t *testing.T) {
	id := uuid.New()
	v, err := FromDB(id.String(), reflect.TypeOf(uuid.UUID{}))
	require.NoError(t, err)
	assert.Equal(t, id, v.Interface())
}

func TestFromDB_EnumFromInt64(t *testing.T) {
	v, err := FromDB(int64(2), reflect.TypeOf(orderStatus(0)))
	require.NoError(t, err)
	assert.Equal(t, orderStatus(2), v.Interface())
}

func TestFromDB_TimeFromString(t *testing.T) {
	v, err := FromDB("2024-06-01 12:30:00", reflect.TypeOf(time.Time{}))
	require.NoError(t, err)
	got := v.Interface().(time.Time)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.June, got.Month())
}

func TestFromDB_IncompatibleTypeErrors(t *testing.T) {
	_, err := FromDB(make(chan int), reflect.TypeOf(int(0)))
	assert.Error(t, err)
}
