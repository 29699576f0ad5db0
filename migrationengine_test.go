package pgorm

import (
	"context"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doctor struct {
	ID   int64  `db:"id" pgorm:"pk,autoincrement"`
	Name string `db:"name" pgorm:"notnull"`
}

func TestMigrationEngine_MigrateAll_InitialCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "__MigrationHistory"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\("version"\), 0\) FROM "__MigrationHistory";`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "doctors"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "__MigrationHistory"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	engine := NewMigrationEngine(db, []reflect.Type{reflect.TypeOf(doctor{})})
	changes, err := engine.MigrateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "CreateTable", changes[0].Kind.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationEngine_MigrateAll_NoOpWhenUnchanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	snap := `{"version":1,"createdAt":"2024-01-01T00:00:00Z","tables":[{"tableName":"doctors","columns":[` +
		`{"name":"id","type":"BIGINT","nullable":false,"primaryKey":true,"autoIncrement":true,"unique":false,"defaultValue":null},` +
		`{"name":"name","type":"TEXT","nullable":false,"primaryKey":false,"autoIncrement":false,"unique":false,"defaultValue":null}]}]}`

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "__MigrationHistory"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\("version"\), 0\) FROM "__MigrationHistory";`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectQuery(`SELECT "snapshot_json" FROM "__MigrationHistory" WHERE "version" = \$1;`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"snapshot_json"}).AddRow(snap))

	engine := NewMigrationEngine(db, []reflect.Type{reflect.TypeOf(doctor{})})
	changes, err := engine.MigrateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationEngine_Rollback_NoOpAtVersionZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\("version"\), 0\) FROM "__MigrationHistory";`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

	engine := NewMigrationEngine(db, []reflect.Type{reflect.TypeOf(doctor{})})
	err = engine.Rollback(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationEngine_RollbackTo_RejectsTargetAboveCurrent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\("version"\), 0\) FROM "__MigrationHistory";`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))

	engine := NewMigrationEngine(db, []reflect.Type{reflect.TypeOf(doctor{})})
	err = engine.RollbackTo(context.Background(), 5)
	require.Error(t, err)

	var conflict *MigrationConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.CurrentVersion)
	assert.Equal(t, 5, conflict.TargetVersion)
}
