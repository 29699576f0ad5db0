package schemadiff

import (
	"testing"

	"github.com/onyx-go/pgorm/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func baseSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Version: 1,
		Tables: []snapshot.TableSnapshot{
			{
				TableName: "patients",
				Columns: []snapshot.ColumnSnapshot{
					{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
					{Name: "first_name", Type: "TEXT", Nullable: false},
					{Name: "last_name", Type: "TEXT", Nullable: false},
				},
			},
		},
	}
}

func TestCompare_NilOldProducesCreateTablePerTable(t *testing.T) {
	changes := Compare(nil, baseSnapshot())
	require.Len(t, changes, 1)
	assert.Equal(t, CreateTable, changes[0].Kind)
	assert.Equal(t, "patients", changes[0].Table)
}

func TestCompare_IsIdempotent(t *testing.T) {
	snap := baseSnapshot()
	assert.Empty(t, Compare(snap, snap))
}

func TestCompare_NewTableAddedAppearsAsCreateTable(t *testing.T) {
	old := baseSnapshot()
	newSnap := baseSnapshot()
	newSnap.Tables = append(newSnap.Tables, snapshot.TableSnapshot{TableName: "doctors"})

	changes := Compare(old, newSnap)
	require.Len(t, changes, 1)
	assert.Equal(t, CreateTable, changes[0].Kind)
	assert.Equal(t, "doctors", changes[0].Table)
}

func TestCompare_TableRemovedAppearsAsDropTable(t *testing.T) {
	old := baseSnapshot()
	newSnap := &snapshot.Snapshot{}

	changes := Compare(old, newSnap)
	require.Len(t, changes, 1)
	assert.Equal(t, DropTable, changes[0].Kind)
	assert.Equal(t, "patients", changes[0].Table)
}

func TestCompare_AddColumn(t *testing.T) {
	old := baseSnapshot()
	newSnap := baseSnapshot()
	newSnap.Tables[0].Columns = append(newSnap.Tables[0].Columns, snapshot.ColumnSnapshot{Name: "middle_name", Type: "VARCHAR(50)", Nullable: true})

	changes := Compare(old, newSnap)
	require.Len(t, changes, 1)
	assert.Equal(t, AddColumn, changes[0].Kind)
	assert.Equal(t, "middle_name", changes[0].NewColumn.Name)
}

func TestCompare_DropColumn(t *testing.T) {
	old := baseSnapshot()
	newSnap := baseSnapshot()
	newSnap.Tables[0].Columns = newSnap.Tables[0].Columns[:2]

	changes := Compare(old, newSnap)
	require.Len(t, changes, 1)
	assert.Equal(t, DropColumn, changes[0].Kind)
	assert.Equal(t, "last_name", changes[0].OldColumn.Name)
}

func TestCompare_AlterColumn_OnTypeChange(t *testing.T) {
	old := baseSnapshot()
	newSnap := baseSnapshot()
	newSnap.Tables[0].Columns[1].Type = "VARCHAR(100)"

	changes := Compare(old, newSnap)
	require.Len(t, changes, 1)
	assert.Equal(t, AlterColumn, changes[0].Kind)
}

func TestCompare_IgnoresPKAndAutoIncrementChanges(t *testing.T) {
	old := baseSnapshot()
	newSnap := baseSnapshot()
	newSnap.Tables[0].Columns[0].AutoIncrement = false

	assert.Empty(t, Compare(old, newSnap))
}

func TestCompare_CaseInsensitiveNames(t *testing.T) {
	old := baseSnapshot()
	newSnap := baseSnapshot()
	newSnap.Tables[0].TableName = "PATIENTS"

	assert.Empty(t, Compare(old, newSnap))
}

func TestUpDownSQL_CreateDropTableInvert(t *testing.T) {
	changes := Compare(nil, baseSnapshot())
	require.Len(t, changes, 1)
	up := UpSQL(changes[0])
	down := DownSQL(changes[0])
	assert.Contains(t, up, "CREATE TABLE")
	assert.Equal(t, `DROP TABLE IF EXISTS "patients" CASCADE;`, down)
}

func TestUpDownSQL_AddColumnNonNullInjectsDefault(t *testing.T) {
	change := Change{
		Kind:      AddColumn,
		Table:     "patients",
		NewColumn: &snapshot.ColumnSnapshot{Name: "status", Type: "INTEGER", Nullable: false},
	}
	up := UpSQL(change)
	assert.Contains(t, up, "DEFAULT 0")
	down := DownSQL(change)
	assert.Equal(t, `ALTER TABLE "patients" DROP COLUMN "status";`, down)
}

func TestUpDownSQL_AddColumnNullableNoDefault(t *testing.T) {
	change := Change{
		Kind:      AddColumn,
		Table:     "patients",
		NewColumn: &snapshot.ColumnSnapshot{Name: "middle_name", Type: "VARCHAR(50)", Nullable: true},
	}
	up := UpSQL(change)
	assert.Equal(t, `ALTER TABLE "patients" ADD COLUMN "middle_name" VARCHAR(50);`, up)
}

func TestUpDownSQL_DropColumnRestoresFromOldColumn(t *testing.T) {
	change := Change{
		Kind:      DropColumn,
		Table:     "patients",
		OldColumn: &snapshot.ColumnSnapshot{Name: "middle_name", Type: "VARCHAR(50)", Nullable: true},
	}
	down := DownSQL(change)
	assert.Contains(t, down, `ADD COLUMN "middle_name"`)
}

func TestUpDownSQL_AlterColumnSwapsOldNew(t *testing.T) {
	change := Change{
		Kind:      AlterColumn,
		Table:     "patients",
		OldColumn: &snapshot.ColumnSnapshot{Name: "last_name", Type: "TEXT", Nullable: false},
		NewColumn: &snapshot.ColumnSnapshot{Name: "last_name", Type: "VARCHAR(100)", Nullable: false},
	}
	up := UpSQL(change)
	down := DownSQL(change)
	assert.Contains(t, up, `TYPE VARCHAR(100)`)
	assert.Contains(t, down, `TYPE TEXT`)
}

func TestUpDownSQL_AlterColumnUniqueConstraintName(t *testing.T) {
	change := Change{
		Kind:      AlterColumn,
		Table:     "patients",
		OldColumn: &snapshot.ColumnSnapshot{Name: "oib", Type: "TEXT", Unique: false},
		NewColumn: &snapshot.ColumnSnapshot{Name: "oib", Type: "TEXT", Unique: true},
	}
	up := UpSQL(change)
	assert.Contains(t, up, `ADD CONSTRAINT "patients_oib_unique" UNIQUE ("oib")`)
}
