package migration

import (
	"testing"

	"github.com/onyx-go/pgorm/internal/schemadiff"
	"github.com/onyx-go/pgorm/internal/snapshot"
	"github.com/stretchr/testify/assert"
)

func TestMigrationName_AllCreateTableIsInitialCreate(t *testing.T) {
	changes := []schemadiff.Change{
		{Kind: schemadiff.CreateTable, Table: "Doctors"},
		{Kind: schemadiff.CreateTable, Table: "Patients"},
	}
	assert.Equal(t, "InitialCreate", migrationName(changes))
}

func TestMigrationName_AddColumn(t *testing.T) {
	changes := []schemadiff.Change{
		{Kind: schemadiff.AddColumn, Table: "Patients", NewColumn: &snapshot.ColumnSnapshot{Name: "MiddleName"}},
	}
	assert.Equal(t, "AddMiddleNameToPatients", migrationName(changes))
}

func TestMigrationName_DropColumn(t *testing.T) {
	changes := []schemadiff.Change{
		{Kind: schemadiff.DropColumn, Table: "Patients", OldColumn: &snapshot.ColumnSnapshot{Name: "MiddleName"}},
	}
	assert.Equal(t, "RemoveMiddleNameFromPatients", migrationName(changes))
}

func TestMigrationName_AlterColumn(t *testing.T) {
	changes := []schemadiff.Change{
		{Kind: schemadiff.AlterColumn, Table: "Patients", NewColumn: &snapshot.ColumnSnapshot{Name: "LastName"}},
	}
	assert.Equal(t, "AlterLastNameInPatients", migrationName(changes))
}

func TestMigrationName_DropTable(t *testing.T) {
	changes := []schemadiff.Change{
		{Kind: schemadiff.DropTable, Table: "Archive"},
	}
	assert.Equal(t, "DropArchive", migrationName(changes))
}

func TestConflictError_Message(t *testing.T) {
	err := &ConflictError{CurrentVersion: 2, TargetVersion: 5}
	assert.Contains(t, err.Error(), "5")
	assert.Contains(t, err.Error(), "2")
}
