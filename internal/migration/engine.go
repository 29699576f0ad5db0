// Package migration implements the MigrationEngine: applying a computed
// schema diff, persisting it as a versioned __MigrationHistory row, and
// rolling it back.
//
// Grounded on the Migrator in migrations.go (batch tracking,
// Run/Rollback/Reset/Status against a migrations table) and on
// xataio-pgroll's pkg/state/state.go for the shape of a single
// source-of-truth history table storing the full schema snapshot per
// migration rather than per-batch file names.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/onyx-go/pgorm/internal/schemadiff"
	"github.com/onyx-go/pgorm/internal/snapshot"
)

const historyTable = `__MigrationHistory`

// Record is one row of __MigrationHistory.
type Record struct {
	ID           int64
	Version      int
	Name         string
	AppliedAt    time.Time
	SnapshotJSON string
	SQLUp        string
	SQLDown      string
}

// Engine is the MigrationEngine.
type Engine struct {
	db    *sql.DB
	types []reflect.Type
	now   func() time.Time
}

// New returns an Engine that derives schema from types, in declaration
// order (the engine never topologically sorts).
func New(db *sql.DB, types []reflect.Type) *Engine {
	return &Engine{db: db, types: types, now: time.Now}
}

// ensureHistoryTable creates __MigrationHistory if absent, idempotently,
// on first use.
func (e *Engine) ensureHistoryTable(ctx context.Context) error {
	_, err := e.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	"id" SERIAL PRIMARY KEY,
	"version" INTEGER NOT NULL,
	"name" VARCHAR(255) NOT NULL,
	"applied_at" TIMESTAMP NOT NULL DEFAULT NOW(),
	"snapshot_json" TEXT NOT NULL,
	"sql_up" TEXT NOT NULL,
	"sql_down" TEXT NOT NULL
);`, quote(historyTable)))
	return err
}

func quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func (e *Engine) currentVersion(ctx context.Context) (int, error) {
	var version int
	err := e.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(MAX("version"), 0) FROM %s;`, quote(historyTable))).Scan(&version)
	return version, err
}

func (e *Engine) loadSnapshot(ctx context.Context, version int) (*snapshot.Snapshot, error) {
	if version == 0 {
		return nil, nil
	}
	var raw string
	err := e.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT "snapshot_json" FROM %s WHERE "version" = $1;`, quote(historyTable)), version).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return snapshot.Unmarshal(raw)
}

// MigrateAll computes the pending schema diff and applies it.
func (e *Engine) MigrateAll(ctx context.Context) ([]schemadiff.Change, error) {
	if err := e.ensureHistoryTable(ctx); err != nil {
		return nil, err
	}

	current, err := e.currentVersion(ctx)
	if err != nil {
		return nil, err
	}

	oldSnap, err := e.loadSnapshot(ctx, current)
	if err != nil {
		return nil, err
	}

	newSnap, err := snapshot.FromEntities(current+1, e.now(), e.types)
	if err != nil {
		return nil, err
	}

	changes := schemadiff.Compare(oldSnap, newSnap)
	if len(changes) == 0 {
		return nil, nil
	}

	var upStatements, downStatements []string
	for _, c := range changes {
		upStatements = append(upStatements, schemadiff.UpSQL(c))
		downStatements = append(downStatements, schemadiff.DownSQL(c))
	}

	// No wrapping transaction: a failing change leaves prior statements
	// applied. This is a known, documented limitation.
	for _, stmt := range upStatements {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("pgorm: migration statement failed: %w (sql=%q)", err, stmt)
		}
	}

	encodedSnapshot, err := snapshot.Marshal(newSnap)
	if err != nil {
		return nil, err
	}

	name := migrationName(changes)
	_, err = e.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s ("version","name","snapshot_json","sql_up","sql_down") VALUES ($1,$2,$3,$4,$5);`,
		quote(historyTable)),
		current+1, name, encodedSnapshot, strings.Join(upStatements, "\n"), strings.Join(downStatements, "\n"))
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// migrationName derives a human-readable name from a set of changes.
func migrationName(changes []schemadiff.Change) string {
	allCreate := true
	for _, c := range changes {
		if c.Kind != schemadiff.CreateTable {
			allCreate = false
			break
		}
	}
	if allCreate {
		return "InitialCreate"
	}

	first := changes[0]
	switch first.Kind {
	case schemadiff.CreateTable:
		return "Create" + first.Table
	case schemadiff.AddColumn:
		return fmt.Sprintf("Add%sTo%s", first.NewColumn.Name, first.Table)
	case schemadiff.DropColumn:
		return fmt.Sprintf("Remove%sFrom%s", first.OldColumn.Name, first.Table)
	case schemadiff.AlterColumn:
		return fmt.Sprintf("Alter%sIn%s", first.NewColumn.Name, first.Table)
	case schemadiff.DropTable:
		return "Drop" + first.Table
	default:
		return fmt.Sprintf("Migration_%s", time.Now().UTC().Format("20060102150405"))
	}
}

// Rollback undoes the most recently applied migration: rollback_to(current-1).
func (e *Engine) Rollback(ctx context.Context) error {
	current, err := e.currentVersion(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		return nil
	}
	return e.RollbackTo(ctx, current-1)
}

// RollbackTo undoes every migration down to (and excluding) target.
func (e *Engine) RollbackTo(ctx context.Context, target int) error {
	current, err := e.currentVersion(ctx)
	if err != nil {
		return err
	}
	if target < 0 || target >= current {
		return &ConflictError{CurrentVersion: current, TargetVersion: target}
	}

	for v := current; v > target; v-- {
		var downSQL string
		err := e.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT "sql_down" FROM %s WHERE "version" = $1;`, quote(historyTable)), v).Scan(&downSQL)
		if err != nil {
			return err
		}

		for _, stmt := range strings.Split(downSQL, "\n") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := e.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("pgorm: rollback statement failed at version %d: %w (sql=%q)", v, err, stmt)
			}
		}

		if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE "version" = $1;`, quote(historyTable)), v); err != nil {
			return err
		}
	}

	return nil
}

// Reset drops every entity's table in reverse declaration order, clears
// history, then migrates from scratch.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.ensureHistoryTable(ctx); err != nil {
		return err
	}

	newSnap, err := snapshot.FromEntities(0, e.now(), e.types)
	if err != nil {
		return err
	}
	for i := len(newSnap.Tables) - 1; i >= 0; i-- {
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE;`, quote(newSnap.Tables[i].TableName))); err != nil {
			return err
		}
	}

	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s;`, quote(historyTable))); err != nil {
		return err
	}

	_, err = e.MigrateAll(ctx)
	return err
}

// ShowMigrationPlan reports the same diff MigrateAll would compute,
// without executing it.
func (e *Engine) ShowMigrationPlan(ctx context.Context) ([]schemadiff.Change, error) {
	if err := e.ensureHistoryTable(ctx); err != nil {
		return nil, err
	}
	current, err := e.currentVersion(ctx)
	if err != nil {
		return nil, err
	}
	oldSnap, err := e.loadSnapshot(ctx, current)
	if err != nil {
		return nil, err
	}
	newSnap, err := snapshot.FromEntities(current+1, e.now(), e.types)
	if err != nil {
		return nil, err
	}
	return schemadiff.Compare(oldSnap, newSnap), nil
}

// ShowHistory lists every applied migration in order.
func (e *Engine) ShowHistory(ctx context.Context) ([]Record, error) {
	if err := e.ensureHistoryTable(ctx); err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT "id","version","name","applied_at","snapshot_json","sql_up","sql_down" FROM %s ORDER BY "version" ASC;`,
		quote(historyTable)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Version, &r.Name, &r.AppliedAt, &r.SnapshotJSON, &r.SQLUp, &r.SQLDown); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ConflictError reports an invalid rollback target, surfaced as a
// migration-specific value distinct from the root package's error type so
// this package has no import-cycle dependency on it; the root package's
// MigrationEngine wraps it.
type ConflictError struct {
	CurrentVersion int
	TargetVersion  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pgorm: cannot roll back to version %d from current version %d", e.TargetVersion, e.CurrentVersion)
}
