package pgorm

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	"github.com/onyx-go/pgorm/internal/migration"
	"github.com/onyx-go/pgorm/internal/schemadiff"
)

// MigrationEngine is the public migration API: migrate_all, rollback,
// rollback_to, show_history, show_migration_plan, reset.
type MigrationEngine struct {
	engine *migration.Engine
	logger Logger
}

// NewMigrationEngine derives schema from entityTypes (in declaration
// order — migrations are never topologically sorted) and returns an
// Engine bound to db.
func NewMigrationEngine(db *sql.DB, entityTypes []reflect.Type, opts ...SessionOption) *MigrationEngine {
	s := &Session{logger: NoopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return &MigrationEngine{engine: migration.New(db, entityTypes), logger: s.logger}
}

// MigrateAll applies every pending schema change. Once the engine returns,
// it logs one success entry per applied change, or a single failure entry.
func (m *MigrationEngine) MigrateAll(ctx context.Context) ([]schemadiff.Change, error) {
	changes, err := m.engine.MigrateAll(ctx)
	if err != nil {
		m.logger.Error("migration failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	for _, c := range changes {
		m.logger.Info("migration change applied", map[string]interface{}{"kind": c.Kind.String(), "table": c.Table})
	}
	return changes, nil
}

// Rollback undoes the most recently applied migration.
func (m *MigrationEngine) Rollback(ctx context.Context) error {
	if err := m.engine.Rollback(ctx); err != nil {
		return wrapMigrationError(err)
	}
	return nil
}

// RollbackTo undoes migrations down to (and excluding) target.
func (m *MigrationEngine) RollbackTo(ctx context.Context, target int) error {
	if err := m.engine.RollbackTo(ctx, target); err != nil {
		return wrapMigrationError(err)
	}
	return nil
}

// Reset drops every mapped table and history row, then migrates from scratch.
func (m *MigrationEngine) Reset(ctx context.Context) error {
	return m.engine.Reset(ctx)
}

// ShowMigrationPlan reports the pending schema diff without applying it.
func (m *MigrationEngine) ShowMigrationPlan(ctx context.Context) ([]schemadiff.Change, error) {
	return m.engine.ShowMigrationPlan(ctx)
}

// ShowHistory lists every applied migration in order.
func (m *MigrationEngine) ShowHistory(ctx context.Context) ([]migration.Record, error) {
	return m.engine.ShowHistory(ctx)
}

func wrapMigrationError(err error) error {
	var conflict *migration.ConflictError
	if errors.As(err, &conflict) {
		return &MigrationConflictError{
			CurrentVersion: conflict.CurrentVersion,
			TargetVersion:  conflict.TargetVersion,
			Message:        conflict.Error(),
		}
	}
	return err
}
