package pgorm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onyx-go/pgorm/internal/changetracker"
	"github.com/onyx-go/pgorm/internal/metadata"
	"github.com/onyx-go/pgorm/internal/querybuilder"
)

// Session is the Unit-of-Work context: it holds a connection and a
// ChangeTracker, and is the handle every EntitySet[T] is constructed
// against.
//
// Grounded on the DB wrapper in database.go, narrowed to a single
// SaveChanges-centric lifecycle instead of the ad hoc
// CreateModel/UpdateModel dispatcher functions it replaces.
type Session struct {
	db      *sql.DB
	tracker *changetracker.Tracker
	logger  Logger
}

// NewSession wraps an already-open *sql.DB in a Session with a fresh
// ChangeTracker.
func NewSession(db *sql.DB, opts ...SessionOption) *Session {
	s := &Session{db: db, tracker: changetracker.New(), logger: NoopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionOption configures a Session at construction.
type SessionOption func(*Session)

// WithLogger installs a non-default Logger for migration and SaveChanges
// diagnostics.
func WithLogger(logger Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// NewEntitySet returns an EntitySet[T] bound to s's connection and
// ChangeTracker. Go's method type-parameter restriction means this can't
// be a method on Session, so it's a package-level constructor instead —
// the closest idiomatic analogue to constructing an EntitySet per mapped
// entity member.
func NewEntitySet[T any](s *Session) (*EntitySet[T], error) {
	return newEntitySet[T](s.db, s.tracker)
}

// DB returns the underlying connection pool, for callers building their
// own EntitySets or running ad hoc queries outside of QueryBuilder.
func (s *Session) DB() *sql.DB { return s.db }

// HasChanges reports whether any tracked entity is Added, Modified, or
// Deleted.
func (s *Session) HasChanges() bool { return s.tracker.HasChanges() }

// SaveChanges flushes every staged Added/Modified/Deleted entity inside a
// single transaction, committing only if every statement succeeds.
func (s *Session) SaveChanges(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &QueryExecutionError{Err: err}
	}

	affected, err := s.flush(ctx, tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed after save_changes error", map[string]interface{}{"error": rbErr.Error()})
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, &QueryExecutionError{Err: err}
	}

	s.tracker.AcceptAllChanges()
	return affected, nil
}

func (s *Session) flush(ctx context.Context, tx *sql.Tx) (int, error) {
	total := 0

	for _, entry := range s.tracker.EntriesInState(changetracker.Added) {
		n, err := s.insertEntry(ctx, tx, entry)
		if err != nil {
			return 0, err
		}
		total += n
	}

	for _, entry := range s.tracker.EntriesInState(changetracker.Modified) {
		n, err := s.updateEntry(ctx, tx, entry)
		if err != nil {
			return 0, err
		}
		total += n
	}

	for _, entry := range s.tracker.EntriesInState(changetracker.Deleted) {
		n, err := s.deleteEntry(ctx, tx, entry)
		if err != nil {
			return 0, err
		}
		total += n
	}

	return total, nil
}

// wrapQueryError builds a QueryExecutionError from a driver failure,
// classifying unique-violation failures so insertEntry/updateEntry callers
// can branch on them without importing lib/pq themselves.
func wrapQueryError(sqlText string, args []interface{}, err error) *QueryExecutionError {
	return &QueryExecutionError{SQL: sqlText, Args: args, Err: err, Unique: IsUniqueViolation(err)}
}

func (s *Session) insertEntry(ctx context.Context, tx *sql.Tx, entry *changetracker.Entry) (int, error) {
	d, err := metadata.Describe(entry.EntityType)
	if err != nil {
		return 0, err
	}

	stmt, cols := querybuilder.Insert(d)
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		v, err := metadata.ToDB(metadata.FieldValue(entry.Entity, col))
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	translated, bound, err := querybuilder.Translate(stmt, querybuilder.PositionalParams(args))
	if err != nil {
		return 0, err
	}

	if d.PrimaryKey.IsAutoIncrement {
		var generated interface{}
		if err := tx.QueryRowContext(ctx, translated, bound...).Scan(&generated); err != nil {
			return 0, wrapQueryError(translated, bound, err)
		}
		converted, err := metadata.FromDB(generated, entry.EntityType.FieldByIndex(d.PrimaryKey.FieldIndex).Type)
		if err != nil {
			return 0, err
		}
		metadata.FieldValue(entry.Entity, d.PrimaryKey).Set(converted)
		return 1, nil
	}

	result, err := tx.ExecContext(ctx, translated, bound...)
	if err != nil {
		return 0, wrapQueryError(translated, bound, err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (s *Session) updateEntry(ctx context.Context, tx *sql.Tx, entry *changetracker.Entry) (int, error) {
	d, err := metadata.Describe(entry.EntityType)
	if err != nil {
		return 0, err
	}

	stmt, cols := querybuilder.Update(d)
	params := map[string]interface{}{}
	for i, col := range cols {
		v, err := metadata.ToDB(metadata.FieldValue(entry.Entity, col))
		if err != nil {
			return 0, err
		}
		params[fmt.Sprintf("p%d", i)] = v
	}
	pkValue, err := metadata.ToDB(metadata.FieldValue(entry.Entity, d.PrimaryKey))
	if err != nil {
		return 0, err
	}
	params["pId"] = pkValue

	translated, bound, err := querybuilder.Translate(stmt, params)
	if err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, translated, bound...)
	if err != nil {
		return 0, wrapQueryError(translated, bound, err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (s *Session) deleteEntry(ctx context.Context, tx *sql.Tx, entry *changetracker.Entry) (int, error) {
	d, err := metadata.Describe(entry.EntityType)
	if err != nil {
		return 0, err
	}

	stmt := querybuilder.DeleteByID(d)
	pkValue, err := metadata.ToDB(metadata.FieldValue(entry.Entity, d.PrimaryKey))
	if err != nil {
		return 0, err
	}

	translated, bound, err := querybuilder.Translate(stmt, querybuilder.PositionalParams([]interface{}{pkValue}))
	if err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, translated, bound...)
	if err != nil {
		return 0, wrapQueryError(translated, bound, err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// ExecuteSQL runs a caller-supplied statement with @pN placeholders.
// params keys are the bare placeholder names appearing in raw (e.g. "p0"),
// without the leading "@".
func (s *Session) ExecuteSQL(ctx context.Context, raw string, params map[string]interface{}) (int64, error) {
	translated, args, err := querybuilder.Translate(raw, params)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, translated, args...)
	if err != nil {
		return 0, wrapQueryError(translated, args, err)
	}
	return result.RowsAffected()
}

// TableExists reports whether name exists in the public schema, querying
// information_schema.
func (s *Session) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1
	);`, name).Scan(&exists)
	return exists, err
}

// Close releases the underlying connection pool.
func (s *Session) Close() error {
	return s.db.Close()
}
