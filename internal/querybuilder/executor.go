package querybuilder

import (
	"context"
	"database/sql"
)

// Executor is the subset of *sql.DB / *sql.Tx used to run statements; both
// types satisfy it. Session and EntitySet currently take *sql.Tx and
// *sql.DB directly rather than this interface.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
