package pgorm

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/onyx-go/pgorm/internal/metadata"
	"github.com/onyx-go/pgorm/internal/snapshot"
)

// MetadataError reports a problem with an entity's declared metadata: a
// missing primary key, an unsupported field shape, or a malformed struct
// tag. It is a type alias for metadata.Error so that metadata.Describe
// (called directly by EntitySet, Session, and the eager-loading package)
// produces values callers can errors.As into using either name.
type MetadataError = metadata.Error

// QueryExecutionError wraps whatever the driver reported while executing a
// statement pgorm built. The original error is always reachable with
// errors.Unwrap/errors.As, so callers can inspect *pq.Error directly. For
// failures of SaveChanges' INSERT/UPDATE/DELETE statements and of
// ExecuteSQL, Unique is set from IsUniqueViolation(Err) so the common
// unique_violation case doesn't require importing lib/pq to check; other
// construction sites leave it false.
type QueryExecutionError struct {
	SQL    string
	Args   []interface{}
	Err    error
	Unique bool
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("pgorm: query failed: %v (sql=%q)", e.Err, e.SQL)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// IsUniqueViolation reports whether err (or anything it wraps) is a
// PostgreSQL unique_violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// MigrationConflictError reports an invalid migration lifecycle request:
// rolling back to a version that doesn't exist, or that isn't below the
// current version.
type MigrationConflictError struct {
	CurrentVersion int
	TargetVersion  int
	Message        string
}

func (e *MigrationConflictError) Error() string {
	return fmt.Sprintf("pgorm: migration conflict: %s (current=%d, target=%d)",
		e.Message, e.CurrentVersion, e.TargetVersion)
}

// SerializationError reports a failure to encode or decode a Snapshot. It
// is a type alias for snapshot.Error so that snapshot.Marshal/Unmarshal
// (called directly by the migration engine) produce values callers can
// errors.As into using either name.
type SerializationError = snapshot.Error
