// Package snapshot implements Snapshot: a serializable description of the
// database schema used as the source of truth inside __MigrationHistory
// rows.
//
// Grounded on xataio-pgroll's pkg/schema/schema.go, which models a Postgres
// schema as a plain Go struct tree and persists it via encoding/json;
// pgorm follows the same codec choice (see DESIGN.md for why no ecosystem
// library improves on stdlib encoding/json here) but with a column shape
// driven by EntityDescriptor rather than introspected DDL.
package snapshot

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/onyx-go/pgorm/internal/metadata"
)

// ColumnSnapshot is the serialized shape of one column.
type ColumnSnapshot struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Nullable      bool    `json:"nullable"`
	PrimaryKey    bool    `json:"primaryKey"`
	AutoIncrement bool    `json:"autoIncrement"`
	Unique        bool    `json:"unique"`
	DefaultValue  *string `json:"defaultValue"`
}

// TableSnapshot is the serialized shape of one table.
type TableSnapshot struct {
	TableName string           `json:"tableName"`
	Columns   []ColumnSnapshot `json:"columns"`
}

// Snapshot is the persisted schema description.
type Snapshot struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	Tables    []TableSnapshot `json:"tables"`
}

// FromEntities builds a Snapshot by invoking Metadata on each entity type.
// Table order mirrors the order types are supplied in, which is in turn
// the caller's entity declaration order (this is the source of the
// migration-ordering limitation: no topological sort is attempted).
func FromEntities(version int, createdAt time.Time, types []reflect.Type) (*Snapshot, error) {
	snap := &Snapshot{Version: version, CreatedAt: createdAt}
	for _, t := range types {
		d, err := metadata.Describe(t)
		if err != nil {
			return nil, err
		}
		snap.Tables = append(snap.Tables, tableSnapshotOf(d))
	}
	return snap, nil
}

func tableSnapshotOf(d *metadata.EntityDescriptor) TableSnapshot {
	ts := TableSnapshot{TableName: d.TableName}
	for _, col := range d.Columns {
		ts.Columns = append(ts.Columns, columnSnapshotOf(col))
	}
	return ts
}

func columnSnapshotOf(col *metadata.ColumnDescriptor) ColumnSnapshot {
	cs := ColumnSnapshot{
		Name:          col.Name,
		Type:          col.SQLType,
		Nullable:      col.Nullable,
		PrimaryKey:    col.IsPrimaryKey,
		AutoIncrement: col.IsAutoIncrement,
		Unique:        col.IsUnique,
	}
	if col.HasDefault {
		literal := metadata.FormatLiteral(col.DefaultValue)
		cs.DefaultValue = &literal
	}
	return cs
}

// Marshal encodes snap as the stable JSON document stored in a
// MigrationRecord's snapshot_json column.
func Marshal(snap *Snapshot) (string, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return "", &Error{Context: "marshal snapshot", Err: err}
	}
	return string(b), nil
}

// Unmarshal decodes a snapshot_json column value back into a Snapshot.
func Unmarshal(data string) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, &Error{Context: "unmarshal snapshot", Err: err}
	}
	return &snap, nil
}

// Error reports a failure to encode or decode a Snapshot. pgorm.SerializationError
// is a type alias for this type, so callers can errors.As into either name.
type Error struct {
	Context string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pgorm: serialization error (%s): %v", e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FindTable looks up a table by name using a case-insensitive identity
// rule.
func (s *Snapshot) FindTable(name string) (*TableSnapshot, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].TableName, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// FindColumn looks up a column by name using a case-insensitive identity
// rule.
func (t *TableSnapshot) FindColumn(name string) (*ColumnSnapshot, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Equal implements the column-equality rule: type, nullable, unique, and
// default_value compare equal; primary key and auto-increment are
// intentionally excluded because PostgreSQL cannot alter either.
func (c ColumnSnapshot) Equal(other ColumnSnapshot) bool {
	if c.Type != other.Type {
		return false
	}
	if c.Nullable != other.Nullable {
		return false
	}
	if c.Unique != other.Unique {
		return false
	}
	return defaultEqual(c.DefaultValue, other.DefaultValue)
}

func defaultEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
