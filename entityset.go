package pgorm

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/onyx-go/pgorm/eagerload"
	"github.com/onyx-go/pgorm/internal/changetracker"
	"github.com/onyx-go/pgorm/internal/metadata"
	"github.com/onyx-go/pgorm/internal/querybuilder"
)

// EntitySet[T] is a typed collection view over one mapped entity: staging
// methods delegate to a ChangeTracker (pure, no I/O); read methods execute
// a query immediately. Generics stand in for a runtime-typed collection.
type EntitySet[T any] struct {
	db         *sql.DB
	tracker    *changetracker.Tracker
	descriptor *metadata.EntityDescriptor
	entityType reflect.Type
}

func newEntitySet[T any](db *sql.DB, tracker *changetracker.Tracker) (*EntitySet[T], error) {
	var zero T
	entityType := reflect.TypeOf(zero)
	d, err := metadata.Describe(entityType)
	if err != nil {
		return nil, err
	}
	return &EntitySet[T]{db: db, tracker: tracker, descriptor: d, entityType: entityType}, nil
}

// Add stages entity as Added. Pure ChangeTracker call, no I/O.
func (s *EntitySet[T]) Add(entity *T) {
	s.tracker.TrackAdd(reflect.ValueOf(entity))
}

// AddRange stages every entity as Added.
func (s *EntitySet[T]) AddRange(entities []*T) {
	for _, e := range entities {
		s.Add(e)
	}
}

// Update stages entity as Modified (unless it is Added or Deleted — an
// Added entity is never promoted to Modified).
func (s *EntitySet[T]) Update(entity *T) {
	s.tracker.TrackModify(reflect.ValueOf(entity))
}

// Remove stages entity as Deleted (or collapses it out of the tracker if
// it was Added).
func (s *EntitySet[T]) Remove(entity *T) {
	s.tracker.TrackDelete(reflect.ValueOf(entity))
}

// RemoveRange stages every entity as Deleted.
func (s *EntitySet[T]) RemoveRange(entities []*T) {
	for _, e := range entities {
		s.Remove(e)
	}
}

// ToList executes a SELECT ALL immediately.
func (s *EntitySet[T]) ToList(ctx context.Context) ([]*T, error) {
	sql := querybuilder.SelectAll(s.descriptor)
	return s.queryList(ctx, sql, nil)
}

// Find executes a SELECT BY ID, returning (nil, false, nil) when no row
// matches.
func (s *EntitySet[T]) Find(ctx context.Context, id interface{}) (*T, bool, error) {
	sql := querybuilder.SelectByID(s.descriptor)
	translated, args, err := querybuilder.Translate(sql, querybuilder.PositionalParams([]interface{}{id}))
	if err != nil {
		return nil, false, err
	}
	rows, err := s.db.QueryContext(ctx, translated, args...)
	if err != nil {
		return nil, false, &QueryExecutionError{SQL: translated, Args: args, Err: err}
	}
	value, found, err := querybuilder.ScanRow(rows, s.descriptor, s.entityType)
	if err != nil || !found {
		return nil, found, err
	}
	return value.Interface().(*T), true, nil
}

// Where executes a SELECT WHERE. fragment uses the caller's own @pN
// placeholders; params supplies their bound values.
func (s *EntitySet[T]) Where(ctx context.Context, fragment string, params map[string]interface{}, orderBy string, ascending bool) ([]*T, error) {
	sql := querybuilder.SelectWhere(s.descriptor, querybuilder.SelectWhereOptions{Fragment: fragment, OrderBy: orderBy, Ascending: ascending})
	return s.queryList(ctx, sql, params)
}

// FirstOrDefault is Where(…).first_or_none.
func (s *EntitySet[T]) FirstOrDefault(ctx context.Context, fragment string, params map[string]interface{}) (*T, bool, error) {
	results, err := s.Where(ctx, fragment, params, "", true)
	if err != nil || len(results) == 0 {
		return nil, false, err
	}
	return results[0], true, nil
}

// Count executes a COUNT query.
func (s *EntitySet[T]) Count(ctx context.Context, fragment string, params map[string]interface{}) (int, error) {
	sql := querybuilder.Count(s.descriptor, fragment)
	translated, args, err := querybuilder.Translate(sql, params)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, translated, args...).Scan(&n); err != nil {
		return 0, &QueryExecutionError{SQL: translated, Args: args, Err: err}
	}
	return n, nil
}

// Any is count>0.
func (s *EntitySet[T]) Any(ctx context.Context, fragment string, params map[string]interface{}) (bool, error) {
	n, err := s.Count(ctx, fragment, params)
	return n > 0, err
}

// Include returns an IncludeBuilder that accumulates navigation members to
// eager-load.
func (s *EntitySet[T]) Include(fieldName string) *IncludeBuilder[T] {
	return &IncludeBuilder[T]{set: s, navigations: []eagerload.Navigation{{FieldName: fieldName}}}
}

func (s *EntitySet[T]) queryList(ctx context.Context, sql string, params map[string]interface{}) ([]*T, error) {
	translated, args, err := querybuilder.Translate(sql, params)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, translated, args...)
	if err != nil {
		return nil, &QueryExecutionError{SQL: translated, Args: args, Err: err}
	}
	values, err := querybuilder.ScanRows(rows, s.descriptor, s.entityType)
	if err != nil {
		return nil, err
	}
	results := make([]*T, len(values))
	for i, v := range values {
		results[i] = v.Interface().(*T)
	}
	return results, nil
}

// IncludeBuilder accumulates navigations via chained
// ".include(nav1).include(nav2)" calls.
type IncludeBuilder[T any] struct {
	set         *EntitySet[T]
	navigations []eagerload.Navigation
}

// Include accumulates another navigation member.
func (b *IncludeBuilder[T]) Include(fieldName string) *IncludeBuilder[T] {
	b.navigations = append(b.navigations, eagerload.Navigation{FieldName: fieldName})
	return b
}

// Find materializes the root as in EntitySet.Find, then loads every
// accumulated navigation for it.
func (b *IncludeBuilder[T]) Find(ctx context.Context, id interface{}) (*T, bool, error) {
	entity, found, err := b.set.Find(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}
	if err := b.loadAll(ctx, []*T{entity}); err != nil {
		return nil, false, err
	}
	return entity, true, nil
}

// ToList materializes the root set as in EntitySet.ToList, then loads
// every accumulated navigation for each root.
func (b *IncludeBuilder[T]) ToList(ctx context.Context) ([]*T, error) {
	entities, err := b.set.ToList(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.loadAll(ctx, entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (b *IncludeBuilder[T]) loadAll(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	roots := make([]reflect.Value, len(entities))
	for i, e := range entities {
		roots[i] = reflect.ValueOf(e)
	}
	loader := eagerload.New(b.set.db)
	for _, nav := range b.navigations {
		if err := loader.Load(ctx, b.set.entityType, roots, nav); err != nil {
			return err
		}
	}
	return nil
}
