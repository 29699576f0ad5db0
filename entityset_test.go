package pgorm

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/onyx-go/pgorm/internal/changetracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type product struct {
	ID    int64  `db:"id" pgorm:"pk,autoincrement"`
	Name  string `db:"name"`
	Price int64  `db:"price"`
}

func newMockEntitySet(t *testing.T) (*EntitySet[product], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	set, err := newEntitySet[product](db, changetracker.New())
	require.NoError(t, err)
	return set, mock
}

func TestEntitySet_Add_IsPureStaging(t *testing.T) {
	set, mock := newMockEntitySet(t)
	set.Add(&product{Name: "widget"})
	assert.NoError(t, mock.ExpectationsWereMet(), "Add must not touch the database")
}

func TestEntitySet_ToList(t *testing.T) {
	set, mock := newMockEntitySet(t)

	rows := sqlmock.NewRows([]string{"id", "name", "price"}).
		AddRow(int64(1), "widget", int64(100)).
		AddRow(int64(2), "gadget", int64(250))
	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products";`).WillReturnRows(rows)

	results, err := set.ToList(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "widget", results[0].Name)
	assert.Equal(t, int64(250), results[1].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitySet_Find_NotFound(t *testing.T) {
	set, mock := newMockEntitySet(t)

	rows := sqlmock.NewRows([]string{"id", "name", "price"})
	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products" WHERE "id" = \$1;`).
		WithArgs(int64(99)).
		WillReturnRows(rows)

	_, found, err := set.Find(context.Background(), int64(99))
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitySet_Count(t *testing.T) {
	set, mock := newMockEntitySet(t)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(3)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "products";`).WillReturnRows(rows)

	n, err := set.Count(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEntitySet_Any(t *testing.T) {
	set, mock := newMockEntitySet(t)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(0)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "products";`).WillReturnRows(rows)

	ok, err := set.Any(context.Background(), "", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

type orderLine struct {
	ID      int64  `db:"id" pgorm:"pk,autoincrement"`
	OrderID int64  `db:"order_id"`
	SKU     string `db:"sku"`
}

func (orderLine) TableName() string { return "order_lines" }

type order struct {
	ID    int64  `db:"id" pgorm:"pk,autoincrement"`
	Name  string `db:"name"`
	Lines []orderLine
}

func TestIncludeBuilder_Find_LoadsCollectionNavigation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	set, err := newEntitySet[order](db, changetracker.New())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "id", "name" FROM "orders" WHERE "id" = \$1;`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "big order"))
	mock.ExpectQuery(`SELECT .* FROM "order_lines" WHERE "order_id" = \$1;`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "sku"}).
			AddRow(int64(1), int64(7), "SKU-1").
			AddRow(int64(2), int64(7), "SKU-2").
			AddRow(int64(3), int64(7), "SKU-3"))

	found, ok, err := set.Include("Lines").Find(context.Background(), int64(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, found.Lines, 3)
	for _, l := range found.Lines {
		assert.Equal(t, int64(7), l.OrderID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncludeBuilder_ToList_LoadsCollectionNavigationForEachRoot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	set, err := newEntitySet[order](db, changetracker.New())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "id", "name" FROM "orders";`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "big order"))
	mock.ExpectQuery(`SELECT .* FROM "order_lines" WHERE "order_id" = \$1;`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "sku"}).AddRow(int64(1), int64(7), "SKU-1"))

	results, err := set.Include("Lines").ToList(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Lines, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
