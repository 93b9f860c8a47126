package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSQLiteStore(t *testing.T) *sqlBookStorage {
	t.Helper()
	config := &SQLiteConfig{
		FilePath:    filepath.Join(t.TempDir(), "books.sqlite"),
		BusyTimeout: time.Second,
	}
	bs, err := NewSQLiteBookStorage(context.Background(), zap.NewNop(), config)
	require.NoError(t, err, "failed in creating a test sqlite store")
	t.Cleanup(func() { _ = bs.Close() })
	return bs.(*sqlBookStorage)
}

func TestSQLiteStore(t *testing.T) {
	testBookStorage(t, newTestSQLiteStore(t))
}

// TestSQLiteStore_InjectionKeepsTable ensures a sql payload stays data.
func TestSQLiteStore_InjectionKeepsTable(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	payload := "'; DROP TABLE books; --"
	book, err := s.Add(ctx, newTestBook(payload, payload, 2000, payload))
	require.NoError(t, err)

	var tables int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'books'`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 1, tables)

	found, err := s.GetOne(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, payload, found.Name)
	assert.Equal(t, payload, found.BookType)
}

// TestSQLiteStore_SchemaChecks ensures the table rejects invalid rows
// even when the validator is bypassed.
func TestSQLiteStore_SchemaChecks(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		book Book
	}{
		{"empty name", newTestBook("", "A", 2000, "T")},
		{"long author", newTestBook("N", strings.Repeat("a", 100), 2000, "T")},
		{"year out of range", newTestBook("N", "A", 20000000, "T")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Add(ctx, tc.book)
			assert.ErrorIs(t, err, ErrConstraintFailed)
		})
	}

	books, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestSQLRebind(t *testing.T) {
	s := &sqlBookStorage{dialect: postgresDialect}
	assert.Equal(t, "SELECT * FROM books WHERE id = $1 AND name = $2", s.rebind("SELECT * FROM books WHERE id = ? AND name = ?"))
	s.dialect = sqliteDialect
	assert.Equal(t, "DELETE FROM books WHERE id = ?", s.rebind("DELETE FROM books WHERE id = ?"))
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN(&SQLiteConfig{FilePath: "/tmp/b.sqlite", BusyTimeout: 2 * time.Second})
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/b.sqlite?"))
	assert.Contains(t, dsn, "busy_timeout%282000%29")
}
