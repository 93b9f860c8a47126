package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimestamp = "2023-07-02T00:00:00Z"

func newTestBook(name, author string, year int, bookType string) Book {
	return Book{
		Name:          name,
		Author:        author,
		YearPublished: year,
		BookType:      bookType,
		Status:        StatusAvailable,
		CreatedAt:     testTimestamp,
		UpdatedAt:     testTimestamp,
	}
}

// testBookStorage runs the behaviors every BookStorage must share against
// a freshly opened and empty storage.
//
//nolint:funlen
func testBookStorage(t *testing.T, bs BookStorage) {
	t.Helper()
	ctx := context.Background()
	var first, second Book

	t.Run("Add Book", func(t *testing.T) {
		// ensures we can insert new book record with a fresh id.
		var err error
		first, err = bs.Add(ctx, newTestBook("Dune", "Frank Herbert", 1965, "Novel"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, first.ID, int64(1))
		assert.Equal(t, StatusAvailable, first.Status)

		second, err = bs.Add(ctx, newTestBook("Dune", "Frank Herbert", 1965, "Comic"))
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)
	})

	t.Run("Get Existent Book", func(t *testing.T) {
		book, err := bs.GetOne(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first, book)
	})

	t.Run("Get NonExistent Book", func(t *testing.T) {
		book, err := bs.GetOne(ctx, 424242)
		assert.ErrorIs(t, err, ErrBookNotFound)
		assert.Equal(t, Book{}, book)
	})

	t.Run("Add Duplicate Book", func(t *testing.T) {
		// only status and timestamps differ: the identity is the same.
		dup := newTestBook("Dune", "Frank Herbert", 1965, "Novel")
		dup.Status = "borrowed"
		_, err := bs.Add(ctx, dup)
		assert.True(t, IsDuplicateBook(err))
		assert.ErrorIs(t, err, ErrConstraintFailed)

		books, err := bs.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, books, 2)
	})

	t.Run("Update Existent Book", func(t *testing.T) {
		changed := second
		changed.Status = "borrowed"
		changed.UpdatedAt = "2023-07-03T00:00:00Z"
		book, err := bs.Update(ctx, changed)
		require.NoError(t, err)
		assert.Equal(t, changed, book)

		book, err = bs.GetOne(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "borrowed", book.Status)
		assert.Equal(t, second.CreatedAt, book.CreatedAt)
		second = book
	})

	t.Run("Update Into Duplicate Book", func(t *testing.T) {
		// ensures a failed update leaves the stored record untouched.
		changed := second
		changed.BookType = first.BookType
		_, err := bs.Update(ctx, changed)
		assert.True(t, IsDuplicateBook(err))

		book, err := bs.GetOne(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, second, book)
	})

	t.Run("Update Identity Frees Previous Tuple", func(t *testing.T) {
		changed := second
		changed.BookType = "Graphic Novel"
		_, err := bs.Update(ctx, changed)
		require.NoError(t, err)
		second = changed

		reused, err := bs.Add(ctx, newTestBook("Dune", "Frank Herbert", 1965, "Comic"))
		require.NoError(t, err)
		_, err = bs.Delete(ctx, reused.ID)
		require.NoError(t, err)
	})

	t.Run("Update NonExistent Book", func(t *testing.T) {
		ghost := newTestBook("Ghost", "Nobody", 1900, "Novel")
		ghost.ID = 424242
		_, err := bs.Update(ctx, ghost)
		assert.ErrorIs(t, err, ErrBookNotFound)

		_, err = bs.GetOne(ctx, ghost.ID)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})

	t.Run("Delete NonExistent Book", func(t *testing.T) {
		book, err := bs.Delete(ctx, 424242)
		assert.ErrorIs(t, err, ErrBookNotFound)
		assert.Equal(t, Book{}, book)
	})

	t.Run("Delete Existent Book", func(t *testing.T) {
		stored, err := bs.GetOne(ctx, first.ID)
		require.NoError(t, err)
		deleted, err := bs.Delete(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, stored, deleted)

		book, err := bs.GetOne(ctx, first.ID)
		assert.ErrorIs(t, err, ErrBookNotFound)
		assert.Equal(t, Book{}, book)

		_, err = bs.Delete(ctx, first.ID)
		assert.ErrorIs(t, err, ErrBookNotFound)

		// the identity of a deleted book can be used again.
		again, err := bs.Add(ctx, newTestBook("Dune", "Frank Herbert", 1965, "Novel"))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, again.ID)
		first = again
	})

	t.Run("Store Payloads Verbatim", func(t *testing.T) {
		payloads := []string{
			"<script>alert('XSS')</script>",
			"Robert'); DROP TABLE books;--",
			`"; DEL books; "`,
		}
		for i, payload := range payloads {
			book, err := bs.Add(ctx, newTestBook("Payload", payload, 2000+i, "Test"))
			require.NoError(t, err)
			found, err := bs.GetOne(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, payload, found.Author)
		}
	})

	t.Run("Get All Books", func(t *testing.T) {
		books, err := bs.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, books, 5)
		for i := 1; i < len(books); i++ {
			assert.Less(t, books[i-1].ID, books[i].ID)
		}
	})

	t.Run("Delete All Books", func(t *testing.T) {
		require.NoError(t, bs.DeleteAll(ctx))
		books, err := bs.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, books)

		book, err := bs.Add(ctx, newTestBook("Dune", "Frank Herbert", 1965, "Novel"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, book.ID, int64(1))
	})
}
