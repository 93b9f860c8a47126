package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var _ BookStorage = (*sqlBookStorage)(nil)

// sqlDialect captures what differs between the relational backends.
type sqlDialect struct {
	name string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	schema      []string
	isUnique    func(err error) bool
	isCheck     func(err error) bool
}

// sqlBookStorage implements BookStorage on top of database/sql.
type sqlBookStorage struct {
	logger  *zap.Logger
	db      *sql.DB
	dialect sqlDialect
}

const bookColumns = "id, name, author, year_published, book_type, status, created_at, updated_at"

func newSQLBookStorage(ctx context.Context, logger *zap.Logger, db *sql.DB, dialect sqlDialect) (*sqlBookStorage, error) {
	s := &sqlBookStorage{logger: logger, db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// rebind rewrites `?` markers into the dialect placeholders.
func (s *sqlBookStorage) rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlBookStorage) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: failed to create schema: %w", s.dialect.name, err)
		}
	}
	return nil
}

// classify maps engine constraint failures onto the domain errors.
func (s *sqlBookStorage) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case s.dialect.isUnique(err):
		return duplicateBookError()
	case s.dialect.isCheck(err):
		return fmt.Errorf("%w: %v", ErrConstraintFailed, err)
	default:
		return err
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (Book, error) {
	var book Book
	err := row.Scan(&book.ID, &book.Name, &book.Author, &book.YearPublished, &book.BookType, &book.Status, &book.CreatedAt, &book.UpdatedAt)
	return book, err
}

// identityTaken reports whether another record than id holds the identity of book.
func (s *sqlBookStorage) identityTaken(ctx context.Context, tx *sql.Tx, book Book) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM books WHERE name = ? AND author = ? AND year_published = ? AND book_type = ? AND id <> ?`),
		book.Name, book.Author, book.YearPublished, book.BookType, book.ID,
	).Scan(&count)
	return count > 0, err
}

// Add inserts a new book record and returns it with its assigned id.
func (s *sqlBookStorage) Add(ctx context.Context, book Book) (Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Book{}, err
	}
	defer tx.Rollback()

	book.ID = 0
	taken, err := s.identityTaken(ctx, tx, book)
	if err != nil {
		return Book{}, err
	}
	if taken {
		return Book{}, duplicateBookError()
	}

	err = tx.QueryRowContext(ctx, s.rebind(
		`INSERT INTO books (name, author, year_published, book_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		book.Name, book.Author, book.YearPublished, book.BookType, book.Status, book.CreatedAt, book.UpdatedAt,
	).Scan(&book.ID)
	if err != nil {
		return Book{}, s.classify(err)
	}
	if err = tx.Commit(); err != nil {
		return Book{}, s.classify(err)
	}
	return book, nil
}

// GetOne retrieves a book record based on its ID.
func (s *sqlBookStorage) GetOne(ctx context.Context, id int64) (Book, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+bookColumns+` FROM books WHERE id = ?`), id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrBookNotFound
	}
	return book, err
}

// Update replaces an existing book record.
func (s *sqlBookStorage) Update(ctx context.Context, book Book) (Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Book{}, err
	}
	defer tx.Rollback()

	taken, err := s.identityTaken(ctx, tx, book)
	if err != nil {
		return Book{}, err
	}
	if taken {
		return Book{}, duplicateBookError()
	}

	result, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE books SET name = ?, author = ?, year_published = ?, book_type = ?, status = ?, updated_at = ? WHERE id = ?`),
		book.Name, book.Author, book.YearPublished, book.BookType, book.Status, book.UpdatedAt, book.ID,
	)
	if err != nil {
		return Book{}, s.classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return Book{}, err
	}
	if rows == 0 {
		return Book{}, ErrBookNotFound
	}
	if err = tx.Commit(); err != nil {
		return Book{}, s.classify(err)
	}
	return book, nil
}

// Delete removes a book record based on its ID and returns the removed row.
// Both sqlite and postgres hand back the row within the same statement.
func (s *sqlBookStorage) Delete(ctx context.Context, id int64) (Book, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`DELETE FROM books WHERE id = ? RETURNING `+bookColumns), id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrBookNotFound
	}
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// GetAll retrieves all stored books ordered by id.
func (s *sqlBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// DeleteAll removes every book record.
func (s *sqlBookStorage) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM books`)
	return err
}

// Close releases the database handle.
func (s *sqlBookStorage) Close() error {
	return s.db.Close()
}

func questionMark(int) string { return "?" }

func dollarSign(n int) string { return "$" + strconv.Itoa(n) }
