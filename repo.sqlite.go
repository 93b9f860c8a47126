package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func sqliteSchema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND %[1]d),
			author TEXT NOT NULL CHECK (length(author) BETWEEN 1 AND %[1]d),
			year_published INTEGER NOT NULL CHECK (year_published BETWEEN %[2]d AND %[3]d),
			book_type TEXT NOT NULL CHECK (length(book_type) BETWEEN 1 AND %[1]d),
			status TEXT NOT NULL DEFAULT '%[4]s' CHECK (length(status) BETWEEN 1 AND %[1]d),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (name, author, year_published, book_type)
		)`, MaxTextLength, MinYearPublished, MaxYearPublished, StatusAvailable),
	}
}

var sqliteDialect = sqlDialect{
	name:        DriverSQLite,
	placeholder: questionMark,
	schema:      sqliteSchema(),
	isUnique: func(err error) bool {
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
	isCheck: func(err error) bool {
		return strings.Contains(err.Error(), "CHECK constraint failed")
	},
}

// sqliteDSN enables the busy timeout so that concurrent writers wait for the lock.
func sqliteDSN(config *SQLiteConfig) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + config.FilePath + "?" + q.Encode()
}

// NewSQLiteBookStorage opens the sqlite file, creates the books table if
// needed and provides an instance of sqlite-based book storage.
func NewSQLiteBookStorage(ctx context.Context, logger *zap.Logger, config *SQLiteConfig) (BookStorage, error) {
	if err := EnsureParentFolder(config.FilePath); err != nil {
		return nil, fmt.Errorf("failed to create the database folder: %v", err)
	}
	db, err := sql.Open("sqlite", sqliteDSN(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	// A single connection serializes writers on the same file.
	db.SetMaxOpenConns(1)

	s, err := newSQLBookStorage(ctx, logger, db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
