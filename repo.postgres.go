package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

func postgresSchema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS books (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(%[1]d) NOT NULL CHECK (char_length(name) >= 1),
			author VARCHAR(%[1]d) NOT NULL CHECK (char_length(author) >= 1),
			year_published INTEGER NOT NULL CHECK (year_published BETWEEN %[2]d AND %[3]d),
			book_type VARCHAR(%[1]d) NOT NULL CHECK (char_length(book_type) >= 1),
			status VARCHAR(%[1]d) NOT NULL DEFAULT '%[4]s',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			CONSTRAINT books_identity_key UNIQUE (name, author, year_published, book_type)
		)`, MaxTextLength, MinYearPublished, MaxYearPublished, StatusAvailable),
	}
}

func pqErrorCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

var postgresDialect = sqlDialect{
	name:        DriverPostgres,
	placeholder: dollarSign,
	schema:      postgresSchema(),
	isUnique: func(err error) bool {
		return pqErrorCode(err) == pgUniqueViolation
	},
	isCheck: func(err error) bool {
		return pqErrorCode(err) == pgCheckViolation
	},
}

// NewPostgresBookStorage connects to postgres, creates the books table if
// needed and provides an instance of postgres-based book storage.
func NewPostgresBookStorage(ctx context.Context, logger *zap.Logger, config *PostgresConfig) (BookStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("test connection failed: %v", err)
	}

	s, err := newSQLBookStorage(ctx, logger, db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
