package main

import (
	"context"
	"fmt"
)

// StatusAvailable is the status given to every newly created book.
const StatusAvailable = "available"

// Names of the book fields which can be changed after creation.
const (
	FieldName          = "name"
	FieldAuthor        = "author"
	FieldYearPublished = "year_published"
	FieldBookType      = "book_type"
	FieldStatus        = "status"
)

// Book represents a book entity.
type Book struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Author        string `json:"author"`
	YearPublished int    `json:"year_published"`
	BookType      string `json:"book_type"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// BookInput holds the caller supplied values of a book to create.
// YearPublished stays untyped until validation so that a decoded
// payload carrying a string or a boolean year can be rejected.
type BookInput struct {
	Name          string `json:"name"`
	Author        string `json:"author"`
	YearPublished any    `json:"year_published"`
	BookType      string `json:"book_type"`
}

// BookChanges maps updatable field names to their new values.
type BookChanges map[string]any

// Key returns the identity of a book under the uniqueness rule:
// no two stored books share name, author, year and type. Each
// text part is length prefixed so distinct tuples never collide.
func (b Book) Key() string {
	return fmt.Sprintf("%d:%s|%d:%s|%d|%d:%s",
		len(b.Name), b.Name,
		len(b.Author), b.Author,
		b.YearPublished,
		len(b.BookType), b.BookType,
	)
}

// SameIdentity reports whether both books collide on the uniqueness tuple.
func (b Book) SameIdentity(o Book) bool {
	return b.Name == o.Name && b.Author == o.Author && b.YearPublished == o.YearPublished && b.BookType == o.BookType
}

// BookStorage defines possible operations on book entity. Add and Update
// must reject a book whose identity tuple is already held by another record
// within the same atomic write.
type BookStorage interface {
	Add(ctx context.Context, book Book) (Book, error)
	GetOne(ctx context.Context, id int64) (Book, error)
	Delete(ctx context.Context, id int64) (Book, error)
	Update(ctx context.Context, book Book) (Book, error)
	GetAll(ctx context.Context) ([]Book, error)
	DeleteAll(ctx context.Context) error
	Close() error
}

// Journal operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// BookEvent records one committed change of a book.
type BookEvent struct {
	Op     string `json:"op"`
	BookID int64  `json:"bookId"`
	Book   Book   `json:"book"`
	At     string `json:"at"`
}
