package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrJournalDisabled is returned by History when no journal is configured.
var ErrJournalDisabled = errors.New("book history is not enabled")

type BookServiceProvider interface {
	Create(ctx context.Context, in BookInput) (Book, error)
	GetOne(ctx context.Context, id int64) (Book, error)
	UpdateField(ctx context.Context, id int64, field string, value any) (Book, error)
	Update(ctx context.Context, id int64, changes BookChanges) (Book, error)
	Delete(ctx context.Context, id int64) (Book, error)
	GetAll(ctx context.Context) ([]Book, error)
	History(ctx context.Context, id int64) ([]BookEvent, error)
}

// BookService validates and commits book writes. The queue and the
// journal are optional: without them no history is recorded.
type BookService struct {
	logger  *zap.Logger
	clock   Clocker
	storage BookStorage
	queue   Queuer
	journal Journal
	metrics *Metrics
}

func NewBookService(logger *zap.Logger, clock Clocker, storage BookStorage, queue Queuer, journal Journal, metrics *Metrics) *BookService {
	return &BookService{
		logger:  logger,
		clock:   clock,
		storage: storage,
		queue:   queue,
		journal: journal,
		metrics: metrics,
	}
}

// Create validates the input and stores the resulting book with status
// available. The returned book carries its assigned id.
func (bs *BookService) Create(ctx context.Context, in BookInput) (Book, error) {
	book, err := ValidateBook(in)
	if err != nil {
		bs.rejected(OpCreate, err)
		return Book{}, err
	}
	now := Timestamp(bs.clock.Now())
	book.CreatedAt, book.UpdatedAt = now, now

	book, err = bs.storage.Add(ctx, book)
	if err != nil {
		bs.rejected(OpCreate, err)
		return Book{}, err
	}
	bs.committed(ctx, OpCreate, book)
	return book, nil
}

func (bs *BookService) GetOne(ctx context.Context, id int64) (Book, error) {
	return bs.storage.GetOne(ctx, id)
}

// UpdateField changes a single field of an existing book.
func (bs *BookService) UpdateField(ctx context.Context, id int64, field string, value any) (Book, error) {
	return bs.Update(ctx, id, BookChanges{field: value})
}

// Update applies all changes to a copy of the stored book and commits it
// only when the whole record still holds every rule. On failure the
// stored record is left untouched.
func (bs *BookService) Update(ctx context.Context, id int64, changes BookChanges) (Book, error) {
	current, err := bs.storage.GetOne(ctx, id)
	if err != nil {
		return Book{}, err
	}

	updated := current
	if err = updated.ApplyChanges(changes); err != nil {
		bs.rejected(OpUpdate, err)
		return Book{}, err
	}
	if err = updated.Validate(); err != nil {
		bs.rejected(OpUpdate, err)
		return Book{}, err
	}
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = Timestamp(bs.clock.Now())

	book, err := bs.storage.Update(ctx, updated)
	if err != nil {
		bs.rejected(OpUpdate, err)
		return Book{}, err
	}
	bs.committed(ctx, OpUpdate, book)
	return book, nil
}

// Delete removes a book and returns the record as it was when removed.
func (bs *BookService) Delete(ctx context.Context, id int64) (Book, error) {
	book, err := bs.storage.Delete(ctx, id)
	if err != nil {
		return Book{}, err
	}
	bs.committed(ctx, OpDelete, book)
	return book, nil
}

func (bs *BookService) GetAll(ctx context.Context) ([]Book, error) {
	return bs.storage.GetAll(ctx)
}

// History returns the journaled events of a book, oldest first.
func (bs *BookService) History(ctx context.Context, id int64) ([]BookEvent, error) {
	if bs.journal == nil {
		return nil, ErrJournalDisabled
	}
	return bs.journal.List(ctx, id)
}

func (bs *BookService) rejected(op string, err error) {
	if reason, ok := ViolationOf(err); ok {
		bs.metrics.BookRejected(op, reason)
	}
}

// committed counts the operation and queues its event for the journal.
// A queue failure never undoes a committed write.
func (bs *BookService) committed(ctx context.Context, op string, book Book) {
	bs.metrics.BookCommitted(op)
	if bs.queue == nil {
		return
	}
	qid := queueForOp(op)
	event := BookEvent{Op: op, BookID: book.ID, Book: book, At: Timestamp(bs.clock.Now())}
	if err := bs.queue.Push(ctx, qid, event); err != nil {
		bs.metrics.QueuePushFailed()
		bs.logger.Error("service: failed to push event to queue", zap.String("qid", qid), zap.Int64("book.id", book.ID), zap.Error(err))
	}
}
