package main

import (
	"context"
	"sync"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBookStorage struct {
	AddFunc       func(ctx context.Context, book Book) (Book, error)
	GetOneFunc    func(ctx context.Context, id int64) (Book, error)
	DeleteFunc    func(ctx context.Context, id int64) (Book, error)
	UpdateFunc    func(ctx context.Context, book Book) (Book, error)
	GetAllFunc    func(ctx context.Context) ([]Book, error)
	DeleteAllFunc func(ctx context.Context) error
	CloseFunc     func() error
}

// Add mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Add(ctx context.Context, book Book) (Book, error) {
	return m.AddFunc(ctx, book)
}

// GetOne mocks the behavior of retrieving a book by the repository.
func (m *MockBookStorage) GetOne(ctx context.Context, id int64) (Book, error) {
	return m.GetOneFunc(ctx, id)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookStorage) Delete(ctx context.Context, id int64) (Book, error) {
	return m.DeleteFunc(ctx, id)
}

// Update mocks the behavior of updating a book by the repository.
func (m *MockBookStorage) Update(ctx context.Context, book Book) (Book, error) {
	return m.UpdateFunc(ctx, book)
}

// GetAll mocks the behavior of retrieving all books by the repository.
func (m *MockBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	return m.GetAllFunc(ctx)
}

func (m *MockBookStorage) DeleteAll(ctx context.Context) error {
	return m.DeleteAllFunc(ctx)
}

func (m *MockBookStorage) Close() error {
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `2023-07-02T00:00:00Z` once rendered by Timestamp.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}

type pushedEvent struct {
	qid   string
	event BookEvent
}

// MockQueue records pushed events and serves Pop from its events channel.
type MockQueue struct {
	mu      sync.Mutex
	pushed  []pushedEvent
	PushErr error
	events  chan pushedEvent
}

func NewMockQueue() *MockQueue {
	return &MockQueue{events: make(chan pushedEvent, 16)}
}

func (mq *MockQueue) Push(_ context.Context, qid string, event BookEvent) error {
	if mq.PushErr != nil {
		return mq.PushErr
	}
	mq.mu.Lock()
	mq.pushed = append(mq.pushed, pushedEvent{qid, event})
	mq.mu.Unlock()
	return nil
}

func (mq *MockQueue) Pop(ctx context.Context, _ ...string) (string, BookEvent, error) {
	select {
	case <-ctx.Done():
		return "", BookEvent{}, ctx.Err()
	case pe := <-mq.events:
		return pe.qid, pe.event, nil
	case <-time.After(10 * time.Millisecond):
		return "", BookEvent{}, ErrQueueEmpty
	}
}

// Pushed returns a copy of the recorded events.
func (mq *MockQueue) Pushed() []pushedEvent {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	return append([]pushedEvent(nil), mq.pushed...)
}

// MockJournal keeps appended events in memory.
type MockJournal struct {
	mu        sync.Mutex
	events    []BookEvent
	AppendErr error
	appended  chan BookEvent
}

func NewMockJournal() *MockJournal {
	return &MockJournal{appended: make(chan BookEvent, 16)}
}

func (mj *MockJournal) Append(_ context.Context, event BookEvent) error {
	if mj.AppendErr != nil {
		return mj.AppendErr
	}
	mj.mu.Lock()
	mj.events = append(mj.events, event)
	mj.mu.Unlock()
	mj.appended <- event
	return nil
}

func (mj *MockJournal) List(_ context.Context, bookID int64) ([]BookEvent, error) {
	mj.mu.Lock()
	defer mj.mu.Unlock()
	events := []BookEvent{}
	for _, e := range mj.events {
		if e.BookID == bookID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (mj *MockJournal) Close() error {
	return nil
}

// newMemoryBookStorage returns a MockBookStorage backed by a map which
// honors the uniqueness rule, for service and handler tests.
func newMemoryBookStorage() *MockBookStorage {
	var mu sync.Mutex
	books := map[int64]Book{}
	var seq int64
	taken := func(b Book) bool {
		for id, o := range books {
			if id != b.ID && o.SameIdentity(b) {
				return true
			}
		}
		return false
	}
	return &MockBookStorage{
		AddFunc: func(_ context.Context, book Book) (Book, error) {
			mu.Lock()
			defer mu.Unlock()
			book.ID = 0
			if taken(book) {
				return Book{}, duplicateBookError()
			}
			seq++
			book.ID = seq
			books[book.ID] = book
			return book, nil
		},
		GetOneFunc: func(_ context.Context, id int64) (Book, error) {
			mu.Lock()
			defer mu.Unlock()
			book, ok := books[id]
			if !ok {
				return Book{}, ErrBookNotFound
			}
			return book, nil
		},
		DeleteFunc: func(_ context.Context, id int64) (Book, error) {
			mu.Lock()
			defer mu.Unlock()
			book, ok := books[id]
			if !ok {
				return Book{}, ErrBookNotFound
			}
			delete(books, id)
			return book, nil
		},
		UpdateFunc: func(_ context.Context, book Book) (Book, error) {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := books[book.ID]; !ok {
				return Book{}, ErrBookNotFound
			}
			if taken(book) {
				return Book{}, duplicateBookError()
			}
			books[book.ID] = book
			return book, nil
		},
		GetAllFunc: func(_ context.Context) ([]Book, error) {
			mu.Lock()
			defer mu.Unlock()
			all := []Book{}
			for i := int64(1); i <= seq; i++ {
				if b, ok := books[i]; ok {
					all = append(all, b)
				}
			}
			return all, nil
		},
		DeleteAllFunc: func(_ context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			books = map[int64]Book{}
			return nil
		},
	}
}
