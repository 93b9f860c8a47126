package main

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// Journal keeps the ordered history of changes applied to each book.
type Journal interface {
	Append(ctx context.Context, event BookEvent) error
	List(ctx context.Context, bookID int64) ([]BookEvent, error)
	Close() error
}

var _ Journal = (*boltJournal)(nil)

// boltJournal stores events under the key bookID|sequence so that
// a cursor seek on the book id walks its history in commit order.
type boltJournal struct {
	logger *zap.Logger
	client *bolt.DB
	bucket []byte
}

// NewBoltJournal opens the journal file and provides a ready to use journal.
func NewBoltJournal(logger *zap.Logger, config *JournalConfig, timeout time.Duration) (Journal, error) {
	client, err := OpenBoltDB(config.FilePath, timeout, config.BucketName)
	if err != nil {
		return nil, err
	}
	return &boltJournal{logger: logger, client: client, bucket: []byte(config.BucketName)}, nil
}

// Append records an event at the end of its book history.
func (bj *boltJournal) Append(_ context.Context, event BookEvent) error {
	return bj.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bj.bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		eventBytes, err := json.Marshal(event)
		if err != nil {
			return err
		}
		key := append(itob(event.BookID), itob(int64(seq))...)
		return b.Put(key, eventBytes)
	})
}

// List returns the history of a book, oldest first.
func (bj *boltJournal) List(_ context.Context, bookID int64) ([]BookEvent, error) {
	events := []BookEvent{}
	err := bj.client.View(func(tx *bolt.Tx) error {
		prefix := itob(bookID)
		c := tx.Bucket(bj.bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var event BookEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			events = append(events, event)
		}
		return nil
	})
	return events, err
}

// Close shuts down the journal file.
func (bj *boltJournal) Close() error {
	return bj.client.Close()
}
