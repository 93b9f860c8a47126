package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

var _ BookStorage = (*boltBookStorage)(nil)

// boltBookStorage keeps books as json values keyed by their big endian id
// and a second bucket mapping each identity tuple to the owning id.
type boltBookStorage struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// OpenBoltDB opens the database file and creates the given buckets then provides a ready to use client.
func OpenBoltDB(filePath string, timeout time.Duration, buckets ...string) (*bolt.DB, error) {
	if err := EnsureParentFolder(filePath); err != nil {
		return nil, fmt.Errorf("failed to create the database folder: %v", err)
	}
	db, err := bolt.Open(filePath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, errB := tx.CreateBucketIfNotExists([]byte(name)); errB != nil {
				return fmt.Errorf("failed to create %s bucket: %v", name, errB)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// GetBoltDBClient opens the books database described by config.
func GetBoltDBClient(config *BoltDBConfig) (*bolt.DB, error) {
	return OpenBoltDB(config.FilePath, config.Timeout, config.BucketName, keysBucketName(config.BucketName))
}

// NewBoltBookStorage provides an instance of bolt-based book storage.
func NewBoltBookStorage(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) BookStorage {
	return &boltBookStorage{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

func keysBucketName(bucket string) string {
	return bucket + ".keys"
}

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func (bs *boltBookStorage) buckets(tx *bolt.Tx) (*bolt.Bucket, *bolt.Bucket) {
	return tx.Bucket([]byte(bs.config.BucketName)), tx.Bucket([]byte(keysBucketName(bs.config.BucketName)))
}

// Close shuts down the bolt-based book storage.
func (bs *boltBookStorage) Close() error {
	return bs.client.Close()
}

// Add inserts a new book record into boltdb store under the next sequence id.
func (bs *boltBookStorage) Add(_ context.Context, book Book) (Book, error) {
	err := bs.client.Update(func(tx *bolt.Tx) error {
		books, keys := bs.buckets(tx)
		key := []byte(book.Key())
		if keys.Get(key) != nil {
			return duplicateBookError()
		}
		seq, err := books.NextSequence()
		if err != nil {
			return err
		}
		book.ID = int64(seq)
		bookBytes, err := json.Marshal(book)
		if err != nil {
			return err
		}
		if err = books.Put(itob(book.ID), bookBytes); err != nil {
			return err
		}
		return keys.Put(key, itob(book.ID))
	})
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// GetOne retrieves a book record based on its ID from boltdb store.
func (bs *boltBookStorage) GetOne(_ context.Context, id int64) (Book, error) {
	var book Book
	// initialize a readable transaction.
	tx, err := bs.client.Begin(false)
	if err != nil {
		return book, err
	}
	defer tx.Rollback()

	books, _ := bs.buckets(tx)
	result := books.Get(itob(id))
	if result == nil {
		return book, ErrBookNotFound
	}
	err = json.Unmarshal(result, &book)
	return book, err
}

// Delete removes a book record and its identity entry then returns the removed record.
func (bs *boltBookStorage) Delete(_ context.Context, id int64) (Book, error) {
	var book Book
	err := bs.client.Update(func(tx *bolt.Tx) error {
		books, keys := bs.buckets(tx)
		current := books.Get(itob(id))
		if current == nil {
			return ErrBookNotFound
		}
		if err := json.Unmarshal(current, &book); err != nil {
			return err
		}
		if err := keys.Delete([]byte(book.Key())); err != nil {
			return err
		}
		return books.Delete(itob(id))
	})
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// Update replaces an existing book record. The identity entry moves along
// when one of the unique fields changed and is free.
func (bs *boltBookStorage) Update(_ context.Context, book Book) (Book, error) {
	err := bs.client.Update(func(tx *bolt.Tx) error {
		books, keys := bs.buckets(tx)
		current := books.Get(itob(book.ID))
		if current == nil {
			return ErrBookNotFound
		}
		var previous Book
		if err := json.Unmarshal(current, &previous); err != nil {
			return err
		}
		if !previous.SameIdentity(book) {
			key := []byte(book.Key())
			if keys.Get(key) != nil {
				return duplicateBookError()
			}
			if err := keys.Delete([]byte(previous.Key())); err != nil {
				return err
			}
			if err := keys.Put(key, itob(book.ID)); err != nil {
				return err
			}
		}
		bookBytes, err := json.Marshal(book)
		if err != nil {
			return err
		}
		return books.Put(itob(book.ID), bookBytes)
	})
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// GetAll retrieves a list of all books stored in the bolt database ordered by id.
func (bs *boltBookStorage) GetAll(_ context.Context) ([]Book, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	books, _ := bs.buckets(tx)
	c := books.Cursor()

	result := []Book{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var book Book
		if err = json.Unmarshal(v, &book); err != nil {
			return nil, err
		}
		result = append(result, book)
	}
	return result, nil
}

// DeleteAll drops then recreates both buckets. The id sequence restarts.
func (bs *boltBookStorage) DeleteAll(_ context.Context) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bs.config.BucketName, keysBucketName(bs.config.BucketName)} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}
