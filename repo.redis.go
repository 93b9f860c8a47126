package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HBooks    string = "books"
	HBookKeys string = "books:keys"
	KBookSeq  string = "books:seq"
)

const maxRedisTxRetries = 10

var _ BookStorage = (*redisBookStorage)(nil)

type redisBookStorage struct {
	logger *zap.Logger
	client *redis.Client
}

// NewRedisBookStorage provides an instance of redis-based book storage.
func NewRedisBookStorage(logger *zap.Logger, client *redis.Client) BookStorage {
	return &redisBookStorage{
		logger: logger,
		client: client,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Host, config.Port),
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
		PoolTimeout:  config.PoolTimeout,
		Password:     config.Password,
		Username:     config.Username,
		DB:           config.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// watch runs fn under an optimistic transaction on keys and retries
// while another client modifies one of them before the commit.
func (rs *redisBookStorage) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxRedisTxRetries; i++ {
		err := rs.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		rs.logger.Debug("redis: transaction conflict, retrying", zap.Int("attempt", i+1))
	}
	return errors.New("redis: transaction retries exhausted")
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func getBook(ctx context.Context, cmd hashGetter, id int64) (Book, error) {
	var book Book
	bookJSONString, err := cmd.HGet(ctx, HBooks, strconv.FormatInt(id, 10)).Result()
	if err == redis.Nil {
		return book, ErrBookNotFound
	}
	if err != nil {
		return book, err
	}
	err = json.Unmarshal([]byte(bookJSONString), &book)
	return book, err
}

// Add inserts a new book record under the next counter value.
func (rs *redisBookStorage) Add(ctx context.Context, book Book) (Book, error) {
	key := book.Key()
	txf := func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, HBookKeys, key).Result()
		if err != nil {
			return err
		}
		if exists {
			return duplicateBookError()
		}
		id, err := tx.Incr(ctx, KBookSeq).Result()
		if err != nil {
			return err
		}
		book.ID = id
		bookBytes, err := json.Marshal(book)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, HBooks, strconv.FormatInt(id, 10), bookBytes)
			pipe.HSet(ctx, HBookKeys, key, id)
			return nil
		})
		return err
	}
	if err := rs.watch(ctx, txf, HBookKeys); err != nil {
		return Book{}, err
	}
	return book, nil
}

// GetOne retrieves a book record based on its ID.
func (rs *redisBookStorage) GetOne(ctx context.Context, id int64) (Book, error) {
	return getBook(ctx, rs.client, id)
}

// Delete removes a book record and its identity entry then returns the removed record.
func (rs *redisBookStorage) Delete(ctx context.Context, id int64) (Book, error) {
	var book Book
	txf := func(tx *redis.Tx) error {
		var err error
		book, err = getBook(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, HBooks, strconv.FormatInt(id, 10))
			pipe.HDel(ctx, HBookKeys, book.Key())
			return nil
		})
		return err
	}
	if err := rs.watch(ctx, txf, HBooks, HBookKeys); err != nil {
		return Book{}, err
	}
	return book, nil
}

// Update replaces an existing book record.
func (rs *redisBookStorage) Update(ctx context.Context, book Book) (Book, error) {
	txf := func(tx *redis.Tx) error {
		previous, err := getBook(ctx, tx, book.ID)
		if err != nil {
			return err
		}
		moved := !previous.SameIdentity(book)
		if moved {
			exists, err := tx.HExists(ctx, HBookKeys, book.Key()).Result()
			if err != nil {
				return err
			}
			if exists {
				return duplicateBookError()
			}
		}
		bookBytes, err := json.Marshal(book)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, HBooks, strconv.FormatInt(book.ID, 10), bookBytes)
			if moved {
				pipe.HDel(ctx, HBookKeys, previous.Key())
				pipe.HSet(ctx, HBookKeys, book.Key(), book.ID)
			}
			return nil
		})
		return err
	}
	if err := rs.watch(ctx, txf, HBooks, HBookKeys); err != nil {
		return Book{}, err
	}
	return book, nil
}

// GetAll retrieves a list of all books stored in the redis database ordered by id.
func (rs *redisBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	mapBooks, err := rs.client.HVals(ctx, HBooks).Result()
	if err != nil {
		return nil, err
	}
	books := []Book{}
	for _, bookJSONString := range mapBooks {
		var book Book
		if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// DeleteAll removes every book, identity entry and the id counter.
func (rs *redisBookStorage) DeleteAll(ctx context.Context) error {
	return rs.client.Del(ctx, HBooks, HBookKeys, KBookSeq).Err()
}

// Close does nothing. The client is shared with the queues and closed by its owner.
func (rs *redisBookStorage) Close() error {
	return nil
}
