package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Predefinied Queue IDs. One queue per journal operation.
const (
	CreateQueue = "books:journal:created"
	UpdateQueue = "books:journal:updated"
	DeleteQueue = "books:journal:deleted"
)

// ErrQueueEmpty is returned by Pop when no event arrived before the timeout.
var ErrQueueEmpty = errors.New("queue: no event available")

// queueForOp returns the queue carrying events of the given operation.
func queueForOp(op string) string {
	switch op {
	case OpCreate:
		return CreateQueue
	case OpUpdate:
		return UpdateQueue
	default:
		return DeleteQueue
	}
}

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Queuer describes a queue of book events.
type Queuer interface {
	Push(ctx context.Context, qid string, event BookEvent) error
	Pop(ctx context.Context, qids ...string) (string, BookEvent, error)
}

// redisQueue represents a queue which implements the Queuer interface.
type redisQueue struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisQueue provides a queue whose Pop blocks at most timeout.
func NewRedisQueue(client *redis.Client, timeout time.Duration) Queuer {
	return &redisQueue{client: client, timeout: timeout}
}

// Push enqueues an event onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, event BookEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, eventBytes).Err()
}

// Pop returns the first dequeued event from the list of queue ids.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, BookEvent, error) {
	var event BookEvent
	infos, err := q.client.BLPop(ctx, q.timeout, qids...).Result()
	if err == redis.Nil {
		return "", event, ErrQueueEmpty
	}
	if err != nil {
		return "", event, err
	}

	if err = json.Unmarshal([]byte(infos[1]), &event); err != nil {
		return infos[0], event, err
	}
	return infos[0], event, nil
}
