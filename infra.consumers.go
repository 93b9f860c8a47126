package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// journalConsumer moves book events from the queues into the journal.
type journalConsumer struct {
	logger  *zap.Logger
	queue   Queuer
	journal Journal
	metrics *Metrics
}

func NewJournalConsumer(logger *zap.Logger, q Queuer, journal Journal, metrics *Metrics) Consumer {
	return &journalConsumer{logger: logger, queue: q, journal: journal, metrics: metrics}
}

func (jc *journalConsumer) Consume(ctx context.Context, qids ...string) error {
	for {
		qid, event, err := jc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			jc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if errors.Is(err, ErrQueueEmpty) {
			continue
		}

		if err != nil {
			jc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			continue
		}

		switch qid {
		case CreateQueue, UpdateQueue, DeleteQueue:
			if err = jc.journal.Append(ctx, event); err != nil {
				jc.logger.Error("consumer: failed to journal event", zap.String("qid", qid), zap.Any("event", event), zap.Error(err))
				continue
			}
			jc.metrics.EventJournaled(event.Op)
		default:
			jc.logger.Warn("consumer: received event on unknow queue id", zap.String("qid", qid), zap.Any("event", event))
		}
	}
}
