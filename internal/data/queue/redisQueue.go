package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/redisStore"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/pkg/logger_i"
	"github.com/google/uuid"
)

const (
	pendingKey   = "ingest:pending"
	inflightKey  = "ingest:inflight"
	receiptsKey  = "ingest:receipts"
	deadlinesKey = "ingest:deadlines"
)

// RedisQueue is a reliable list-backed queue. Enqueue pushes onto the head of
// the pending list; Receive atomically moves the tail into the in-flight list
// (FIFO) and registers a receipt with a visibility deadline in a sorted set.
// The reaper moves expired claims back to pending.
type RedisQueue struct {
	store      *redisStore.Store
	visibility time.Duration
	logger     *logger_i.Logger
}

func GetRedisQueue(ctx context.Context) *RedisQueue {
	inner := redisStore.GetRedisStore(ctx, config.RedisQueueStore)
	if inner == nil {
		return nil
	}
	return NewRedisQueue(inner, config.VisibilityTimeout)
}

func NewRedisQueue(store *redisStore.Store, visibility time.Duration) *RedisQueue {
	return &RedisQueue{
		store:      store,
		visibility: visibility,
		logger:     logger_i.NewLogger("WorkQueue"),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, message taskModel.QueueMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	q.logger.Debug("enqueueing message", "taskId", message.TaskID)
	return q.store.ListPushHead(ctx, pendingKey, payload)
}

func (q *RedisQueue) Receive(ctx context.Context, wait time.Duration) (Delivery, bool, error) {
	payload, err := q.store.ListMoveBlocking(ctx, pendingKey, inflightKey, wait)
	if q.store.IsNil(err) {
		return Delivery{}, false, nil
	} else if err != nil {
		return Delivery{}, false, err
	}

	receipt := uuid.New().String()
	deadline := float64(time.Now().Add(q.visibility).UnixMilli())
	if err := q.store.HashSet(ctx, receiptsKey, map[string]interface{}{receipt: payload}); err != nil {
		return Delivery{}, false, err
	}
	if err := q.store.SortedSetAdd(ctx, deadlinesKey, receipt, deadline); err != nil {
		return Delivery{}, false, err
	}

	var message taskModel.QueueMessage
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		// Poison message: drop it so it cannot wedge the queue.
		q.logger.Error("dropping undecodable queue message", "payload", payload, "error", err)
		q.discard(ctx, receipt, payload)
		return Delivery{}, false, nil
	}

	q.logger.Debug("claimed message", "taskId", message.TaskID, "receipt", receipt)
	return Delivery{Message: message, Receipt: receipt}, true, nil
}

func (q *RedisQueue) Ack(ctx context.Context, receipt string) error {
	payload, err := q.store.HashGet(ctx, receiptsKey, receipt)
	if q.store.IsNil(err) {
		// Claim already reaped after a visibility timeout; the redelivered
		// copy owns the message now.
		return nil
	} else if err != nil {
		return err
	}
	q.discard(ctx, receipt, payload)
	return nil
}

func (q *RedisQueue) Extend(ctx context.Context, receipt string) error {
	_, err := q.store.HashGet(ctx, receiptsKey, receipt)
	if q.store.IsNil(err) {
		return nil
	} else if err != nil {
		return err
	}
	deadline := float64(time.Now().Add(q.visibility).UnixMilli())
	return q.store.SortedSetAdd(ctx, deadlinesKey, receipt, deadline)
}

func (q *RedisQueue) ReapExpired(ctx context.Context) (int, error) {
	now := float64(time.Now().UnixMilli())
	expired, err := q.store.SortedSetRangeUpTo(ctx, deadlinesKey, now)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, receipt := range expired {
		payload, err := q.store.HashGet(ctx, receiptsKey, receipt)
		if q.store.IsNil(err) {
			_ = q.store.SortedSetRemove(ctx, deadlinesKey, receipt)
			continue
		} else if err != nil {
			return moved, err
		}

		q.logger.Warn("visibility timeout expired, requeueing message", "receipt", receipt)
		if err := q.store.ListRemove(ctx, inflightKey, 1, payload); err != nil {
			return moved, err
		}
		if err := q.store.ListPush(ctx, pendingKey, payload); err != nil {
			return moved, err
		}
		_ = q.store.SortedSetRemove(ctx, deadlinesKey, receipt)
		_ = q.store.HashDelete(ctx, receiptsKey, receipt)
		moved++
	}

	orphans, err := q.requeueOrphans(ctx)
	if err != nil {
		return moved, err
	}
	return moved + orphans, nil
}

// requeueOrphans returns in-flight entries that lost their receipt (crash
// between the list move and the receipt registration) to the pending queue.
func (q *RedisQueue) requeueOrphans(ctx context.Context) (int, error) {
	entries, err := q.store.ListRange(ctx, inflightKey, 0, -1)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	receipts, err := q.store.HashGetAll(ctx, receiptsKey)
	if err != nil {
		return 0, err
	}
	claimed := make(map[string]int, len(receipts))
	for _, payload := range receipts {
		claimed[payload]++
	}

	moved := 0
	for _, payload := range entries {
		if claimed[payload] > 0 {
			claimed[payload]--
			continue
		}
		q.logger.Warn("requeueing in-flight message without a claim")
		if err := q.store.ListRemove(ctx, inflightKey, 1, payload); err != nil {
			return moved, err
		}
		if err := q.store.ListPush(ctx, pendingKey, payload); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	pending, err := q.store.ListLen(ctx, pendingKey)
	if err != nil {
		return 0, err
	}
	inflight, err := q.store.ListLen(ctx, inflightKey)
	if err != nil {
		return 0, err
	}
	return pending + inflight, nil
}

func (q *RedisQueue) discard(ctx context.Context, receipt, payload string) {
	if err := q.store.ListRemove(ctx, inflightKey, 1, payload); err != nil {
		q.logger.Error("Error removing message from in-flight list", "error", err)
	}
	if err := q.store.SortedSetRemove(ctx, deadlinesKey, receipt); err != nil {
		q.logger.Error("Error removing claim deadline", "error", err)
	}
	if err := q.store.HashDelete(ctx, receiptsKey, receipt); err != nil {
		q.logger.Error("Error removing claim receipt", "error", err)
	}
}
