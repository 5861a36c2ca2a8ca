package queue

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/google/uuid"
)

type inflightClaim struct {
	message  taskModel.QueueMessage
	deadline time.Time
}

// InMemoryQueue mirrors the redis queue semantics for development and tests.
type InMemoryQueue struct {
	mutex      sync.Mutex
	pending    []taskModel.QueueMessage
	inflight   map[string]inflightClaim
	visibility time.Duration
	notify     chan struct{}
}

func InitInMemoryQueue(visibility time.Duration) *InMemoryQueue {
	return &InMemoryQueue{
		inflight:   make(map[string]inflightClaim),
		visibility: visibility,
		notify:     make(chan struct{}, 1),
	}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, message taskModel.QueueMessage) error {
	q.mutex.Lock()
	q.pending = append(q.pending, message)
	q.mutex.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *InMemoryQueue) Receive(ctx context.Context, wait time.Duration) (Delivery, bool, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		if delivery, ok := q.tryClaim(); ok {
			return delivery, true, nil
		}
		select {
		case <-ctx.Done():
			return Delivery{}, false, ctx.Err()
		case <-deadline.C:
			return Delivery{}, false, nil
		case <-q.notify:
		}
	}
}

func (q *InMemoryQueue) tryClaim() (Delivery, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.pending) == 0 {
		return Delivery{}, false
	}
	message := q.pending[0]
	q.pending = q.pending[1:]

	receipt := uuid.New().String()
	q.inflight[receipt] = inflightClaim{
		message:  message,
		deadline: time.Now().Add(q.visibility),
	}
	return Delivery{Message: message, Receipt: receipt}, true
}

func (q *InMemoryQueue) Ack(ctx context.Context, receipt string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	delete(q.inflight, receipt)
	return nil
}

func (q *InMemoryQueue) Extend(ctx context.Context, receipt string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if claim, found := q.inflight[receipt]; found {
		claim.deadline = time.Now().Add(q.visibility)
		q.inflight[receipt] = claim
	}
	return nil
}

func (q *InMemoryQueue) ReapExpired(ctx context.Context) (int, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	now := time.Now()
	moved := 0
	for receipt, claim := range q.inflight {
		if claim.deadline.After(now) {
			continue
		}
		delete(q.inflight, receipt)
		q.pending = append(q.pending, claim.message)
		moved++
	}

	if moved > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return moved, nil
}

func (q *InMemoryQueue) Depth(ctx context.Context) (int64, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return int64(len(q.pending) + len(q.inflight)), nil
}
