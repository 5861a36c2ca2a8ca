package queue

import (
	"context"
	"time"

	"github.com/akolanti/docproc/internal/domain/taskModel"
)

// Delivery is one claimed message. The receipt identifies the claim, not the
// message: after a visibility timeout the same message comes back under a new
// receipt and acking the old one is a no-op.
type Delivery struct {
	Message taskModel.QueueMessage
	Receipt string
}

// Queue hands ingestion messages from admission to the worker pool with
// at-least-once delivery. A claimed message stays invisible until it is acked
// or its visibility deadline passes, after which ReapExpired returns it to the
// pending queue.
type Queue interface {
	Enqueue(ctx context.Context, message taskModel.QueueMessage) error

	// Receive waits up to wait for a message. The second return is false when
	// the wait expired with nothing pending.
	Receive(ctx context.Context, wait time.Duration) (Delivery, bool, error)

	Ack(ctx context.Context, receipt string) error

	// Extend pushes the visibility deadline of a claim out by one full
	// visibility timeout from now.
	Extend(ctx context.Context, receipt string) error

	// ReapExpired requeues every claim whose deadline has passed and returns
	// how many were moved.
	ReapExpired(ctx context.Context) (int, error)

	// Depth counts pending plus in-flight messages.
	Depth(ctx context.Context) (int64, error)
}
