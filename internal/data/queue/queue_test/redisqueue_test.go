package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/akolanti/docproc/internal/data/queue"
	"github.com/akolanti/docproc/internal/data/redisStore"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisQueue_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.NewRedisQueue(redisStore.NewTestStore(client), 200*time.Millisecond)

	ctx := context.Background()
	message := taskModel.QueueMessage{
		TaskID:     "31",
		BlobHandle: "uploads/abc.pdf",
		Filename:   "report.pdf",
		UserID:     2,
		Prompt:     "summarize the findings",
	}

	t.Run("Enqueue Receive Ack", func(t *testing.T) {
		if err := q.Enqueue(ctx, message); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}

		depth, err := q.Depth(ctx)
		if err != nil || depth != 1 {
			t.Fatalf("Depth got %d (err %v), want 1", depth, err)
		}

		delivery, ok, err := q.Receive(ctx, 100*time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("Receive failed: ok=%v err=%v", ok, err)
		}
		if delivery.Message != message {
			t.Errorf("Message mismatch! Got %+v, want %+v", delivery.Message, message)
		}
		if delivery.Receipt == "" {
			t.Error("Claim came back without a receipt")
		}

		// a claimed message still counts toward the depth
		depth, _ = q.Depth(ctx)
		if depth != 1 {
			t.Errorf("In-flight depth got %d, want 1", depth)
		}

		if err := q.Ack(ctx, delivery.Receipt); err != nil {
			t.Fatalf("Ack failed: %v", err)
		}
		depth, _ = q.Depth(ctx)
		if depth != 0 {
			t.Errorf("Depth after ack got %d, want 0", depth)
		}
	})

	t.Run("Empty Wait Returns Nothing", func(t *testing.T) {
		_, ok, err := q.Receive(ctx, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Receive on an empty queue errored: %v", err)
		}
		if ok {
			t.Error("Receive claimed a message from an empty queue")
		}
	})

	t.Run("Visibility Timeout Redelivers", func(t *testing.T) {
		if err := q.Enqueue(ctx, message); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		first, ok, err := q.Receive(ctx, 100*time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("Receive failed: ok=%v err=%v", ok, err)
		}

		// never acked; wait out the 200ms visibility window
		time.Sleep(250 * time.Millisecond)
		moved, err := q.ReapExpired(ctx)
		if err != nil {
			t.Fatalf("ReapExpired failed: %v", err)
		}
		if moved != 1 {
			t.Fatalf("ReapExpired moved %d claims, want 1", moved)
		}

		second, ok, err := q.Receive(ctx, 100*time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("Redelivery not receivable: ok=%v err=%v", ok, err)
		}
		if second.Message.TaskID != message.TaskID {
			t.Errorf("Redelivered task %s, want %s", second.Message.TaskID, message.TaskID)
		}
		if second.Receipt == first.Receipt {
			t.Error("Redelivery reused the expired receipt")
		}

		// the late ack of the reaped claim must not touch the new one
		if err := q.Ack(ctx, first.Receipt); err != nil {
			t.Fatalf("Late ack errored: %v", err)
		}
		depth, _ := q.Depth(ctx)
		if depth != 1 {
			t.Errorf("Depth after late ack got %d, want 1", depth)
		}

		if err := q.Ack(ctx, second.Receipt); err != nil {
			t.Fatalf("Ack failed: %v", err)
		}
	})

	t.Run("Extend Pushes The Deadline", func(t *testing.T) {
		if err := q.Enqueue(ctx, message); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		delivery, ok, err := q.Receive(ctx, 100*time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("Receive failed: ok=%v err=%v", ok, err)
		}

		time.Sleep(120 * time.Millisecond)
		if err := q.Extend(ctx, delivery.Receipt); err != nil {
			t.Fatalf("Extend failed: %v", err)
		}

		// past the original deadline but inside the extended one
		time.Sleep(120 * time.Millisecond)
		moved, err := q.ReapExpired(ctx)
		if err != nil {
			t.Fatalf("ReapExpired failed: %v", err)
		}
		if moved != 0 {
			t.Errorf("Reaper moved %d extended claims, want 0", moved)
		}

		if err := q.Ack(ctx, delivery.Receipt); err != nil {
			t.Fatalf("Ack failed: %v", err)
		}
	})

	t.Run("Orphaned Claims Are Requeued", func(t *testing.T) {
		// a crash between the list move and the receipt registration leaves
		// an in-flight entry nobody owns
		payload, _ := json.Marshal(taskModel.QueueMessage{TaskID: "99", Filename: "lost.pdf"})
		if err := client.LPush(ctx, "ingest:inflight", payload).Err(); err != nil {
			t.Fatalf("Seeding the in-flight list failed: %v", err)
		}

		moved, err := q.ReapExpired(ctx)
		if err != nil {
			t.Fatalf("ReapExpired failed: %v", err)
		}
		if moved != 1 {
			t.Fatalf("Reaper moved %d orphans, want 1", moved)
		}

		delivery, ok, err := q.Receive(ctx, 100*time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("Requeued orphan not receivable: ok=%v err=%v", ok, err)
		}
		if delivery.Message.TaskID != "99" {
			t.Errorf("Orphan task got %s, want 99", delivery.Message.TaskID)
		}
		if err := q.Ack(ctx, delivery.Receipt); err != nil {
			t.Fatalf("Ack failed: %v", err)
		}
	})

	t.Run("Poison Message Is Dropped", func(t *testing.T) {
		if err := client.LPush(ctx, "ingest:pending", "not json").Err(); err != nil {
			t.Fatalf("Seeding the pending list failed: %v", err)
		}

		_, ok, err := q.Receive(ctx, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Receive errored on a poison message: %v", err)
		}
		if ok {
			t.Error("Receive handed out an undecodable message")
		}

		depth, _ := q.Depth(ctx)
		if depth != 0 {
			t.Errorf("Poison message still counted, depth got %d, want 0", depth)
		}
	})
}
