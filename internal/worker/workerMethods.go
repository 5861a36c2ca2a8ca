package worker

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/akolanti/docproc/internal/adapter/utils"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/queue"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/internal/rag"
)

// executeDelivery runs one claimed message through the pipeline and
// settles the claim. Terminal outcomes and skips are acked; a transient
// failure leaves the claim to expire so the queue redelivers it.
func executeDelivery(delivery queue.Delivery) {
	metrics.IncrementMessagesInFlight()
	defer metrics.DecrementMessagesInFlight()

	message := delivery.Message
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, utils.GetNewUUID())
	logger.Debug("Processing message:", "task Id:", message.TaskID)

	stopHeartbeat := startHeartbeat(delivery.Receipt)
	disposition, err := _ragService.IngestDocument(ctx, message)
	stopHeartbeat()

	if disposition == rag.DispositionRetry {
		logger.Warn("Transient failure, leaving message for redelivery",
			"taskId", message.TaskID, "error", err)
		return
	}
	if err != nil {
		logger.Error("Message settled with error", "taskId", message.TaskID, "error", err)
	}

	ackCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := workQueue.Ack(ackCtx, delivery.Receipt); err != nil {
		logger.Error("Ack failed, message may be redelivered", "taskId", message.TaskID, "error", err)
	}
}

// startHeartbeat keeps the claim alive while a long document is being
// processed. The returned stop function must be called before acking.
func startHeartbeat(receipt string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(config.VisibilityTimeout / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := workQueue.Extend(ctx, receipt); err != nil {
					logger.Warn("Visibility extension failed", "error", err)
				}
				cancel()
			}
		}
	}()
	return func() { close(done) }
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}

// reaper returns expired claims to the pending queue so a crashed
// worker cannot strand a message.
func reaper() {
	ticker := time.NewTicker(config.QueueReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-poolCtx.Done():
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(poolCtx, 10*time.Second)
		moved, err := workQueue.ReapExpired(ctx)
		cancel()
		if err != nil {
			logger.Warn("Reaping expired claims failed", "error", err)
			continue
		}
		if moved > 0 {
			logger.Info("Requeued expired claims", "count", moved)
		}
	}
}

// sweeper reconciles documents stuck in Pending, usually because the
// enqueue was lost. First sighting re-enqueues the message; a document
// still pending on the next pass is marked failed.
func sweeper() {
	requeued := make(map[int64]time.Time)
	ticker := time.NewTicker(config.SweeperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-poolCtx.Done():
			return
		case <-ticker.C:
		}
		sweepOnce(requeued)
	}
}

func sweepOnce(requeued map[int64]time.Time) {
	ctx, cancel := context.WithTimeout(poolCtx, 30*time.Second)
	defer cancel()

	// entries whose document left Pending by other means
	for id, at := range requeued {
		if time.Since(at) > 3*config.SweeperInterval {
			delete(requeued, id)
		}
	}

	cutoff := time.Now().UTC().Add(-config.PendingStuckThreshold)
	stale, err := documents.ListStalePending(ctx, cutoff, 100)
	if err != nil {
		logger.Warn("Stale pending scan failed", "error", err)
		return
	}

	for _, document := range stale {
		if _, alreadyRequeued := requeued[document.ID]; alreadyRequeued {
			if err := documents.MarkFailed(ctx, document.ID, "stuck in pending"); err != nil {
				logger.Error("Could not fail stuck document", "documentId", document.ID, "error", err)
				continue
			}
			delete(requeued, document.ID)
			metrics.CountDocumentProcessed("failed")
			logger.Warn("Marked stuck document failed", "documentId", document.ID)
			continue
		}

		message := taskModel.QueueMessage{
			TaskID:     strconv.FormatInt(document.ID, 10),
			BlobHandle: document.BlobHandle,
			Filename:   document.Filename,
			UserID:     document.UserID,
			Prompt:     document.Prompt,
		}
		if err := workQueue.Enqueue(ctx, message); err != nil {
			logger.Warn("Re-enqueue of stale document failed", "documentId", document.ID, "error", err)
			continue
		}
		requeued[document.ID] = time.Now()
		logger.Info("Re-enqueued stale pending document", "documentId", document.ID)
	}
}
