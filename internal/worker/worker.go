package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/data/queue"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/internal/rag"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var (
	workQueue          queue.Queue
	documents          catalog.Catalog
	_ragService        rag.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	poolCtx            context.Context
	poolCancel         context.CancelFunc
	currentWorkerCount int64
	minWorkerCount     = config.MinWorkerCount
	dispatchTick       = 5 * time.Second
	longPollWait       = config.QueueLongPollWait
	idleWorkerTimeout  = config.IdleWorkerTimeout
	logger             *logger_i.Logger
)

func InitServices(q queue.Queue, cat catalog.Catalog, ragService rag.Service) {
	workQueue = q
	documents = cat
	_ragService = ragService
}

// InitWorkerPool starts the baseline workers plus the dispatcher, the
// visibility reaper and the stale-pending sweeper. Closing the stop
// channel drains the pool; the wait group reports when every worker is
// gone.
func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool")

	poolCtx, poolCancel = context.WithCancel(context.Background())
	go func() {
		<-stopWorkerChannel
		poolCancel()
	}()

	for i := int64(0); i < atomic.LoadInt64(&minWorkerCount); i++ {
		createWorker()
	}
	go dispatcher()
	go reaper()
	go sweeper()
}

// dispatcher scales the pool toward the queue depth, one extra worker
// per RequestsPerNewWorkerCount pending messages.
func dispatcher() {
	logger.Info("Dispatcher started")
	ticker := time.NewTicker(dispatchTick)
	defer ticker.Stop()

	for {
		select {
		case <-poolCtx.Done():
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(poolCtx, 5*time.Second)
		depth, err := workQueue.Depth(ctx)
		cancel()
		if err != nil {
			logger.Warn("Queue depth probe failed", "error", err)
			continue
		}
		metrics.SetQueueDepth(depth)

		want := atomic.LoadInt64(&minWorkerCount) + depth/config.RequestsPerNewWorkerCount
		if want > config.MaxWorkerCount {
			want = config.MaxWorkerCount
		}
		for atomic.LoadInt64(&currentWorkerCount) < want {
			logger.Info("Creating new worker", "WorkerCount :", atomic.LoadInt64(&currentWorkerCount))
			createWorker()
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	go worker()
	atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	logger.Info("Created new worker")
}

// worker long-polls the queue. Surplus workers retire after staying
// idle past IdleWorkerTimeout; the baseline workers poll forever.
func worker() {
	idleSince := time.Now()
	for {
		select {
		case <-poolCtx.Done():
			removeWorker("Stop worker signal received")
			return
		default:
		}

		delivery, ok, err := workQueue.Receive(poolCtx, longPollWait)
		if err != nil {
			if poolCtx.Err() != nil {
				removeWorker("Stop worker signal received")
				return
			}
			logger.Error("Receive failed", "error", err)
			// pause so a dead broker does not spin the pool
			select {
			case <-poolCtx.Done():
				removeWorker("Stop worker signal received")
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			if time.Since(idleSince) >= idleWorkerTimeout &&
				atomic.LoadInt64(&currentWorkerCount) > atomic.LoadInt64(&minWorkerCount) {
				removeWorker("Idle worker timeout - Removed worker")
				return
			}
			continue
		}

		executeDelivery(delivery)
		idleSince = time.Now()
	}
}
