package task

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/metrics"
)

// Health is one connectivity snapshot. QueueDepth is -1 when the depth
// probe failed.
type Health struct {
	Postgres   bool
	Redis      bool
	QueueDepth int64
	CheckedAt  time.Time
}

func (h Health) Healthy() bool {
	return h.Postgres && h.Redis
}

var (
	healthMutex sync.Mutex
	lastHealth  Health
)

// Health probes the catalog, the cache and the queue. Snapshots are
// reused for HealthCacheTTL so aggressive liveness polling stays cheap.
func (s *Service) Health(ctx context.Context) Health {
	healthMutex.Lock()
	defer healthMutex.Unlock()

	if !lastHealth.CheckedAt.IsZero() && time.Since(lastHealth.CheckedAt) < config.HealthCacheTTL {
		return lastHealth
	}

	snapshot := Health{QueueDepth: -1, CheckedAt: time.Now().UTC()}
	snapshot.Postgres = s.Documents.Ping(ctx) == nil
	snapshot.Redis = s.Tasks.Ping(ctx) == nil
	if depth, err := s.Queue.Depth(ctx); err == nil {
		snapshot.QueueDepth = depth
		metrics.SetQueueDepth(depth)
	} else {
		s.logger.Warn("Queue depth probe failed during health check", "error", err)
	}

	lastHealth = snapshot
	return snapshot
}
