package store

import (
	"context"
	"sync"

	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem TaskStore")

// InMemoryTaskStore backs development and tests when Redis is unavailable.
// TTLs are not enforced; entries live until deleted.
type InMemoryTaskStore struct {
	mutex   *sync.RWMutex
	tasks   map[string]taskModel.TaskRecord
	results map[string]taskModel.CachedResult
	recent  []string
}

func InitInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		mutex:   new(sync.RWMutex),
		tasks:   make(map[string]taskModel.TaskRecord),
		results: make(map[string]taskModel.CachedResult),
	}
}

func (store *InMemoryTaskStore) SaveTask(ctx context.Context, record taskModel.TaskRecord) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.tasks[record.TaskID] = record
	inMemLogger.Debug("Saved task record", "taskId", record.TaskID, "status", record.Status)
	return nil
}

func (store *InMemoryTaskStore) GetTask(ctx context.Context, taskID string) (taskModel.TaskRecord, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	record, found := store.tasks[taskID]
	return record, found
}

func (store *InMemoryTaskStore) DeleteTask(ctx context.Context, taskID string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.tasks, taskID)
}

func (store *InMemoryTaskStore) SaveResult(ctx context.Context, result taskModel.CachedResult) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.results[result.TaskID] = result
	return nil
}

func (store *InMemoryTaskStore) GetResult(ctx context.Context, taskID string) (taskModel.CachedResult, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	result, found := store.results[taskID]
	return result, found
}

func (store *InMemoryTaskStore) DeleteResult(ctx context.Context, taskID string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.results, taskID)
}

func (store *InMemoryTaskStore) TrackTask(ctx context.Context, taskID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.recent = append(store.recent, taskID)
	return nil
}

func (store *InMemoryTaskStore) UntrackTask(ctx context.Context, taskID string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	kept := store.recent[:0]
	for _, id := range store.recent {
		if id != taskID {
			kept = append(kept, id)
		}
	}
	store.recent = kept
}

func (store *InMemoryTaskStore) ListTaskIDs(ctx context.Context, offset, limit int) ([]string, int64, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	total := int64(len(store.recent))
	ids := make([]string, 0, limit)
	for i := len(store.recent) - 1 - offset; i >= 0 && len(ids) < limit; i-- {
		ids = append(ids, store.recent[i])
	}
	return ids, total, nil
}

func (store *InMemoryTaskStore) Ping(ctx context.Context) error {
	return nil
}
