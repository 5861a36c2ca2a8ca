package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/akolanti/docproc/internal/adapter/utils"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/redisStore"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/pkg/logger_i"
)

const (
	taskKeyPrefix   = "task:"
	resultKeyPrefix = "result:"
	allTasksKey     = "all_tasks"
)

// RedisTaskStore keeps the advisory task records as hashes under task:<id>,
// cached extraction results as JSON blobs under result:<id>, and a recent-task
// list under all_tasks. Every write refreshes the TTL.
type RedisTaskStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisTaskStore(ctx context.Context) *RedisTaskStore {
	inner := redisStore.GetRedisStore(ctx, config.RedisTaskStore)
	if inner == nil {
		return nil
	}
	return &RedisTaskStore{
		store:  inner,
		logger: logger_i.NewLogger("TaskStore"),
	}
}

func (s *RedisTaskStore) SaveTask(ctx context.Context, record taskModel.TaskRecord) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "taskId", record.TaskID)
	log.Debug("saving task record", "status", record.Status, "progress", record.Progress)

	key := taskKeyPrefix + record.TaskID
	fields := map[string]interface{}{
		"status":   string(record.Status),
		"progress": record.Progress,
		"filename": record.Filename,
		"error":    record.Error,
	}
	if !record.CreatedAt.IsZero() {
		fields["created_at"] = record.CreatedAt.Format(time.RFC3339Nano)
	}
	if !record.StartedAt.IsZero() {
		fields["started_at"] = record.StartedAt.Format(time.RFC3339Nano)
	}
	if !record.CompletedAt.IsZero() {
		fields["completed_at"] = record.CompletedAt.Format(time.RFC3339Nano)
	}

	if err := s.store.HashSet(ctx, key, fields); err != nil {
		return err
	}
	return s.store.Expire(ctx, key, config.TaskStoreTTL)
}

func (s *RedisTaskStore) GetTask(ctx context.Context, taskID string) (taskModel.TaskRecord, bool) {
	var record taskModel.TaskRecord

	fields, err := s.store.HashGetAll(ctx, taskKeyPrefix+taskID)
	if err != nil || len(fields) == 0 {
		return record, false
	}

	record.TaskID = taskID
	record.Status = taskModel.Status(fields["status"])
	record.Filename = fields["filename"]
	record.Error = fields["error"]
	if progress, err := strconv.Atoi(fields["progress"]); err == nil {
		record.Progress = progress
	}
	record.CreatedAt = parseTime(fields["created_at"])
	record.StartedAt = parseTime(fields["started_at"])
	record.CompletedAt = parseTime(fields["completed_at"])
	return record, true
}

func (s *RedisTaskStore) DeleteTask(ctx context.Context, taskID string) {
	if err := s.store.Del(ctx, taskKeyPrefix+taskID); err != nil {
		s.logger.Error("Error deleting task record", "taskId", taskID, "error", err)
	}
}

func (s *RedisTaskStore) SaveResult(ctx context.Context, result taskModel.CachedResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, resultKeyPrefix+result.TaskID, data, config.ResultStoreTTL)
}

func (s *RedisTaskStore) GetResult(ctx context.Context, taskID string) (taskModel.CachedResult, bool) {
	var result taskModel.CachedResult

	val, err := s.store.Get(ctx, resultKeyPrefix+taskID)
	if s.store.IsNil(err) {
		return result, false
	} else if err != nil {
		return result, false
	}

	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return result, false
	}
	result.TaskID = taskID
	return result, true
}

func (s *RedisTaskStore) DeleteResult(ctx context.Context, taskID string) {
	if err := s.store.Del(ctx, resultKeyPrefix+taskID); err != nil {
		s.logger.Error("Error deleting cached result", "taskId", taskID, "error", err)
	}
}

func (s *RedisTaskStore) TrackTask(ctx context.Context, taskID string) error {
	return s.store.ListPush(ctx, allTasksKey, taskID)
}

func (s *RedisTaskStore) UntrackTask(ctx context.Context, taskID string) {
	if err := s.store.ListRemove(ctx, allTasksKey, 0, taskID); err != nil {
		s.logger.Error("Error removing task from recent list", "taskId", taskID, "error", err)
	}
}

// ListTaskIDs pages the recent-task list newest first. offset/limit address
// the reversed order.
func (s *RedisTaskStore) ListTaskIDs(ctx context.Context, offset, limit int) ([]string, int64, error) {
	total, err := s.store.ListLen(ctx, allTasksKey)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []string{}, 0, nil
	}

	// all_tasks grows by appending, so the newest ids sit at the tail.
	stop := total - 1 - int64(offset)
	start := stop - int64(limit) + 1
	if stop < 0 {
		return []string{}, total, nil
	}
	if start < 0 {
		start = 0
	}

	ids, err := s.store.ListRange(ctx, allTasksKey, start, stop)
	if err != nil {
		return nil, total, err
	}
	return utils.ReverseStringArray(ids), total, nil
}

func (s *RedisTaskStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func TestTaskStore(store *redisStore.Store) *RedisTaskStore {
	return &RedisTaskStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
