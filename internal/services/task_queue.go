package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/teamsync-hq/teamsync/backend/internal/config"
	"github.com/teamsync-hq/teamsync/backend/pkg/logger"
)

const (
	TaskTypeAudit           = "audit:record"
	TaskTypeInvitationEmail = "email:invitation"
)

// TaskProcessor handles a dequeued task payload.
type TaskProcessor func(ctx context.Context, taskType string, payload []byte) error

// TaskQueue carries fire-and-forget work (audit records, invitation
// emails) off the request path.
type TaskQueue interface {
	// Enqueue adds a task to the queue. The payload is JSON-marshalled.
	Enqueue(taskType string, payload interface{}) error
	// IsAsync returns true if the queue processes tasks out of process.
	IsAsync() bool
	// Close gracefully shuts down the queue.
	Close() error
}

// Global task queue instance
var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[TaskQueue] Redis unavailable, falling back to in-process mode: %v", err)
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] In-process queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	t := asynq.NewTask(taskType, data)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Task enqueued: id=%s, type=%s", info.ID, taskType)
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue with in-process processing (no Redis)
type SyncQueue struct {
	processor TaskProcessor
}

// NewSyncQueue creates a new in-process queue
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that handles tasks in-process
func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

// Enqueue processes the task in a goroutine so the caller never blocks on
// audit or notification delivery.
func (q *SyncQueue) Enqueue(taskType string, payload interface{}) error {
	if q.processor == nil {
		logger.Infof("[SyncQueue] Warning: no processor set, task %s dropped", taskType)
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	go func() {
		ctx := context.Background()
		if err := q.processor(ctx, taskType, data); err != nil {
			logger.Infof("[SyncQueue] Task %s failed: %v", taskType, err)
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
