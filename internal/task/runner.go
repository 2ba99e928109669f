// Package task supervises search-task execution: one pipeline run per task
// id on its own goroutine, bridging progress events to the store and
// guaranteeing a terminal transition on every outcome.
package task

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/RidgeOps/scout/internal/metrics"
	"github.com/RidgeOps/scout/internal/pipeline"
	"github.com/RidgeOps/scout/internal/storage"
	"github.com/RidgeOps/scout/internal/youtube"
)

// ValidationError describes a malformed task request. It is surfaced to the
// caller before any task is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Request carries the parameters for a new search task.
type Request struct {
	ProductName    string
	APIKey         string
	MinSubscribers int64
	MinViewCount   int64
}

// Validate checks the request before a task record is created.
func (r Request) Validate() error {
	if r.ProductName == "" {
		return &ValidationError{Field: "product_name", Reason: "must not be empty"}
	}
	if r.APIKey == "" {
		return &ValidationError{Field: "api_key", Reason: "must not be empty"}
	}
	if r.MinSubscribers <= 0 {
		return &ValidationError{Field: "min_subscribers", Reason: "must be positive"}
	}
	if r.MinViewCount <= 0 {
		return &ValidationError{Field: "min_view_count", Reason: "must be positive"}
	}
	return nil
}

// HashAPIKey returns the short hash under which an API key is recorded.
// The key itself is never persisted.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:16]
}

// ClientFactory builds a platform client for one task's API key.
type ClientFactory func(apiKey string) (youtube.Client, error)

// Config provides runner-wide settings applied to every task.
type Config struct {
	// MaxConcurrent bounds how many tasks run pipelines at once; tasks
	// beyond the bound stay pending until a slot frees. 0 means 4.
	MaxConcurrent      int64
	Region             string
	MaxResultsPerQuery int
	PublishedAfter     time.Time
	VideoDelay         time.Duration
	KeywordDelay       time.Duration
}

// RunningTask is a point-in-time view of an in-flight task.
type RunningTask struct {
	TaskID      string
	ProductName string
	StartedAt   time.Time
}

// Runner owns exactly one pipeline execution per task id.
type Runner struct {
	store     storage.Store
	newClient ClientFactory
	cfg       Config
	sem       *semaphore.Weighted
	logger    *slog.Logger

	mu      sync.Mutex
	running map[string]RunningTask

	wg sync.WaitGroup
}

// NewRunner creates a runner over the given store and client factory.
func NewRunner(store storage.Store, newClient ClientFactory, cfg Config, logger *slog.Logger) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		store:     store,
		newClient: newClient,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:    logger,
		running:   make(map[string]RunningTask),
	}
}

// StartTask validates the request, creates the task record, and launches the
// pipeline on its own goroutine. The returned id can be polled immediately.
func (r *Runner) StartTask(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	task := &storage.Task{
		ID:             uuid.New().String(),
		ProductName:    req.ProductName,
		APIKeyHash:     HashAPIKey(req.APIKey),
		MinSubscribers: req.MinSubscribers,
		MinViewCount:   req.MinViewCount,
		Status:         storage.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := r.store.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	r.wg.Add(1)
	go r.run(task.ID, req)

	return task.ID, nil
}

// Running lists tasks currently executing a pipeline.
func (r *Runner) Running() []RunningTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]RunningTask, 0, len(r.running))
	for _, t := range r.running {
		tasks = append(tasks, t)
	}
	return tasks
}

// Wait blocks until all in-flight tasks have reached a terminal state.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// run executes one task to a terminal state. No error escapes: every failure
// path ends in a failed transition, never a crashed process.
func (r *Runner) run(id string, req Request) {
	defer r.wg.Done()

	// Tasks outlive the request that created them; detach from it.
	ctx := context.Background()
	logger := r.logger.With(slog.String("task_id", id))

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.fail(ctx, id, logger, fmt.Errorf("acquire worker slot: %w", err))
		return
	}
	defer r.sem.Release(1)

	start := time.Now()
	metrics.TasksStartedTotal.Inc()

	r.mu.Lock()
	r.running[id] = RunningTask{TaskID: id, ProductName: req.ProductName, StartedAt: start}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.running, id)
		r.mu.Unlock()
	}()

	if err := r.store.UpdateStatus(ctx, id, storage.StatusUpdate{
		Status:   storage.StatusRunning,
		Progress: ptr(0.0),
		Message:  ptr("starting search"),
	}); err != nil {
		// Without the running transition no terminal transition is legal;
		// leave the record as-is and give up on this task.
		logger.Error("could not transition task to running", slog.Any("error", err))
		return
	}

	client, err := r.newClient(req.APIKey)
	if err != nil {
		r.fail(ctx, id, logger, fmt.Errorf("build platform client: %w", err))
		metrics.RecordTaskFinished(string(storage.StatusFailed), time.Since(start))
		return
	}

	pipe := pipeline.New(client, pipeline.Config{
		ProductName:        req.ProductName,
		MinSubscribers:     req.MinSubscribers,
		MinViewCount:       req.MinViewCount,
		Region:             r.cfg.Region,
		MaxResultsPerQuery: r.cfg.MaxResultsPerQuery,
		PublishedAfter:     r.cfg.PublishedAfter,
		VideoDelay:         r.cfg.VideoDelay,
		KeywordDelay:       r.cfg.KeywordDelay,
		Logger:             logger,
		OnProgress: func(p pipeline.Progress) {
			// Progress writes are best-effort; losing one tick is fine.
			err := r.store.UpdateStatus(ctx, id, storage.StatusUpdate{
				Status:            storage.StatusRunning,
				Progress:          ptr(p.Percentage),
				Message:           ptr(p.Message),
				TotalKeywords:     ptr(p.TotalKeywords),
				KeywordsProcessed: ptr(p.KeywordsProcessed),
				FoundInfluencers:  ptr(p.FoundInfluencers),
			})
			if err != nil {
				logger.Warn("progress update dropped", slog.Any("error", err))
			}
		},
	})

	summary, err := pipe.Run(ctx)
	if err != nil {
		r.fail(ctx, id, logger, err)
		metrics.RecordTaskFinished(string(storage.StatusFailed), time.Since(start))
		return
	}

	if err := r.store.SaveResults(ctx, id, pipe.Results()); err != nil {
		r.fail(ctx, id, logger, fmt.Errorf("persist results: %w", err))
		metrics.RecordTaskFinished(string(storage.StatusFailed), time.Since(start))
		return
	}

	found := summary.InfluencersFound
	upd := storage.StatusUpdate{
		Status:           storage.StatusCompleted,
		Progress:         ptr(100.0),
		Message:          ptr(fmt.Sprintf("search complete, found %d influencers", found)),
		FoundInfluencers: ptr(found),
	}
	if err := r.store.UpdateStatus(ctx, id, upd); err != nil {
		// The completion transition must not be silently dropped.
		logger.Error("completion update failed, retrying", slog.Any("error", err))
		if err := r.store.UpdateStatus(ctx, id, upd); err != nil {
			logger.Error("completion update lost", slog.Any("error", err))
		}
	}

	metrics.RecordTaskFinished(string(storage.StatusCompleted), time.Since(start))
	logger.Info("task completed",
		slog.Int("keywords_searched", summary.KeywordsSearched),
		slog.Int("influencers_found", found))
}

// fail records a terminal failure with the error's description. Partial
// in-memory results are discarded; result rows are only written on normal
// completion.
func (r *Runner) fail(ctx context.Context, id string, logger *slog.Logger, cause error) {
	logger.Error("task failed", slog.Any("error", cause))

	upd := storage.StatusUpdate{
		Status:       storage.StatusFailed,
		ErrorMessage: ptr(cause.Error()),
	}
	if err := r.store.UpdateStatus(ctx, id, upd); err != nil {
		logger.Error("failure update failed, retrying", slog.Any("error", err))
		if err := r.store.UpdateStatus(ctx, id, upd); err != nil {
			logger.Error("failure update lost", slog.Any("error", err))
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
