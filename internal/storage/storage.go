package storage

import (
	"context"
	"errors"
	"time"
)

// TaskStatus is the lifecycle state of a search task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

var (
	// ErrNotFound is returned when the task id does not exist.
	ErrNotFound = errors.New("storage: task not found")
	// ErrTerminal is returned when a status update targets a task that has
	// already completed or failed.
	ErrTerminal = errors.New("storage: task is terminal")
	// ErrDuplicateID is returned when creating a task with an id already in use.
	ErrDuplicateID = errors.New("storage: task id already exists")
)

// CanTransition reports whether moving a task from one status to another is
// legal. The only legal moves are pending->running and running->completed or
// running->failed. A status may always be re-asserted (progress updates keep
// status "running").
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return from == StatusPending || from == StatusRunning
	}
	switch from {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Terminal reports whether a status accepts no further updates.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one asynchronous influencer search, tracked by id.
type Task struct {
	ID                string
	ProductName       string
	APIKeyHash        string
	MinSubscribers    int64
	MinViewCount      int64
	Status            TaskStatus
	Progress          float64 // 0..100
	ProgressMessage   string
	TotalKeywords     int
	KeywordsProcessed int
	FoundInfluencers  int
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ErrorMessage      string
}

// InfluencerResult is one qualifying (channel, product, keyword) discovery.
// Immutable once created; persisted append-only under its owning task.
type InfluencerResult struct {
	TaskID             string
	ChannelName        string
	ChannelID          string
	ChannelURL         string
	ChannelCountry     string
	SubscriberCount    int64
	ProductReviewed    string
	SearchKeyword      string
	VideoTitle         string
	VideoID            string
	VideoURL           string
	VideoViewCount     int64
	VideoPublishedAt   time.Time
	VideoDescription   string
	TotalChannelViews  int64
	TotalChannelVideos int64
	CreatedAt          time.Time
}

// StatusUpdate is a partial-field update for a task. Nil pointers leave the
// corresponding column unchanged.
type StatusUpdate struct {
	Status            TaskStatus
	Progress          *float64
	Message           *string
	TotalKeywords     *int
	KeywordsProcessed *int
	FoundInfluencers  *int
	ErrorMessage      *string
}

// Store defines the interface for persisting tasks and their results.
// Writes for a given task id come from exactly one runner goroutine; reads
// may arrive concurrently from the request layer.
type Store interface {
	CreateTask(ctx context.Context, task *Task) error
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error
	GetTask(ctx context.Context, id string) (*Task, error)
	SaveResults(ctx context.Context, id string, results []*InfluencerResult) error
	// GetResults returns a task's results ordered by subscriber count descending.
	GetResults(ctx context.Context, id string) ([]*InfluencerResult, error)
	// ListHistory returns the most recently created tasks, newest first.
	ListHistory(ctx context.Context, limit int) ([]*Task, error)
	Close() error
}

// ApplyUpdate mutates a task in memory according to an update, stamping
// started/completed times on the relevant transitions. Callers must have
// already validated the transition.
func ApplyUpdate(task *Task, upd StatusUpdate, now time.Time) {
	if task.Status == StatusPending && upd.Status == StatusRunning {
		t := now
		task.StartedAt = &t
	}
	if upd.Status == StatusCompleted {
		t := now
		task.CompletedAt = &t
	}
	task.Status = upd.Status
	if upd.Progress != nil {
		task.Progress = *upd.Progress
	}
	if upd.Message != nil {
		task.ProgressMessage = *upd.Message
	}
	if upd.TotalKeywords != nil {
		task.TotalKeywords = *upd.TotalKeywords
	}
	if upd.KeywordsProcessed != nil {
		task.KeywordsProcessed = *upd.KeywordsProcessed
	}
	if upd.FoundInfluencers != nil {
		task.FoundInfluencers = *upd.FoundInfluencers
	}
	if upd.ErrorMessage != nil {
		task.ErrorMessage = *upd.ErrorMessage
	}
}
