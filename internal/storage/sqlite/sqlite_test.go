package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RidgeOps/scout/internal/storage"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := New("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTask(id string) *storage.Task {
	return &storage.Task{
		ID:             id,
		ProductName:    "Orbi 370",
		APIKeyHash:     "abcd1234",
		MinSubscribers: 10000,
		MinViewCount:   5000,
		Status:         storage.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, newTask("task1")); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := s.GetTask(ctx, "task1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.ProductName != "Orbi 370" {
		t.Errorf("ProductName = %q", got.ProductName)
	}
	if got.Status != storage.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Error("fresh task has start/completion timestamps")
	}
}

func TestCreateTask_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, newTask("dup")); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := s.CreateTask(ctx, newTask("dup")); !errors.Is(err, storage.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetTask(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, newTask("life")); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	err := s.UpdateStatus(ctx, "life", storage.StatusUpdate{
		Status:   storage.StatusRunning,
		Progress: ptr(0.0),
		Message:  ptr("starting search"),
	})
	if err != nil {
		t.Fatalf("pending->running failed: %v", err)
	}

	got, _ := s.GetTask(ctx, "life")
	if got.StartedAt == nil {
		t.Error("StartedAt not stamped on running transition")
	}

	err = s.UpdateStatus(ctx, "life", storage.StatusUpdate{
		Status:            storage.StatusRunning,
		Progress:          ptr(50.0),
		TotalKeywords:     ptr(8),
		KeywordsProcessed: ptr(4),
		FoundInfluencers:  ptr(2),
	})
	if err != nil {
		t.Fatalf("progress update failed: %v", err)
	}

	got, _ = s.GetTask(ctx, "life")
	if got.Progress != 50 || got.TotalKeywords != 8 || got.KeywordsProcessed != 4 || got.FoundInfluencers != 2 {
		t.Errorf("progress fields not applied: %+v", got)
	}
	if got.ProgressMessage != "starting search" {
		t.Errorf("unset message overwritten: %q", got.ProgressMessage)
	}

	err = s.UpdateStatus(ctx, "life", storage.StatusUpdate{
		Status:   storage.StatusCompleted,
		Progress: ptr(100.0),
	})
	if err != nil {
		t.Fatalf("running->completed failed: %v", err)
	}

	got, _ = s.GetTask(ctx, "life")
	if got.CompletedAt == nil {
		t.Error("CompletedAt not stamped on completion")
	}
}

func TestUpdateStatus_TerminalRejectsUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, newTask("term")); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "term", storage.StatusUpdate{Status: storage.StatusRunning}); err != nil {
		t.Fatalf("running transition failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "term", storage.StatusUpdate{Status: storage.StatusFailed, ErrorMessage: ptr("boom")}); err != nil {
		t.Fatalf("failed transition failed: %v", err)
	}

	err := s.UpdateStatus(ctx, "term", storage.StatusUpdate{Status: storage.StatusRunning})
	if !errors.Is(err, storage.ErrTerminal) {
		t.Errorf("expected ErrTerminal, got %v", err)
	}

	got, _ := s.GetTask(ctx, "term")
	if got.CompletedAt != nil {
		t.Error("failed task must not carry a completion timestamp")
	}
	if got.ErrorMessage != "boom" {
		t.Errorf("ErrorMessage = %q", got.ErrorMessage)
	}
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, newTask("skip")); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	// pending -> completed skips running
	if err := s.UpdateStatus(ctx, "skip", storage.StatusUpdate{Status: storage.StatusCompleted}); err == nil {
		t.Error("expected error for pending->completed")
	}
}

func TestSaveAndGetResults_OrderedBySubscribers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, newTask("res")); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	results := []*storage.InfluencerResult{
		{ChannelID: "small", ChannelName: "Small", ChannelURL: "u", SubscriberCount: 100,
			ProductReviewed: "Orbi 370", SearchKeyword: "k", VideoTitle: "t", VideoID: "v1",
			VideoURL: "u", VideoViewCount: 10, VideoPublishedAt: published},
		{ChannelID: "big", ChannelName: "Big", ChannelURL: "u", SubscriberCount: 90000,
			ProductReviewed: "Orbi 370", SearchKeyword: "k", VideoTitle: "t", VideoID: "v2",
			VideoURL: "u", VideoViewCount: 10, VideoPublishedAt: published},
		{ChannelID: "mid", ChannelName: "Mid", ChannelURL: "u", SubscriberCount: 5000,
			ProductReviewed: "Orbi 370", SearchKeyword: "k", VideoTitle: "t", VideoID: "v3",
			VideoURL: "u", VideoViewCount: 10, VideoPublishedAt: published},
	}

	if err := s.SaveResults(ctx, "res", results); err != nil {
		t.Fatalf("SaveResults failed: %v", err)
	}

	got, err := s.GetResults(ctx, "res")
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i, want := range []string{"big", "mid", "small"} {
		if got[i].ChannelID != want {
			t.Errorf("result[%d] = %s, want %s", i, got[i].ChannelID, want)
		}
	}
	if got[0].TaskID != "res" {
		t.Errorf("TaskID = %q, want res", got[0].TaskID)
	}
}

func TestListHistory_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		task := newTask(id)
		task.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask(%s) failed: %v", id, err)
		}
	}

	got, err := s.ListHistory(ctx, 2)
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got))
	}
	if got[0].ID != "new" || got[1].ID != "mid" {
		t.Errorf("wrong order: %s, %s", got[0].ID, got[1].ID)
	}
}
