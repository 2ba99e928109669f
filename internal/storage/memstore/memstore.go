package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RidgeOps/scout/internal/storage"
)

// ensure memStore implements storage.Store
var _ storage.Store = (*memStore)(nil)

// memStore keeps tasks and results in process memory. It backs tests and
// single-run deployments where durability is not needed.
type memStore struct {
	mu      sync.RWMutex
	tasks   map[string]*storage.Task
	results map[string][]*storage.InfluencerResult
	order   []string // task ids, creation order
}

// New creates an in-memory storage.Store.
func New() storage.Store {
	return &memStore{
		tasks:   make(map[string]*storage.Task),
		results: make(map[string][]*storage.InfluencerResult),
	}
}

func (s *memStore) CreateTask(ctx context.Context, task *storage.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return storage.ErrDuplicateID
	}

	cp := *task
	s.tasks[task.ID] = &cp
	s.order = append(s.order, task.ID)
	return nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, upd storage.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return storage.ErrNotFound
	}
	if task.Status.Terminal() {
		return storage.ErrTerminal
	}
	if !storage.CanTransition(task.Status, upd.Status) {
		return fmt.Errorf("illegal transition %s -> %s", task.Status, upd.Status)
	}

	storage.ApplyUpdate(task, upd, time.Now().UTC())
	return nil
}

func (s *memStore) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *task
	return &cp, nil
}

func (s *memStore) SaveResults(ctx context.Context, id string, results []*storage.InfluencerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return storage.ErrNotFound
	}

	for _, r := range results {
		cp := *r
		cp.TaskID = id
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		s.results[id] = append(s.results[id], &cp)
	}
	return nil
}

func (s *memStore) GetResults(ctx context.Context, id string) ([]*storage.InfluencerResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.results[id]
	results := make([]*storage.InfluencerResult, 0, len(stored))
	for _, r := range stored {
		cp := *r
		results = append(results, &cp)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SubscriberCount > results[j].SubscriberCount
	})
	return results, nil
}

func (s *memStore) ListHistory(ctx context.Context, limit int) ([]*storage.Task, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*storage.Task
	for i := len(s.order) - 1; i >= 0 && len(tasks) < limit; i-- {
		cp := *s.tasks[s.order[i]]
		tasks = append(tasks, &cp)
	}
	return tasks, nil
}

func (s *memStore) Close() error {
	return nil
}
