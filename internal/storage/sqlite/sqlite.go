package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/RidgeOps/scout/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteStore implements storage.Store
var _ storage.Store = (*sqliteStore)(nil)

type sqliteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS search_tasks (
	task_id TEXT PRIMARY KEY,
	product_name TEXT NOT NULL,
	api_key_hash TEXT NOT NULL,
	min_subscribers INTEGER NOT NULL,
	min_view_count INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	progress REAL NOT NULL DEFAULT 0,
	progress_message TEXT NOT NULL DEFAULT '',
	total_keywords INTEGER NOT NULL DEFAULT 0,
	keywords_processed INTEGER NOT NULL DEFAULT 0,
	found_influencers INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	started_at DATETIME,
	completed_at DATETIME,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS influencer_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	channel_name TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	channel_url TEXT NOT NULL,
	channel_country TEXT,
	subscriber_count INTEGER NOT NULL,
	product_reviewed TEXT NOT NULL,
	search_keyword TEXT NOT NULL,
	video_title TEXT NOT NULL,
	video_id TEXT NOT NULL,
	video_url TEXT NOT NULL,
	video_view_count INTEGER NOT NULL,
	video_published_at DATETIME NOT NULL,
	video_description TEXT,
	total_channel_views INTEGER,
	total_channel_videos INTEGER,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (task_id) REFERENCES search_tasks (task_id)
);

CREATE INDEX IF NOT EXISTS idx_results_task_id ON influencer_results (task_id);
CREATE INDEX IF NOT EXISTS idx_results_channel_id ON influencer_results (channel_id);
CREATE INDEX IF NOT EXISTS idx_results_product ON influencer_results (product_reviewed);
`

// New creates a new SQLite-backed storage.Store.
func New(dsn string) (storage.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// modernc sqlite allows one writer; a single connection serializes
	// writes from concurrent task runners.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) CreateTask(ctx context.Context, task *storage.Task) error {
	query := `
	INSERT INTO search_tasks (
		task_id, product_name, api_key_hash, min_subscribers, min_view_count,
		status, progress, progress_message, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.ProductName,
		task.APIKeyHash,
		task.MinSubscribers,
		task.MinViewCount,
		string(task.Status),
		task.Progress,
		task.ProgressMessage,
		task.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrDuplicateID
		}
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, id string, upd storage.StatusUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM search_tasks WHERE task_id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	from := storage.TaskStatus(current)
	if from.Terminal() {
		return storage.ErrTerminal
	}
	if !storage.CanTransition(from, upd.Status) {
		return fmt.Errorf("illegal transition %s -> %s", from, upd.Status)
	}

	sets := []string{"status = ?"}
	args := []any{string(upd.Status)}

	if upd.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, *upd.Progress)
	}
	if upd.Message != nil {
		sets = append(sets, "progress_message = ?")
		args = append(args, *upd.Message)
	}
	if upd.TotalKeywords != nil {
		sets = append(sets, "total_keywords = ?")
		args = append(args, *upd.TotalKeywords)
	}
	if upd.KeywordsProcessed != nil {
		sets = append(sets, "keywords_processed = ?")
		args = append(args, *upd.KeywordsProcessed)
	}
	if upd.FoundInfluencers != nil {
		sets = append(sets, "found_influencers = ?")
		args = append(args, *upd.FoundInfluencers)
	}
	if upd.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *upd.ErrorMessage)
	}

	now := time.Now().UTC()
	if from == storage.StatusPending && upd.Status == storage.StatusRunning {
		sets = append(sets, "started_at = ?")
		args = append(args, now)
	}
	if upd.Status == storage.StatusCompleted {
		sets = append(sets, "completed_at = ?")
		args = append(args, now)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE search_tasks SET %s WHERE task_id = ?", strings.Join(sets, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}

	return nil
}

const taskColumns = `task_id, product_name, api_key_hash, min_subscribers, min_view_count,
	status, progress, progress_message, total_keywords, keywords_processed,
	found_influencers, created_at, started_at, completed_at, error_message`

func scanTask(row interface{ Scan(...any) error }) (*storage.Task, error) {
	var t storage.Task
	var status string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.ProductName, &t.APIKeyHash, &t.MinSubscribers, &t.MinViewCount,
		&status, &t.Progress, &t.ProgressMessage, &t.TotalKeywords, &t.KeywordsProcessed,
		&t.FoundInfluencers, &t.CreatedAt, &startedAt, &completedAt, &t.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	t.Status = storage.TaskStatus(status)
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func (s *sqliteStore) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM search_tasks WHERE task_id = ?`, taskColumns)
	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *sqliteStore) SaveResults(ctx context.Context, id string, results []*storage.InfluencerResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO influencer_results (
		task_id, channel_name, channel_id, channel_url, channel_country,
		subscriber_count, product_reviewed, search_keyword, video_title,
		video_id, video_url, video_view_count, video_published_at,
		video_description, total_channel_views, total_channel_videos, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, r := range results {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, query,
			id, r.ChannelName, r.ChannelID, r.ChannelURL, r.ChannelCountry,
			r.SubscriberCount, r.ProductReviewed, r.SearchKeyword, r.VideoTitle,
			r.VideoID, r.VideoURL, r.VideoViewCount, r.VideoPublishedAt,
			r.VideoDescription, r.TotalChannelViews, r.TotalChannelVideos, createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	return nil
}

func (s *sqliteStore) GetResults(ctx context.Context, id string) ([]*storage.InfluencerResult, error) {
	query := `
	SELECT task_id, channel_name, channel_id, channel_url, channel_country,
		subscriber_count, product_reviewed, search_keyword, video_title,
		video_id, video_url, video_view_count, video_published_at,
		video_description, total_channel_views, total_channel_videos, created_at
	FROM influencer_results
	WHERE task_id = ?
	ORDER BY subscriber_count DESC
	`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []*storage.InfluencerResult
	for rows.Next() {
		var r storage.InfluencerResult
		err := rows.Scan(
			&r.TaskID, &r.ChannelName, &r.ChannelID, &r.ChannelURL, &r.ChannelCountry,
			&r.SubscriberCount, &r.ProductReviewed, &r.SearchKeyword, &r.VideoTitle,
			&r.VideoID, &r.VideoURL, &r.VideoViewCount, &r.VideoPublishedAt,
			&r.VideoDescription, &r.TotalChannelViews, &r.TotalChannelVideos, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	return results, nil
}

func (s *sqliteStore) ListHistory(ctx context.Context, limit int) ([]*storage.Task, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM search_tasks ORDER BY created_at DESC LIMIT ?`, taskColumns)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var tasks []*storage.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return tasks, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
