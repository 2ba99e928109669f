package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RidgeOps/scout/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresStore implements storage.Store
var _ storage.Store = (*postgresStore)(nil)

type postgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS search_tasks (
	task_id TEXT PRIMARY KEY,
	product_name TEXT NOT NULL,
	api_key_hash TEXT NOT NULL,
	min_subscribers BIGINT NOT NULL,
	min_view_count BIGINT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	progress DOUBLE PRECISION NOT NULL DEFAULT 0,
	progress_message TEXT NOT NULL DEFAULT '',
	total_keywords INTEGER NOT NULL DEFAULT 0,
	keywords_processed INTEGER NOT NULL DEFAULT 0,
	found_influencers INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS influencer_results (
	id BIGSERIAL PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES search_tasks (task_id),
	channel_name TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	channel_url TEXT NOT NULL,
	channel_country TEXT,
	subscriber_count BIGINT NOT NULL,
	product_reviewed TEXT NOT NULL,
	search_keyword TEXT NOT NULL,
	video_title TEXT NOT NULL,
	video_id TEXT NOT NULL,
	video_url TEXT NOT NULL,
	video_view_count BIGINT NOT NULL,
	video_published_at TIMESTAMPTZ NOT NULL,
	video_description TEXT,
	total_channel_views BIGINT,
	total_channel_videos BIGINT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_task_id ON influencer_results (task_id);
CREATE INDEX IF NOT EXISTS idx_results_channel_id ON influencer_results (channel_id);
CREATE INDEX IF NOT EXISTS idx_results_product ON influencer_results (product_reviewed);
`

// New creates a new Postgres-backed storage.Store.
func New(ctx context.Context, dsn string) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) CreateTask(ctx context.Context, task *storage.Task) error {
	query := `
	INSERT INTO search_tasks (
		task_id, product_name, api_key_hash, min_subscribers, min_view_count,
		status, progress, progress_message, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
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
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrDuplicateID
		}
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

func (s *postgresStore) UpdateStatus(ctx context.Context, id string, upd storage.StatusUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM search_tasks WHERE task_id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
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

	sets := []string{"status = $1"}
	args := []any{string(upd.Status)}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Progress != nil {
		add("progress", *upd.Progress)
	}
	if upd.Message != nil {
		add("progress_message", *upd.Message)
	}
	if upd.TotalKeywords != nil {
		add("total_keywords", *upd.TotalKeywords)
	}
	if upd.KeywordsProcessed != nil {
		add("keywords_processed", *upd.KeywordsProcessed)
	}
	if upd.FoundInfluencers != nil {
		add("found_influencers", *upd.FoundInfluencers)
	}
	if upd.ErrorMessage != nil {
		add("error_message", *upd.ErrorMessage)
	}

	now := time.Now().UTC()
	if from == storage.StatusPending && upd.Status == storage.StatusRunning {
		add("started_at", now)
	}
	if upd.Status == storage.StatusCompleted {
		add("completed_at", now)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE search_tasks SET %s WHERE task_id = $%d", strings.Join(sets, ", "), len(args))
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}

	return nil
}

const taskColumns = `task_id, product_name, api_key_hash, min_subscribers, min_view_count,
	status, progress, progress_message, total_keywords, keywords_processed,
	found_influencers, created_at, started_at, completed_at, error_message`

func scanTask(row pgx.Row) (*storage.Task, error) {
	var t storage.Task
	var status string

	err := row.Scan(
		&t.ID, &t.ProductName, &t.APIKeyHash, &t.MinSubscribers, &t.MinViewCount,
		&status, &t.Progress, &t.ProgressMessage, &t.TotalKeywords, &t.KeywordsProcessed,
		&t.FoundInfluencers, &t.CreatedAt, &t.StartedAt, &t.CompletedAt, &t.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	t.Status = storage.TaskStatus(status)
	return &t, nil
}

func (s *postgresStore) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM search_tasks WHERE task_id = $1`, taskColumns)
	t, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *postgresStore) SaveResults(ctx context.Context, id string, results []*storage.InfluencerResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO influencer_results (
		task_id, channel_name, channel_id, channel_url, channel_country,
		subscriber_count, product_reviewed, search_keyword, video_title,
		video_id, video_url, video_view_count, video_published_at,
		video_description, total_channel_views, total_channel_videos, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	for _, r := range results {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, query,
			id, r.ChannelName, r.ChannelID, r.ChannelURL, r.ChannelCountry,
			r.SubscriberCount, r.ProductReviewed, r.SearchKeyword, r.VideoTitle,
			r.VideoID, r.VideoURL, r.VideoViewCount, r.VideoPublishedAt,
			r.VideoDescription, r.TotalChannelViews, r.TotalChannelVideos, createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	return nil
}

func (s *postgresStore) GetResults(ctx context.Context, id string) ([]*storage.InfluencerResult, error) {
	query := `
	SELECT task_id, channel_name, channel_id, channel_url, channel_country,
		subscriber_count, product_reviewed, search_keyword, video_title,
		video_id, video_url, video_view_count, video_published_at,
		video_description, total_channel_views, total_channel_videos, created_at
	FROM influencer_results
	WHERE task_id = $1
	ORDER BY subscriber_count DESC
	`

	rows, err := s.pool.Query(ctx, query, id)
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

func (s *postgresStore) ListHistory(ctx context.Context, limit int) ([]*storage.Task, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM search_tasks ORDER BY created_at DESC LIMIT $1`, taskColumns)
	rows, err := s.pool.Query(ctx, query, limit)
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

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
