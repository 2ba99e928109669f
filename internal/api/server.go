// Package api exposes the HTTP surface: task creation, status and result
// polling, search history, CSV download, and key validation. Task creation
// returns immediately; the pipeline runs in the background.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RidgeOps/scout/internal/report"
	"github.com/RidgeOps/scout/internal/storage"
	"github.com/RidgeOps/scout/internal/task"
)

// KeyValidator probes whether an API key is accepted upstream.
type KeyValidator func(ctx context.Context, apiKey string) error

// Config provides server settings. ValidateKey may be nil, disabling the
// validate-key route.
type Config struct {
	Addr        string
	ValidateKey KeyValidator

	// Thresholds applied when a search request omits them. Zero means
	// 10000 subscribers and 5000 views.
	MinSubscribers int64
	MinViewCount   int64

	Logger *slog.Logger
}

// Server handles the JSON API.
type Server struct {
	store       storage.Store
	runner      *task.Runner
	validateKey KeyValidator
	minSubs     int64
	minViews    int64
	logger      *slog.Logger
	srv         *http.Server
}

// New creates an API server over the given store and runner.
func New(cfg Config, store storage.Store, runner *task.Runner) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MinSubscribers <= 0 {
		cfg.MinSubscribers = 10000
	}
	if cfg.MinViewCount <= 0 {
		cfg.MinViewCount = 5000
	}

	s := &Server{
		store:       store,
		runner:      runner,
		validateKey: cfg.ValidateKey,
		minSubs:     cfg.MinSubscribers,
		minViews:    cfg.MinViewCount,
		logger:      cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/status/{id}", s.handleStatus)
	mux.HandleFunc("GET /api/results/{id}", s.handleResults)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/download/{id}", s.handleDownload)
	mux.HandleFunc("POST /api/validate-key", s.handleValidateKey)
	mux.HandleFunc("GET /api/running", s.handleRunning)

	s.srv = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	return s
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server failed", slog.Any("error", err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

type searchRequest struct {
	ProductName    string `json:"product_name"`
	APIKey         string `json:"api_key"`
	MinSubscribers int64  `json:"min_subscribers"`
	MinViewCount   int64  `json:"min_view_count"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.MinSubscribers == 0 {
		req.MinSubscribers = s.minSubs
	}
	if req.MinViewCount == 0 {
		req.MinViewCount = s.minViews
	}

	id, err := s.runner.StartTask(r.Context(), task.Request{
		ProductName:    strings.TrimSpace(req.ProductName),
		APIKey:         strings.TrimSpace(req.APIKey),
		MinSubscribers: req.MinSubscribers,
		MinViewCount:   req.MinViewCount,
	})
	if err != nil {
		var verr *task.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.Error("start task failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not create task")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"task_id": id,
		"message": fmt.Sprintf("search task started: %s", req.ProductName),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTask(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  taskJSON(t),
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTask(w, r)
	if !ok {
		return
	}

	results, err := s.store.GetResults(r.Context(), t.ID)
	if err != nil {
		s.logger.Error("get results failed", slog.String("task_id", t.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not load results")
		return
	}

	items := make([]map[string]any, 0, len(results))
	for _, res := range results {
		items = append(items, resultJSON(res))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"task_status": taskJSON(t),
		"summary":     report.BuildSummary(t, results),
		"results":     items,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	tasks, err := s.store.ListHistory(r.Context(), limit)
	if err != nil {
		s.logger.Error("list history failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}

	items := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, map[string]any{
			"task_id":           t.ID,
			"product_name":      t.ProductName,
			"status":            string(t.Status),
			"found_influencers": t.FoundInfluencers,
			"created_at":        t.CreatedAt.UTC().Format(time.RFC3339),
			"completed_at":      timeOrNil(t.CompletedAt),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": items,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTask(w, r)
	if !ok {
		return
	}

	results, err := s.store.GetResults(r.Context(), t.ID)
	if err != nil {
		s.logger.Error("get results failed", slog.String("task_id", t.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not load results")
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "no results for task")
		return
	}

	shortID := t.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	filename := fmt.Sprintf("influencers_%s_%s.csv",
		strings.ReplaceAll(t.ProductName, " ", "_"), shortID)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := report.WriteCSV(w, results); err != nil {
		s.logger.Error("csv export failed", slog.String("task_id", t.ID), slog.Any("error", err))
	}
}

func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	if s.validateKey == nil {
		writeError(w, http.StatusNotImplemented, "key validation not configured")
		return
	}

	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": "api key must not be empty"})
		return
	}

	if err := s.validateKey(r.Context(), apiKey); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Server) handleRunning(w http.ResponseWriter, r *http.Request) {
	running := s.runner.Running()

	items := make([]map[string]any, 0, len(running))
	for _, rt := range running {
		item := map[string]any{
			"task_id":      rt.TaskID,
			"product_name": rt.ProductName,
			"started_at":   rt.StartedAt.UTC().Format(time.RFC3339),
		}
		if t, err := s.store.GetTask(r.Context(), rt.TaskID); err == nil {
			item["status"] = string(t.Status)
			item["progress"] = t.Progress
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"running_tasks": items,
	})
}

// lookupTask resolves the {id} path value, writing 404 on a missing task.
func (s *Server) lookupTask(w http.ResponseWriter, r *http.Request) (*storage.Task, bool) {
	id := r.PathValue("id")

	t, err := s.store.GetTask(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get task failed", slog.String("task_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not load task")
		return nil, false
	}

	return t, true
}

func taskJSON(t *storage.Task) map[string]any {
	return map[string]any{
		"task_id":            t.ID,
		"product_name":       t.ProductName,
		"status":             string(t.Status),
		"progress":           t.Progress,
		"progress_message":   t.ProgressMessage,
		"total_keywords":     t.TotalKeywords,
		"keywords_processed": t.KeywordsProcessed,
		"found_influencers":  t.FoundInfluencers,
		"created_at":         t.CreatedAt.UTC().Format(time.RFC3339),
		"started_at":         timeOrNil(t.StartedAt),
		"completed_at":       timeOrNil(t.CompletedAt),
		"error_message":      t.ErrorMessage,
	}
}

func resultJSON(r *storage.InfluencerResult) map[string]any {
	return map[string]any{
		"channel_name":         r.ChannelName,
		"channel_id":           r.ChannelID,
		"channel_url":          r.ChannelURL,
		"channel_country":      r.ChannelCountry,
		"subscriber_count":     r.SubscriberCount,
		"product_reviewed":     r.ProductReviewed,
		"search_keyword":       r.SearchKeyword,
		"video_title":          r.VideoTitle,
		"video_id":             r.VideoID,
		"video_url":            r.VideoURL,
		"video_view_count":     r.VideoViewCount,
		"video_published_at":   r.VideoPublishedAt.UTC().Format(time.RFC3339),
		"video_description":    r.VideoDescription,
		"total_channel_views":  r.TotalChannelViews,
		"total_channel_videos": r.TotalChannelVideos,
	}
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
