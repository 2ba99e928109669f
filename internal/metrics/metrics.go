package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_tasks_started_total",
			Help: "Total number of search tasks started",
		},
	)

	TasksFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_tasks_finished_total",
			Help: "Total number of search tasks reaching a terminal state",
		},
		[]string{"status"},
	)

	TaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scout_task_duration_seconds",
			Help:    "Wall-clock duration of completed search tasks",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	KeywordSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_keyword_searches_total",
			Help: "Total keyword searches issued, by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_upstream_calls_total",
			Help: "Total external platform lookups, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	InfluencersFoundTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_influencers_found_total",
			Help: "Total influencer results emitted across all tasks",
		},
	)

	DuplicatesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_duplicates_skipped_total",
			Help: "Videos skipped because their (channel, product) pair was already seen",
		},
	)
)

// RecordUpstream updates the call counter for one external lookup.
func RecordUpstream(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamCallsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordTaskFinished updates terminal-state counters and the duration
// histogram for one finished task.
func RecordTaskFinished(status string, duration time.Duration) {
	TasksFinishedTotal.WithLabelValues(status).Inc()
	TaskDuration.Observe(duration.Seconds())
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified address and exposes /metrics.
func Start(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
