// Package pipeline orchestrates one influencer search: keyword expansion,
// per-keyword video search, per-video eligibility classification, and
// cross-keyword deduplication, with progress reported after each keyword.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RidgeOps/scout/internal/classify"
	"github.com/RidgeOps/scout/internal/keywords"
	"github.com/RidgeOps/scout/internal/metrics"
	"github.com/RidgeOps/scout/internal/storage"
	"github.com/RidgeOps/scout/internal/youtube"
	"github.com/RidgeOps/scout/pkg/pacing"
)

// Progress is one immutable progress tick, emitted after each keyword.
type Progress struct {
	Message           string
	Percentage        float64
	KeywordsProcessed int
	TotalKeywords     int
	FoundInfluencers  int
}

// ProgressFunc receives progress ticks. It is called from the pipeline's
// goroutine; implementations should be quick or hand off.
type ProgressFunc func(Progress)

// Config provides parameters for one pipeline run.
type Config struct {
	ProductName    string
	MinSubscribers int64
	MinViewCount   int64

	Region             string // target region for the heuristic and search
	MaxResultsPerQuery int
	PublishedAfter     time.Time

	// Delays keep call rates under upstream limits. VideoDelay applies after
	// each per-video classification, KeywordDelay after each keyword's loop.
	VideoDelay   time.Duration
	KeywordDelay time.Duration

	OnProgress ProgressFunc
	Logger     *slog.Logger
}

// Summary reports the outcome of one pipeline run.
type Summary struct {
	ProductName      string
	KeywordsSearched int
	InfluencersFound int
}

// Pipeline runs a single search task. Not safe for reuse; create one per run.
type Pipeline struct {
	cfg          Config
	client       youtube.Client
	dedup        *DedupIndex
	results      []*storage.InfluencerResult
	videoPacer   *pacing.Pacer
	keywordPacer *pacing.Pacer
	logger       *slog.Logger
}

// New creates a pipeline for one task.
func New(client youtube.Client, cfg Config) *Pipeline {
	if cfg.Region == "" {
		cfg.Region = classify.DefaultRegion
	}
	if cfg.MaxResultsPerQuery <= 0 {
		cfg.MaxResultsPerQuery = 50
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		cfg:          cfg,
		client:       client,
		dedup:        NewDedupIndex(),
		videoPacer:   pacing.New(cfg.VideoDelay, 0),
		keywordPacer: pacing.New(cfg.KeywordDelay, 0),
		logger:       logger.With(slog.String("product", cfg.ProductName)),
	}
}

// Run executes the full keyword loop. It returns an error only on context
// cancellation; upstream failures are logged and skipped per call.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	phrases := keywords.Expand(p.cfg.ProductName)
	total := len(phrases)

	p.emit(Progress{
		Message:       fmt.Sprintf("generated %d search keywords", total),
		TotalKeywords: total,
	})

	for i, phrase := range phrases {
		p.logger.Info("searching keyword",
			slog.String("keyword", phrase),
			slog.Int("position", i+1),
			slog.Int("total", total))

		refs, err := p.client.SearchVideos(ctx, youtube.SearchParams{
			Query:          phrase,
			MaxResults:     p.cfg.MaxResultsPerQuery,
			PublishedAfter: p.cfg.PublishedAfter,
			RegionCode:     p.cfg.Region,
		})
		metrics.RecordUpstream("search", err)
		if err != nil {
			// Non-fatal: the keyword yields zero videos.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("search failed", slog.String("keyword", phrase), slog.Any("error", err))
			metrics.KeywordSearchesTotal.WithLabelValues("error").Inc()
		} else {
			metrics.KeywordSearchesTotal.WithLabelValues("ok").Inc()
		}

		for _, ref := range refs {
			if err := p.processVideo(ctx, ref, phrase); err != nil {
				return nil, err
			}
			if err := p.videoPacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		processed := i + 1
		p.emit(Progress{
			Message:           fmt.Sprintf("searched keyword %q", phrase),
			Percentage:        float64(processed) / float64(total) * 100,
			KeywordsProcessed: processed,
			TotalKeywords:     total,
			FoundInfluencers:  len(p.results),
		})

		if processed < total {
			if err := p.keywordPacer.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}

	return &Summary{
		ProductName:      p.cfg.ProductName,
		KeywordsSearched: total,
		InfluencersFound: len(p.results),
	}, nil
}

// processVideo classifies one search result. Only context cancellation is
// returned as an error; every other failure skips the video.
func (p *Pipeline) processVideo(ctx context.Context, ref youtube.VideoRef, keyword string) error {
	// Dedup before the expensive lookups: the channel id is already in the
	// search result.
	key := p.dedup.Key(ref.ChannelID, p.cfg.ProductName)
	if p.dedup.Seen(key) {
		metrics.DuplicatesSkippedTotal.Inc()
		return nil
	}

	stats, err := p.client.GetVideoStatistics(ctx, ref.VideoID)
	metrics.RecordUpstream("videos", err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("video statistics lookup failed", slog.String("video_id", ref.VideoID), slog.Any("error", err))
		return nil
	}
	if !stats.Found {
		return nil
	}

	info, err := p.client.GetChannelInfo(ctx, ref.ChannelID)
	metrics.RecordUpstream("channels", err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("channel lookup failed", slog.String("channel_id", ref.ChannelID), slog.Any("error", err))
		return nil
	}
	if !info.Found {
		return nil
	}

	if !classify.IsInRegion(info.Country, info.Description, info.Title, p.cfg.Region) {
		return nil
	}

	if !classify.IsInfluencer(info.SubscriberCount, stats.ViewCount, p.cfg.MinSubscribers, p.cfg.MinViewCount) {
		return nil
	}

	p.dedup.Mark(key)
	p.results = append(p.results, &storage.InfluencerResult{
		ChannelName:        info.Title,
		ChannelID:          ref.ChannelID,
		ChannelURL:         "https://www.youtube.com/channel/" + ref.ChannelID,
		ChannelCountry:     channelCountry(info.Country, p.cfg.Region),
		SubscriberCount:    info.SubscriberCount,
		ProductReviewed:    p.cfg.ProductName,
		SearchKeyword:      keyword,
		VideoTitle:         ref.Title,
		VideoID:            ref.VideoID,
		VideoURL:           "https://www.youtube.com/watch?v=" + ref.VideoID,
		VideoViewCount:     stats.ViewCount,
		VideoPublishedAt:   ref.PublishedAt,
		VideoDescription:   truncate(ref.Description, 200),
		TotalChannelViews:  info.ViewCount,
		TotalChannelVideos: info.VideoCount,
		CreatedAt:          time.Now().UTC(),
	})
	metrics.InfluencersFoundTotal.Inc()

	p.logger.Info("influencer found",
		slog.String("channel", info.Title),
		slog.Int64("subscribers", info.SubscriberCount),
		slog.Int64("video_views", stats.ViewCount))

	return nil
}

// Results returns the results accumulated so far, in discovery order.
func (p *Pipeline) Results() []*storage.InfluencerResult {
	return p.results
}

func (p *Pipeline) emit(progress Progress) {
	if p.cfg.OnProgress != nil {
		p.cfg.OnProgress(progress)
	}
}

// channelCountry echoes the declared country, falling back to the target
// region for channels admitted by the text heuristic or optimistic default.
func channelCountry(declared, region string) string {
	if declared == "" {
		return region
	}
	return declared
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
