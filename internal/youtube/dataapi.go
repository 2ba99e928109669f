package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// ensure DataAPI implements Client
var _ Client = (*DataAPI)(nil)

// Config configures the Data API v3 adapter.
type Config struct {
	APIKey  string
	BaseURL string        // defaults to the public API endpoint
	Timeout time.Duration // per-request; default 30s
	// CacheSize bounds the channel-info and video-stats LRU caches. The same
	// channels recur across keywords, so caching saves quota. 0 uses a default.
	CacheSize int
	// Transport overrides the HTTP transport (tests inject a mock here).
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// DataAPI is a Client backed by the YouTube Data API v3.
type DataAPI struct {
	cfg      Config
	client   *http.Client
	channels *lru.Cache[string, ChannelInfo]
	stats    *lru.Cache[string, VideoStats]
	logger   *slog.Logger
}

// NewDataAPI creates a Data API adapter. The API key is required.
func NewDataAPI(cfg Config) (*DataAPI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	channels, err := lru.New[string, ChannelInfo](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("channel cache: %w", err)
	}
	stats, err := lru.New[string, VideoStats](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("stats cache: %w", err)
	}

	return &DataAPI{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		channels: channels,
		stats:    stats,
		logger:   cfg.Logger,
	}, nil
}

// searchResponse mirrors the fields of search.list we consume.
type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			ChannelID   string    `json:"channelId"`
			Title       string    `json:"title"`
			Description string    `json:"description"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

// SearchVideos issues search.list for the query. Failures return an
// *UpstreamError; the caller treats the keyword as yielding zero videos.
func (a *DataAPI) SearchVideos(ctx context.Context, params SearchParams) ([]VideoRef, error) {
	q := url.Values{}
	q.Set("part", "id,snippet")
	q.Set("type", "video")
	q.Set("order", "relevance")
	q.Set("q", params.Query)
	if params.MaxResults > 0 {
		q.Set("maxResults", strconv.Itoa(params.MaxResults))
	}
	if !params.PublishedAfter.IsZero() {
		q.Set("publishedAfter", params.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if params.RegionCode != "" {
		q.Set("regionCode", params.RegionCode)
	}

	var resp searchResponse
	if err := a.get(ctx, "search", q, &resp); err != nil {
		return nil, &UpstreamError{Op: "search", Err: err}
	}

	refs := make([]VideoRef, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		refs = append(refs, VideoRef{
			VideoID:     item.ID.VideoID,
			ChannelID:   item.Snippet.ChannelID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			PublishedAt: item.Snippet.PublishedAt,
		})
	}
	return refs, nil
}

type videosResponse struct {
	Items []struct {
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// GetVideoStatistics issues videos.list for one video id. A response with no
// items yields Found=false and no error.
func (a *DataAPI) GetVideoStatistics(ctx context.Context, videoID string) (VideoStats, error) {
	if cached, ok := a.stats.Get(videoID); ok {
		return cached, nil
	}

	q := url.Values{}
	q.Set("part", "statistics")
	q.Set("id", videoID)

	var resp videosResponse
	if err := a.get(ctx, "videos", q, &resp); err != nil {
		return VideoStats{}, &UpstreamError{Op: "videos", Err: err}
	}

	if len(resp.Items) == 0 {
		return VideoStats{}, nil
	}

	stats := VideoStats{
		Found:     true,
		ViewCount: parseCount(resp.Items[0].Statistics.ViewCount),
	}
	a.stats.Add(videoID, stats)
	return stats, nil
}

type channelsResponse struct {
	Items []struct {
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Country     string `json:"country"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			ViewCount       string `json:"viewCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// GetChannelInfo issues channels.list for one channel id. A response with no
// items yields Found=false and no error.
func (a *DataAPI) GetChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error) {
	if cached, ok := a.channels.Get(channelID); ok {
		return cached, nil
	}

	q := url.Values{}
	q.Set("part", "snippet,statistics")
	q.Set("id", channelID)

	var resp channelsResponse
	if err := a.get(ctx, "channels", q, &resp); err != nil {
		return ChannelInfo{}, &UpstreamError{Op: "channels", Err: err}
	}

	if len(resp.Items) == 0 {
		return ChannelInfo{}, nil
	}

	item := resp.Items[0]
	info := ChannelInfo{
		Found:           true,
		Title:           item.Snippet.Title,
		Country:         item.Snippet.Country,
		Description:     item.Snippet.Description,
		SubscriberCount: parseCount(item.Statistics.SubscriberCount),
		ViewCount:       parseCount(item.Statistics.ViewCount),
		VideoCount:      parseCount(item.Statistics.VideoCount),
	}
	a.channels.Add(channelID, info)
	return info, nil
}

// ValidateKey issues a minimal one-result search to confirm the configured
// API key is accepted upstream.
func (a *DataAPI) ValidateKey(ctx context.Context) error {
	_, err := a.SearchVideos(ctx, SearchParams{Query: "test", MaxResults: 1})
	return err
}

func (a *DataAPI) get(ctx context.Context, resource string, q url.Values, out any) error {
	q.Set("key", a.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/"+resource+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", resource, err)
	}
	return nil
}

// parseCount parses the API's string-encoded counters; missing or hidden
// counters come back as 0.
func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
