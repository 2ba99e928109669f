// Package youtube is the only component that crosses the process boundary
// to the video platform. It exposes the three lookups the pipeline needs
// and contains no eligibility logic.
package youtube

import (
	"context"
	"fmt"
	"time"
)

// VideoRef is one video returned by a search query.
type VideoRef struct {
	VideoID     string
	ChannelID   string
	Title       string
	Description string
	PublishedAt time.Time
}

// VideoStats carries per-video statistics. Found is false when the lookup
// returned no item; callers skip the video in that case.
type VideoStats struct {
	Found     bool
	ViewCount int64
}

// ChannelInfo carries channel metadata and lifetime statistics. Found is
// false when the lookup returned no item.
type ChannelInfo struct {
	Found           bool
	Title           string
	Country         string
	Description     string
	SubscriberCount int64
	ViewCount       int64
	VideoCount      int64
}

// SearchParams bound a search query.
type SearchParams struct {
	Query          string
	MaxResults     int
	PublishedAfter time.Time
	RegionCode     string
}

// Client abstracts the external video platform lookups consumed by the
// pipeline. All three calls are independent single-shot lookups; adapters
// may cache or retry internally.
type Client interface {
	SearchVideos(ctx context.Context, params SearchParams) ([]VideoRef, error)
	GetVideoStatistics(ctx context.Context, videoID string) (VideoStats, error)
	GetChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error)
}

// UpstreamError wraps a transport, auth, or quota failure from the platform.
// It is non-fatal per call: the pipeline logs it and continues.
type UpstreamError struct {
	Op  string // "search", "videos", "channels"
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
