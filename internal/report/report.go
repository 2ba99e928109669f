// Package report aggregates a task's stored results into summary statistics
// and exports them as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/RidgeOps/scout/internal/storage"
)

// TopChannel is one entry of a summary's top-N list.
type TopChannel struct {
	ChannelName     string `json:"channel_name"`
	SubscriberCount int64  `json:"subscriber_count"`
	ProductReviewed string `json:"product_reviewed"`
}

// Summary contains aggregated statistics over one task's results.
type Summary struct {
	ProductName        string       `json:"product_name"`
	Status             string       `json:"status"`
	TotalInfluencers   int          `json:"total_influencers"`
	KeywordsSearched   int          `json:"keywords_searched"`
	UniqueChannels     int          `json:"unique_channels"`
	AvgSubscriberCount int64        `json:"avg_subscriber_count"`
	MaxSubscriberCount int64        `json:"max_subscriber_count"`
	AvgVideoViewCount  int64        `json:"avg_video_view_count"`
	MaxVideoViewCount  int64        `json:"max_video_view_count"`
	TopChannels        []TopChannel `json:"top_channels"`
}

// topN is how many channels the summary lists, by subscriber count.
const topN = 5

// BuildSummary computes summary statistics from a task and its stored rows.
// Rows are expected in subscriber-count descending order, as GetResults
// returns them.
func BuildSummary(task *storage.Task, results []*storage.InfluencerResult) Summary {
	s := Summary{
		ProductName:      task.ProductName,
		Status:           string(task.Status),
		TotalInfluencers: len(results),
		KeywordsSearched: task.TotalKeywords,
		TopChannels:      []TopChannel{},
	}

	if len(results) == 0 {
		return s
	}

	channels := make(map[string]struct{}, len(results))
	var subSum, viewSum int64

	for _, r := range results {
		channels[r.ChannelID] = struct{}{}
		subSum += r.SubscriberCount
		viewSum += r.VideoViewCount
		if r.SubscriberCount > s.MaxSubscriberCount {
			s.MaxSubscriberCount = r.SubscriberCount
		}
		if r.VideoViewCount > s.MaxVideoViewCount {
			s.MaxVideoViewCount = r.VideoViewCount
		}
	}

	s.UniqueChannels = len(channels)
	s.AvgSubscriberCount = subSum / int64(len(results))
	s.AvgVideoViewCount = viewSum / int64(len(results))

	for i, r := range results {
		if i == topN {
			break
		}
		s.TopChannels = append(s.TopChannels, TopChannel{
			ChannelName:     r.ChannelName,
			SubscriberCount: r.SubscriberCount,
			ProductReviewed: r.ProductReviewed,
		})
	}

	return s
}

// csvHeaders defines the CSV column order for exports.
var csvHeaders = []string{
	"channel_name",
	"channel_id",
	"channel_url",
	"channel_country",
	"subscriber_count",
	"product_reviewed",
	"search_keyword",
	"video_title",
	"video_id",
	"video_url",
	"video_view_count",
	"video_published_at",
	"video_description",
	"total_channel_views",
	"total_channel_videos",
}

// WriteCSV writes results to w in the export column order.
func WriteCSV(w io.Writer, results []*storage.InfluencerResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}

	for _, r := range results {
		record := []string{
			r.ChannelName,
			r.ChannelID,
			r.ChannelURL,
			r.ChannelCountry,
			strconv.FormatInt(r.SubscriberCount, 10),
			r.ProductReviewed,
			r.SearchKeyword,
			r.VideoTitle,
			r.VideoID,
			r.VideoURL,
			strconv.FormatInt(r.VideoViewCount, 10),
			r.VideoPublishedAt.UTC().Format(time.RFC3339),
			r.VideoDescription,
			strconv.FormatInt(r.TotalChannelViews, 10),
			strconv.FormatInt(r.TotalChannelVideos, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}
