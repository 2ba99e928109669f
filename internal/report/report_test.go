package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/RidgeOps/scout/internal/storage"
)

func sampleTask() *storage.Task {
	return &storage.Task{
		ID:            "t1",
		ProductName:   "Orbi 370",
		Status:        storage.StatusCompleted,
		TotalKeywords: 8,
	}
}

func sampleResults() []*storage.InfluencerResult {
	// subscriber-count descending, matching GetResults order
	return []*storage.InfluencerResult{
		{ChannelID: "c1", ChannelName: "Alpha", SubscriberCount: 90000, VideoViewCount: 40000, ProductReviewed: "Orbi 370"},
		{ChannelID: "c2", ChannelName: "Beta", SubscriberCount: 60000, VideoViewCount: 20000, ProductReviewed: "Orbi 370"},
		{ChannelID: "c1", ChannelName: "Alpha", SubscriberCount: 90000, VideoViewCount: 10000, ProductReviewed: "Orbi 370"},
		{ChannelID: "c3", ChannelName: "Gamma", SubscriberCount: 30000, VideoViewCount: 6000, ProductReviewed: "Orbi 370"},
	}
}

func TestBuildSummary(t *testing.T) {
	s := BuildSummary(sampleTask(), sampleResults())

	if s.ProductName != "Orbi 370" || s.Status != "completed" {
		t.Errorf("header fields wrong: %+v", s)
	}
	if s.TotalInfluencers != 4 {
		t.Errorf("TotalInfluencers = %d, want 4", s.TotalInfluencers)
	}
	if s.KeywordsSearched != 8 {
		t.Errorf("KeywordsSearched = %d, want 8", s.KeywordsSearched)
	}
	if s.UniqueChannels != 3 {
		t.Errorf("UniqueChannels = %d, want 3", s.UniqueChannels)
	}
	if s.AvgSubscriberCount != (90000+60000+90000+30000)/4 {
		t.Errorf("AvgSubscriberCount = %d", s.AvgSubscriberCount)
	}
	if s.MaxSubscriberCount != 90000 {
		t.Errorf("MaxSubscriberCount = %d", s.MaxSubscriberCount)
	}
	if s.AvgVideoViewCount != (40000+20000+10000+6000)/4 {
		t.Errorf("AvgVideoViewCount = %d", s.AvgVideoViewCount)
	}
	if s.MaxVideoViewCount != 40000 {
		t.Errorf("MaxVideoViewCount = %d", s.MaxVideoViewCount)
	}
	if len(s.TopChannels) != 4 {
		t.Fatalf("TopChannels length = %d, want 4", len(s.TopChannels))
	}
	if s.TopChannels[0].ChannelName != "Alpha" || s.TopChannels[0].SubscriberCount != 90000 {
		t.Errorf("TopChannels[0] = %+v", s.TopChannels[0])
	}
}

func TestBuildSummary_TopNCapped(t *testing.T) {
	var results []*storage.InfluencerResult
	for i := 0; i < 8; i++ {
		results = append(results, &storage.InfluencerResult{
			ChannelID:       string(rune('a' + i)),
			ChannelName:     "Channel",
			SubscriberCount: int64(100000 - i*1000),
		})
	}

	s := BuildSummary(sampleTask(), results)
	if len(s.TopChannels) != 5 {
		t.Errorf("TopChannels length = %d, want 5", len(s.TopChannels))
	}
}

func TestBuildSummary_Empty(t *testing.T) {
	s := BuildSummary(sampleTask(), nil)

	if s.TotalInfluencers != 0 || s.UniqueChannels != 0 {
		t.Errorf("counts nonzero for empty results: %+v", s)
	}
	if s.AvgSubscriberCount != 0 || s.MaxVideoViewCount != 0 {
		t.Errorf("stats nonzero for empty results: %+v", s)
	}
	if s.TopChannels == nil {
		t.Error("TopChannels should be an empty slice, not nil")
	}
}

func TestWriteCSV(t *testing.T) {
	published := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	results := []*storage.InfluencerResult{{
		ChannelName:        "Alpha",
		ChannelID:          "c1",
		ChannelURL:         "https://www.youtube.com/channel/c1",
		ChannelCountry:     "US",
		SubscriberCount:    90000,
		ProductReviewed:    "Orbi 370",
		SearchKeyword:      "Orbi 370 review",
		VideoTitle:         "Orbi 370 review, is it worth it?",
		VideoID:            "v1",
		VideoURL:           "https://www.youtube.com/watch?v=v1",
		VideoViewCount:     40000,
		VideoPublishedAt:   published,
		VideoDescription:   "hands-on",
		TotalChannelViews:  1200000,
		TotalChannelVideos: 250,
	}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, results); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d records", len(records))
	}
	if len(records[0]) != 15 {
		t.Errorf("header has %d columns, want 15", len(records[0]))
	}
	if records[0][0] != "channel_name" || records[0][14] != "total_channel_videos" {
		t.Errorf("unexpected header order: %v", records[0])
	}

	row := records[1]
	if row[0] != "Alpha" || row[4] != "90000" || row[11] != "2024-05-01T10:30:00Z" {
		t.Errorf("unexpected row: %v", row)
	}
}
