package pipeline

import "strings"

// DedupIndex tracks which (channel, product) pairs have already produced a
// result within one pipeline run. It is scoped to a single run and accessed
// by a single goroutine, so it needs no locking.
type DedupIndex struct {
	seen map[string]struct{}
}

// NewDedupIndex creates an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{seen: make(map[string]struct{})}
}

// Key builds the composite dedup key for a channel and product.
func (d *DedupIndex) Key(channelID, productName string) string {
	return channelID + "_" + strings.ReplaceAll(productName, " ", "_")
}

// Seen reports whether the key has been marked.
func (d *DedupIndex) Seen(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Mark records the key.
func (d *DedupIndex) Mark(key string) {
	d.seen[key] = struct{}{}
}
