// Package classify holds the eligibility heuristics: the influencer
// threshold check and the best-effort region inference.
package classify

import "strings"

// DefaultRegion is the target region when none is configured.
const DefaultRegion = "US"

// usIndicators mark a channel as in-region when found in its text.
var usIndicators = []string{
	"usa", "united states", "america", "us based", "california",
	"new york", "texas", "florida", "washington", "oregon",
}

// nonUSIndicators mark a channel as out-of-region when no positive
// indicator matched first.
var nonUSIndicators = []string{
	"uk", "canada", "australia", "germany", "france",
	"spain", "italy", "japan", "korea", "china", "india",
}

// IsInfluencer reports whether a channel/video pair meets either threshold.
// Either alone suffices: large established channels pass on subscribers,
// smaller channels with a viral video pass on views.
func IsInfluencer(subscriberCount, viewCount, minSubscribers, minViewCount int64) bool {
	return subscriberCount >= minSubscribers || viewCount >= minViewCount
}

// IsInRegion infers whether a channel belongs to the target region from its
// declared country code and the text of its description and title. The
// ordering is fixed: explicit country code, then positive text indicators,
// then negative text indicators, then an optimistic default. Ambiguity
// resolves toward inclusion.
func IsInRegion(countryCode, description, title, targetRegion string) bool {
	if countryCode == targetRegion {
		return true
	}

	text := strings.ToLower(description) + " " + strings.ToLower(title)

	for _, indicator := range usIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}

	for _, indicator := range nonUSIndicators {
		if strings.Contains(text, indicator) {
			return false
		}
	}

	// No declared country and no textual signal either way.
	return countryCode == ""
}
