// Package keywords turns a raw product name into the ordered, deduplicated
// list of search phrases the pipeline will issue against the video platform.
package keywords

import "strings"

// baseTemplates are applied to the full product name, in order.
var baseTemplates = []string{
	"%s review",
	"%s unboxing",
	"%s test",
	"%s wifi router review",
	"%s mesh router review",
}

// brands that commonly prefix router product names. Only the first match is
// stripped when deriving brand/model variants.
var brands = []string{"eero", "netgear", "asus", "tp-link", "linksys", "google", "amazon"}

// Expand generates search phrases for a product name. The returned list is
// distinct with first-seen order preserved. Pure function; no I/O.
func Expand(productName string) []string {
	var phrases []string
	for _, tmpl := range baseTemplates {
		phrases = append(phrases, apply(tmpl, productName))
	}

	clean := strings.ToLower(strings.TrimSpace(productName))
	words := strings.Fields(clean)

	// Multi-word names also get model-only searches built from the last two
	// tokens, e.g. "Netgear Orbi 370" -> "orbi 370 review".
	if len(words) > 1 {
		shortName := strings.Join(words[len(words)-2:], " ")
		for _, tmpl := range baseTemplates[:3] {
			phrases = append(phrases, apply(tmpl, shortName))
		}

		for _, brand := range brands {
			if !strings.Contains(clean, brand) {
				continue
			}
			residue := strings.Join(strings.Fields(strings.Replace(clean, brand, "", 1)), " ")
			if residue != "" {
				phrases = append(phrases,
					brand+" "+residue+" review",
					residue+" review",
				)
			}
			break
		}
	}

	return dedupe(phrases)
}

func apply(tmpl, product string) string {
	return strings.Replace(tmpl, "%s", product, 1)
}

// dedupe removes duplicates while preserving first-seen order.
func dedupe(phrases []string) []string {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
