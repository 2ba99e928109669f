package keywords

import (
	"strings"
	"testing"
)

func TestExpand_NoDuplicatesPreservesOrder(t *testing.T) {
	products := []string{
		"eero 7",
		"Netgear Orbi 370",
		"Asus ZenWifi BE5000",
		"router",
		"  eero  7  ",
		"tp-link deco be85",
	}

	for _, product := range products {
		phrases := Expand(product)
		if len(phrases) == 0 {
			t.Fatalf("Expand(%q) returned no phrases", product)
		}

		seen := make(map[string]int)
		for i, p := range phrases {
			if prev, ok := seen[p]; ok {
				t.Errorf("Expand(%q): phrase %q at %d duplicates index %d", product, p, i, prev)
			}
			seen[p] = i
		}
	}
}

func TestExpand_BaseTemplates(t *testing.T) {
	phrases := Expand("eero 7")

	want := []string{
		"eero 7 review",
		"eero 7 unboxing",
		"eero 7 test",
		"eero 7 wifi router review",
		"eero 7 mesh router review",
	}

	for _, w := range want {
		if !contains(phrases, w) {
			t.Errorf("Expand(\"eero 7\") missing %q; got %v", w, phrases)
		}
	}

	// Base templates come first, in template order.
	for i, w := range want {
		if phrases[i] != w {
			t.Errorf("phrase[%d] = %q, want %q", i, phrases[i], w)
		}
	}
}

func TestExpand_BrandStrip(t *testing.T) {
	phrases := Expand("Netgear Orbi 370")

	want := []string{
		"Netgear Orbi 370 review",
		"orbi 370 review", // short-name and brand-residue variants
		"netgear orbi 370 review",
	}

	for _, w := range want {
		if !contains(phrases, w) {
			t.Errorf("Expand(\"Netgear Orbi 370\") missing %q; got %v", w, phrases)
		}
	}
}

func TestExpand_OnlyFirstBrandUsed(t *testing.T) {
	// Contains both "google" and "amazon"; only the first match in brand
	// order contributes residue variants.
	phrases := Expand("google amazon mesh")

	if !contains(phrases, "google amazon mesh review") {
		t.Fatalf("missing base phrase; got %v", phrases)
	}

	var residueVariants int
	for _, p := range phrases {
		if p == "google amazon mesh review" {
			continue
		}
		if strings.HasSuffix(p, " review") && !strings.Contains(p, "router") {
			residueVariants++
		}
	}
	if residueVariants == 0 {
		t.Errorf("expected residue variants for the matched brand; got %v", phrases)
	}
}

func TestExpand_SingleWordNoShortName(t *testing.T) {
	phrases := Expand("router")

	if len(phrases) != 5 {
		t.Errorf("expected only the 5 base phrases for a single-word name, got %d: %v", len(phrases), phrases)
	}
}

func TestExpand_BrandOnlyNoEmptyResidue(t *testing.T) {
	// Two tokens where stripping the brand from a brand-only residue case
	// must not emit an empty " review" phrase.
	phrases := Expand("eero eero")

	for _, p := range phrases {
		if strings.TrimSpace(p) == "review" || strings.HasPrefix(p, " ") {
			t.Errorf("empty-residue phrase leaked: %q", p)
		}
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
