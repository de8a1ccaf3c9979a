// Package expander turns a search intent into a few locale-diversified
// single-word keywords.
package expander

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxKeywords = 5
	// MinModelKeywords is how many usable model keywords are needed before
	// the local tables are skipped.
	MinModelKeywords = 3

	maxLocationVariants = 2
	maxActivityVariants = 3
)

type entry struct {
	folded   string
	variants []string
}

type Expander struct {
	locations  []entry
	activities []entry
}

func New(lex Lexicon) *Expander {
	return &Expander{
		locations:  compile(lex.Locations),
		activities: compile(lex.Activities),
	}
}

func compile(terms []Term) []entry {
	out := make([]entry, 0, len(terms))
	for _, t := range terms {
		k := fold(t.Key)
		if k == "" {
			continue
		}
		out = append(out, entry{folded: k, variants: t.Variants()})
	}
	return out
}

// fold builds a fresh Caser each call; casers are not safe to share.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// Expand prefers the model's keywords when enough of them are usable and
// falls back to the lookup tables otherwise. The result never exceeds
// MaxKeywords and keeps the original casing.
func (e *Expander) Expand(baseQuery string, modelKeywords []string) []string {
	if kws := CleanKeywords(modelKeywords); len(kws) >= MinModelKeywords {
		if len(kws) > MaxKeywords {
			kws = kws[:MaxKeywords]
		}
		return kws
	}
	return e.Heuristic(baseQuery)
}

// CleanKeywords trims, drops multi-word or empty entries and removes
// duplicates, keeping first-seen order.
func CleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" || len(strings.Fields(k)) != 1 || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Heuristic scans the query against the location and activity tables.
func (e *Expander) Heuristic(baseQuery string) []string {
	q := fold(baseQuery)
	locs := match(e.locations, q)
	acts := match(e.activities, q)

	var out []string
	switch {
	case len(locs) > 0 && len(acts) > 0:
		out = appendUnique(out, head(locs, maxLocationVariants)...)
		out = appendUnique(out, head(acts, maxActivityVariants)...)
	case len(locs) > 0:
		out = appendUnique(out, head(locs, MaxKeywords)...)
	case len(acts) > 0:
		out = appendUnique(out, head(acts, MaxKeywords)...)
	default:
		if f := strings.Fields(baseQuery); len(f) > 0 {
			out = append(out, f[0])
		}
	}
	return head(out, MaxKeywords)
}

func match(entries []entry, q string) []string {
	var found []string
	if q == "" {
		return nil
	}
	for _, en := range entries {
		if strings.Contains(q, en.folded) {
			found = append(found, en.variants...)
		}
	}
	return found
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
