// Package analytics summarizes the interaction log per day.
package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"avt-guide/internal/storage"
)

// DailyStats is the usage of one calendar day.
type DailyStats struct {
	Date            string         `json:"date"`
	TotalTurns      int            `json:"total_turns"`
	UniqueClients   int            `json:"unique_clients"`
	UniqueSessions  int            `json:"unique_sessions"`
	ByOutcome       map[string]int `json:"by_outcome"`
	ByLocale        map[string]int `json:"by_locale"`
	SearchTurns     int            `json:"search_turns"`
	EmptySearches   int            `json:"empty_searches"`
	OffersShown     int            `json:"offers_shown"`
	DegradedReplies int            `json:"degraded_replies"`
	TopKeywords     []KeywordCount `json:"top_keywords"`
	ClientTurns     map[string]int `json:"client_turns"`
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

const topKeywords = 10

// AnalyzeDailyLogs counts the turns whose timestamp falls on targetDate in
// targetDate's location.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	loc := targetDate.Location()
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, loc)
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:        startOfDay.Format("2006-01-02"),
		ByOutcome:   make(map[string]int),
		ByLocale:    make(map[string]int),
		ClientTurns: make(map[string]int),
	}
	sessions := make(map[string]bool)
	keywords := make(map[string]int)

	for _, ev := range events {
		if ev.Timestamp.Before(startOfDay) || !ev.Timestamp.Before(endOfDay) {
			continue
		}
		if ev.UserMessage == "" {
			continue
		}
		stats.TotalTurns++
		stats.ByOutcome[ev.Outcome]++
		if ev.Locale != "" {
			stats.ByLocale[ev.Locale]++
		}
		stats.ClientTurns[ev.ClientID]++
		sessions[ev.ClientID+"|"+ev.SessionID] = true
		if ev.Degraded {
			stats.DegradedReplies++
		}
		if ev.FiltersEnabled {
			stats.SearchTurns++
			stats.OffersShown += ev.PostsFound
			if ev.PostsFound == 0 {
				stats.EmptySearches++
			}
		}
		for _, k := range ev.Keywords {
			keywords[k]++
		}
	}

	stats.UniqueClients = len(stats.ClientTurns)
	stats.UniqueSessions = len(sessions)
	stats.TopKeywords = rank(keywords, topKeywords)
	return stats
}

func rank(counts map[string]int, n int) []KeywordCount {
	out := make([]KeywordCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// GenerateReportSummary renders the stats as a short plain-text report.
func (ds *DailyStats) GenerateReportSummary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "AVT Guide usage for %s\n\n", ds.Date)
	fmt.Fprintf(&sb, "Turns: %d (clients: %d, sessions: %d)\n", ds.TotalTurns, ds.UniqueClients, ds.UniqueSessions)

	if len(ds.ByOutcome) > 0 {
		sb.WriteString("Outcomes:\n")
		for _, k := range sortedKeys(ds.ByOutcome) {
			fmt.Fprintf(&sb, "- %s: %d\n", k, ds.ByOutcome[k])
		}
	}
	if len(ds.ByLocale) > 0 {
		sb.WriteString("Locales:\n")
		for _, k := range sortedKeys(ds.ByLocale) {
			fmt.Fprintf(&sb, "- %s: %d\n", k, ds.ByLocale[k])
		}
	}
	fmt.Fprintf(&sb, "Searches: %d, without results: %d, offers shown: %d\n", ds.SearchTurns, ds.EmptySearches, ds.OffersShown)
	if ds.DegradedReplies > 0 {
		fmt.Fprintf(&sb, "Replies without JSON: %d\n", ds.DegradedReplies)
	}
	if len(ds.TopKeywords) > 0 {
		sb.WriteString("Top keywords:\n")
		for _, kc := range ds.TopKeywords {
			fmt.Fprintf(&sb, "- %s: %d\n", kc.Keyword, kc.Count)
		}
	}
	return sb.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToJSON renders the stats as indented JSON.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
