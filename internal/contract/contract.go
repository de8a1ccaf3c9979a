// Package contract recovers a structured assistant turn from raw model text.
package contract

import (
	"encoding/json"
	"strings"

	"avt-guide/internal/chat"
)

const (
	MaxEmphasis    = 3
	MaxSuggestions = 6

	// maxCandidates bounds how many '{' positions are tried on hostile input.
	maxCandidates = 64
)

type Kind int

const (
	OK Kind = iota
	Degraded
)

func (k Kind) String() string {
	if k == Degraded {
		return "degraded"
	}
	return "ok"
}

// Result carries the parsed response and which path produced it.
type Result struct {
	Response *chat.Response
	Kind     Kind
}

// Parse never fails: text without a usable JSON object becomes a single
// plain paragraph.
func Parse(raw string) Result {
	if resp, ok := decodeFirstObject(raw); ok {
		Normalize(resp)
		return Result{Response: resp, Kind: OK}
	}
	resp := &chat.Response{
		Content: chat.Content{Paragraphs: []chat.Paragraph{{Text: raw, Emphasis: []string{}}}},
	}
	Normalize(resp)
	if len(resp.Content.Paragraphs) == 0 {
		resp.Content.Paragraphs = []chat.Paragraph{{Text: raw, Emphasis: []string{}}}
	}
	return Result{Response: resp, Kind: Degraded}
}

// decodeFirstObject tries every '{' in order. An object counts when it
// decodes and carries a "content" or "filters" key. The first one with a
// non-empty paragraph wins, else the first one found. Text after the
// object is ignored.
func decodeFirstObject(raw string) (*chat.Response, bool) {
	var first *chat.Response
	tried := 0
	for i := 0; i < len(raw) && tried < maxCandidates; i++ {
		if raw[i] != '{' {
			continue
		}
		tried++
		var keys map[string]json.RawMessage
		if err := json.NewDecoder(strings.NewReader(raw[i:])).Decode(&keys); err != nil {
			continue
		}
		_, hasContent := keys["content"]
		_, hasFilters := keys["filters"]
		if !hasContent && !hasFilters {
			continue
		}
		var resp chat.Response
		if err := json.NewDecoder(strings.NewReader(raw[i:])).Decode(&resp); err != nil {
			continue
		}
		if hasText(resp.Content.Paragraphs) {
			return &resp, true
		}
		if first == nil {
			first = &resp
		}
	}
	return first, first != nil
}

func hasText(ps []chat.Paragraph) bool {
	for _, p := range ps {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// Normalize fills missing sections and drops anything the model is not
// trusted with: emphasis outside its paragraph, category filters and
// search results.
func Normalize(r *chat.Response) {
	paras := make([]chat.Paragraph, 0, len(r.Content.Paragraphs))
	for _, p := range r.Content.Paragraphs {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		p.Emphasis = FilterEmphasis(p.Text, p.Emphasis)
		paras = append(paras, p)
	}
	r.Content.Paragraphs = paras

	if q := r.Content.FollowUpQuestion; q != nil && strings.TrimSpace(*q) == "" {
		r.Content.FollowUpQuestion = nil
	}

	r.Filters.Params.Category = ""
	r.Filters.Params.Subcategory = ""
	if r.Filters.Enabled && r.Filters.SearchKeywords == nil {
		r.Filters.SearchKeywords = []string{}
	}

	if r.Blogs == nil {
		r.Blogs = &chat.Blogs{}
	}
	if r.Blogs.Results == nil {
		r.Blogs.Results = []chat.BlogRef{}
	}
	// posts are filled by the search step only
	r.Posts = &chat.Posts{Results: []chat.PostSummary{}}

	sugs := make([]chat.Suggestion, 0, len(r.Suggestions))
	for _, s := range r.Suggestions {
		s.Label = strings.TrimSpace(s.Label)
		s.Value = strings.TrimSpace(s.Value)
		if s.Label == "" && s.Value == "" {
			continue
		}
		if s.Value == "" {
			s.Value = s.Label
		}
		if s.Label == "" {
			s.Label = s.Value
		}
		sugs = append(sugs, s)
		if len(sugs) == MaxSuggestions {
			break
		}
	}
	r.Suggestions = sugs
}

// FilterEmphasis keeps at most MaxEmphasis distinct phrases that occur
// verbatim in text.
func FilterEmphasis(text string, emphasis []string) []string {
	out := make([]string, 0, MaxEmphasis)
	seen := make(map[string]bool, len(emphasis))
	for _, e := range emphasis {
		if strings.TrimSpace(e) == "" || seen[e] || !strings.Contains(text, e) {
			continue
		}
		seen[e] = true
		out = append(out, e)
		if len(out) == MaxEmphasis {
			break
		}
	}
	return out
}
