// Package chat holds the conversation data model shared by every component.
package chat

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one entry of a conversation. Messages are never mutated after
// they are appended to a conversation.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Data      *Response `json:"data,omitempty"`
}

// NewMessage stamps a message with a fresh id.
func NewMessage(sender Sender, text string, at time.Time, data *Response) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: at,
		Data:      data,
	}
}

type Paragraph struct {
	Text     string   `json:"text"`
	Emphasis []string `json:"emphasis"`
}

type Content struct {
	Paragraphs       []Paragraph `json:"paragraphs"`
	FollowUpQuestion *string     `json:"follow_up_question"`
}

// FollowUp returns the follow-up question or "".
func (c Content) FollowUp() string {
	if c.FollowUpQuestion == nil {
		return ""
	}
	return *c.FollowUpQuestion
}

type FilterParams struct {
	Query        string   `json:"query"`
	Destination  string   `json:"destination"`
	Destinations []string `json:"destinations"`
	Category     string   `json:"category"`
	Subcategory  string   `json:"subcategory"`
	PriceStart   string   `json:"price_start"`
	PriceEnd     string   `json:"price_end"`
	DateStart    string   `json:"date_start"`
	DateEnd      string   `json:"date_end"`
}

// UnmarshalJSON accepts the catalog's "prix_*" spelling and numeric prices
// next to the canonical fields.
func (p *FilterParams) UnmarshalJSON(data []byte) error {
	var raw struct {
		Query        FlexString   `json:"query"`
		Destination  FlexString   `json:"destination"`
		Destinations []FlexString `json:"destinations"`
		Category     FlexString   `json:"category"`
		Subcategory  FlexString   `json:"subcategory"`
		PriceStart   FlexString   `json:"price_start"`
		PriceEnd     FlexString   `json:"price_end"`
		PrixStart    FlexString   `json:"prix_start"`
		PrixEnd      FlexString   `json:"prix_end"`
		DateStart    FlexString   `json:"date_start"`
		DateEnd      FlexString   `json:"date_end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = FilterParams{
		Query:       string(raw.Query),
		Destination: string(raw.Destination),
		Category:    string(raw.Category),
		Subcategory: string(raw.Subcategory),
		PriceStart:  firstNonEmpty(string(raw.PriceStart), string(raw.PrixStart)),
		PriceEnd:    firstNonEmpty(string(raw.PriceEnd), string(raw.PrixEnd)),
		DateStart:   string(raw.DateStart),
		DateEnd:     string(raw.DateEnd),
	}
	for _, d := range raw.Destinations {
		if s := strings.TrimSpace(string(d)); s != "" {
			p.Destinations = append(p.Destinations, s)
		}
	}
	return nil
}

// HasDestination reports whether any destination was extracted.
func (p FilterParams) HasDestination() bool {
	return strings.TrimSpace(p.Destination) != "" || len(p.Destinations) > 0
}

func (p FilterParams) HasBudget() bool {
	return strings.TrimSpace(p.PriceStart) != "" || strings.TrimSpace(p.PriceEnd) != ""
}

func (p FilterParams) HasDates() bool {
	return strings.TrimSpace(p.DateStart) != "" || strings.TrimSpace(p.DateEnd) != ""
}

type Filters struct {
	Enabled        bool         `json:"enabled"`
	Params         FilterParams `json:"params"`
	SearchKeywords []string     `json:"search_keywords,omitempty"`
}

// BlogRef points at an existing blog post by id.
type BlogRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare id.
func (b *BlogRef) UnmarshalJSON(data []byte) error {
	var id FlexString
	if err := json.Unmarshal(data, &id); err == nil {
		*b = BlogRef{ID: string(id)}
		return nil
	}
	var raw struct {
		ID    FlexString `json:"id"`
		Title string     `json:"title"`
		Slug  string     `json:"slug"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = BlogRef{ID: string(raw.ID), Title: raw.Title, Slug: raw.Slug}
	return nil
}

type Blogs struct {
	Enabled bool      `json:"enabled"`
	Results []BlogRef `json:"results"`
}

// PostSummary is the flattened projection of a catalog announcement.
type PostSummary struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Destinations []string `json:"destinations"`
	Description  string   `json:"description"`
	Price        string   `json:"price"`
	Photo        string   `json:"photo,omitempty"`
	Category     string   `json:"category,omitempty"`
	Subcategory  string   `json:"subcategory,omitempty"`
	Agency       string   `json:"agency,omitempty"`
}

type Posts struct {
	Enabled bool          `json:"enabled"`
	Results []PostSummary `json:"results"`
}

type Suggestion struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Icon  string `json:"icon,omitempty"`
}

// Response is one parsed assistant turn.
type Response struct {
	Content     Content      `json:"content"`
	Filters     Filters      `json:"filters"`
	Blogs       *Blogs       `json:"blogs"`
	Posts       *Posts       `json:"posts"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Text renders the paragraphs and the follow-up question as plain text.
func (r *Response) Text() string {
	parts := make([]string, 0, len(r.Content.Paragraphs)+1)
	for _, p := range r.Content.Paragraphs {
		parts = append(parts, p.Text)
	}
	if q := r.Content.FollowUp(); q != "" {
		parts = append(parts, q)
	}
	return strings.Join(parts, "\n\n")
}

// FlexString decodes JSON strings, numbers and booleans into a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = FlexString(strconv.FormatBool(b))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
