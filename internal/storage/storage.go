// Package storage provides key-value backends and the interaction log.
package storage

import (
	"errors"
	"time"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("storage: closed")

// KV is a small key-value capability. Session-scoped conversation state and
// durable quota records are both kept behind it so callers never care which
// backend holds them.
// Implementations must be safe for concurrent use.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Event is one assistant turn as written to the interaction log.
// Events are expected to be appended in chronological order.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	ClientID          string    `json:"client_id"`
	SessionID         string    `json:"session_id"`
	Locale            string    `json:"locale"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Outcome           string    `json:"outcome"`
	FiltersEnabled    bool      `json:"filters_enabled,omitempty"`
	Keywords          []string  `json:"keywords,omitempty"`
	PostsFound        int       `json:"posts_found,omitempty"`
	Degraded          bool      `json:"degraded,omitempty"`
}

// Recorder abstracts persistence of interaction events.
// LoadInteractions should return events in chronological order.
// AppendInteraction should atomically append a new event.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
