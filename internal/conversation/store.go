// Package conversation keeps a session's message list and suggestions.
package conversation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"avt-guide/internal/chat"
	"avt-guide/internal/storage"
)

// Key is the session storage key of the snapshot.
const Key = "chatbot_conversation"

// Snapshot is the restorable state of one chat session.
type Snapshot struct {
	Messages    []chat.Message    `json:"messages"`
	Suggestions []chat.Suggestion `json:"suggestions"`
}

// Store owns the message list and suggestion chips of one session and
// mirrors them into session storage.
type Store struct {
	mu          sync.RWMutex
	kv          storage.KV
	seed        chat.Message
	defaults    []chat.Suggestion
	messages    []chat.Message
	suggestions []chat.Suggestion
	log         logrus.FieldLogger
}

// NewStore starts a conversation holding only the seed greeting.
func NewStore(kv storage.KV, seed chat.Message, defaults []chat.Suggestion, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		kv:          kv,
		seed:        seed,
		defaults:    append([]chat.Suggestion(nil), defaults...),
		messages:    []chat.Message{seed},
		suggestions: append([]chat.Suggestion(nil), defaults...),
		log:         log,
	}
}

// Load reads the persisted snapshot. Missing data reports false; corrupt
// data is deleted and reported as missing.
func (s *Store) Load() (*Snapshot, bool) {
	raw, ok, err := s.kv.Get(Key)
	if err != nil {
		s.log.WithError(err).Warn("conversation: read failed")
		return nil, false
	}
	if !ok || len(raw) == 0 {
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.WithError(err).Warn("conversation: corrupt snapshot discarded")
		if err := s.kv.Delete(Key); err != nil {
			s.log.WithError(err).Warn("conversation: failed to drop corrupt snapshot")
		}
		return nil, false
	}
	return &snap, true
}

// Save writes snap to session storage.
func (s *Store) Save(snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.kv.Set(Key, b); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Restore replaces the in-memory state with the persisted snapshot, if any.
// It is meant to run once, when the session is mounted.
func (s *Store) Restore() {
	snap, ok := s.Load()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(snap.Messages) > 0 {
		s.messages = snap.Messages
	}
	if len(snap.Suggestions) > 0 {
		s.suggestions = snap.Suggestions
	}
}

// Append adds msg to the conversation and persists the snapshot.
func (s *Store) Append(msg chat.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	snap := s.snapshotUnlocked()
	s.mu.Unlock()
	s.persist(snap)
}

// SetSuggestions replaces the current chips and persists the snapshot.
func (s *Store) SetSuggestions(sugs []chat.Suggestion) {
	s.mu.Lock()
	s.suggestions = append([]chat.Suggestion(nil), sugs...)
	snap := s.snapshotUnlocked()
	s.mu.Unlock()
	s.persist(snap)
}

// Reset drops the persisted snapshot and returns to the seed greeting.
func (s *Store) Reset() {
	s.mu.Lock()
	s.messages = []chat.Message{s.seed}
	s.suggestions = append([]chat.Suggestion(nil), s.defaults...)
	s.mu.Unlock()
	if err := s.kv.Delete(Key); err != nil {
		s.log.WithError(err).Warn("conversation: reset not persisted")
	}
}

func (s *Store) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Message(nil), s.messages...)
}

// Recent returns at most n of the latest messages.
func (s *Store) Recent(n int) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n >= 0 && len(s.messages) > n {
		start = len(s.messages) - n
	}
	return append([]chat.Message(nil), s.messages[start:]...)
}

func (s *Store) Suggestions() []chat.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Suggestion(nil), s.suggestions...)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotUnlocked()
}

func (s *Store) snapshotUnlocked() Snapshot {
	return Snapshot{
		Messages:    append([]chat.Message(nil), s.messages...),
		Suggestions: append([]chat.Suggestion(nil), s.suggestions...),
	}
}

// persist skips sessions that still hold nothing but the greeting.
func (s *Store) persist(snap Snapshot) {
	if len(snap.Messages) <= 1 {
		return
	}
	if err := s.Save(snap); err != nil {
		s.log.WithError(err).Warn("conversation: snapshot not persisted")
	}
}
