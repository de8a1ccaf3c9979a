// Package quota enforces the per-client daily message limit.
package quota

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"avt-guide/internal/storage"
)

const (
	// Key is the durable storage key of the daily record.
	Key = "chatbot_daily_limit"
	// DefaultLimit is the number of LLM-backed turns allowed per day.
	DefaultLimit = 50

	dateLayout = "2006-01-02"
)

// Record is the persisted daily counter.
type Record struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Guard enforces the per-day message quota of one client.
type Guard struct {
	mu    sync.Mutex
	kv    storage.KV
	limit int
	loc   *time.Location
	now   func() time.Time
	log   logrus.FieldLogger
}

type Option func(*Guard)

func WithLimit(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.limit = n
		}
	}
}

// WithLocation sets the time zone that decides where a calendar day ends.
func WithLocation(loc *time.Location) Option {
	return func(g *Guard) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Guard) { g.log = l }
}

func NewGuard(kv storage.KV, opts ...Option) *Guard {
	g := &Guard{
		kv:    kv,
		limit: DefaultLimit,
		loc:   time.UTC,
		now:   time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// CanSend reports whether another turn is allowed today.
func (g *Guard) CanSend() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentUnlocked().Count < g.limit
}

// RecordSend consumes one unit of today's quota. Call it only after a
// successful round trip to the model.
func (g *Guard) RecordSend() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec := g.currentUnlocked()
	rec.Count++
	return g.saveUnlocked(rec)
}

// Status returns today's record.
func (g *Guard) Status() Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentUnlocked()
}

// Remaining is the number of turns left today.
func (g *Guard) Remaining() int {
	left := g.limit - g.Status().Count
	if left < 0 {
		return 0
	}
	return left
}

func (g *Guard) Limit() int { return g.limit }

func (g *Guard) today() string {
	return g.now().In(g.loc).Format(dateLayout)
}

// currentUnlocked loads the record, resetting it when it belongs to another
// day. Unreadable or corrupt records count as empty.
func (g *Guard) currentUnlocked() Record {
	today := g.today()
	fresh := Record{Date: today}
	raw, ok, err := g.kv.Get(Key)
	if err != nil {
		g.log.WithError(err).Warn("quota: read failed, treating as empty")
		return fresh
	}
	if !ok {
		return fresh
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		g.log.WithError(err).Warn("quota: corrupt record discarded")
		return fresh
	}
	if rec.Date != today {
		if err := g.saveUnlocked(fresh); err != nil {
			g.log.WithError(err).Warn("quota: reset not persisted")
		}
		return fresh
	}
	return rec
}

func (g *Guard) saveUnlocked(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal quota record: %w", err)
	}
	if err := g.kv.Set(Key, b); err != nil {
		return fmt.Errorf("persist quota record: %w", err)
	}
	return nil
}
