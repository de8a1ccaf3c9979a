// Package fanout runs one catalog search per keyword concurrently and merges
// the results.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"avt-guide/internal/catalog"
	"avt-guide/internal/chat"
)

const (
	MaxResults     = 5
	DefaultTimeout = 10 * time.Second
)

// Searcher runs a single catalog search.
type Searcher interface {
	Search(ctx context.Context, p catalog.SearchParams) ([]catalog.Announcement, error)
}

// Observer is told how each keyword search ended.
type Observer interface {
	ObserveSearch(keyword string, took time.Duration, err error)
}

// KeywordResult is the outcome of one keyword search. A failed search has
// Err set and no announcements.
type KeywordResult struct {
	Keyword       string
	Announcements []catalog.Announcement
	Err           error
	Took          time.Duration
}

type Fanout struct {
	searcher Searcher
	timeout  time.Duration
	observer Observer
	log      logrus.FieldLogger
}

type Option func(*Fanout)

// WithTimeout bounds every keyword search separately.
func WithTimeout(d time.Duration) Option {
	return func(f *Fanout) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(f *Fanout) { f.observer = o }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Fanout) { f.log = l }
}

func New(s Searcher, opts ...Option) *Fanout {
	f := &Fanout{searcher: s, timeout: DefaultTimeout, log: logrus.StandardLogger()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Run searches every keyword and returns at most MaxResults offers,
// unique by catalog id, in first-seen order.
func (f *Fanout) Run(ctx context.Context, keywords []string, params chat.FilterParams) []chat.PostSummary {
	results := f.Collect(ctx, keywords, params)
	merged := Merge(results)
	out := make([]chat.PostSummary, 0, len(merged))
	for _, a := range merged {
		out = append(out, ToPostSummary(a))
	}
	return out
}

// Collect starts every keyword search before waiting on any of them. A
// failing keyword never affects its siblings.
func (f *Fanout) Collect(ctx context.Context, keywords []string, params chat.FilterParams) []KeywordResult {
	results := make([]KeywordResult, len(keywords))
	var g errgroup.Group
	for i, kw := range keywords {
		g.Go(func() error {
			results[i] = f.searchOne(ctx, kw, params)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (f *Fanout) searchOne(ctx context.Context, keyword string, params chat.FilterParams) (res KeywordResult) {
	res.Keyword = keyword
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Announcements = nil
			res.Err = fmt.Errorf("search panicked: %v", r)
		}
		res.Took = time.Since(start)
		if res.Err != nil {
			f.log.WithError(res.Err).WithField("keyword", keyword).Warn("fanout: keyword search failed")
		}
		if f.observer != nil {
			f.observer.ObserveSearch(keyword, res.Took, res.Err)
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	list, err := f.searcher.Search(tctx, catalog.SearchParams{
		Query:      keyword,
		PriceStart: params.PriceStart,
		PriceEnd:   params.PriceEnd,
		DateStart:  params.DateStart,
		DateEnd:    params.DateEnd,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Announcements = list
	return res
}

// Merge unions the per-keyword lists in keyword order. The first
// announcement seen for an id wins and at most MaxResults are kept.
func Merge(results []KeywordResult) []catalog.Announcement {
	seen := make(map[int64]bool)
	out := make([]catalog.Announcement, 0, MaxResults)
	for _, r := range results {
		for _, a := range r.Announcements {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
			if len(out) == MaxResults {
				return out
			}
		}
	}
	return out
}
