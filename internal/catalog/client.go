// Package catalog is the client of the travel agency announcement backend.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned when no catalog base URL was given.
var ErrNotConfigured = errors.New("catalog: base url not configured")

const categoriesKey = "categories"

// Client talks to the announcement catalog backend.
type Client struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	categories *cache.Cache
	ttl        time.Duration
	log        logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit caps outgoing requests per second; rps <= 0 disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithCategoryTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		ttl:     10 * time.Minute,
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	c.categories = cache.New(c.ttl, 2*c.ttl)
	return c
}

type searchBody struct {
	Titre       string `json:"titre"`
	Destination string `json:"destination"`
	PrixStart   string `json:"prix_start,omitempty"`
	PrixEnd     string `json:"prix_end,omitempty"`
	DateStart   string `json:"date_start,omitempty"`
	DateEnd     string `json:"date_end,omitempty"`
}

// Search runs one catalog search. The query is sent both as title and as
// destination; when only an upper price bound is given the lower one is 0.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Announcement, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	body := searchBody{
		Titre:       p.Query,
		Destination: p.Query,
		PrixEnd:     p.PriceEnd,
		PrixStart:   p.PriceStart,
		DateStart:   p.DateStart,
		DateEnd:     p.DateEnd,
	}
	if body.PrixEnd != "" && body.PrixStart == "" {
		body.PrixStart = "0"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/announcements/search", payload)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", p.Query, err)
	}
	list, err := decodeAnnouncements(raw)
	if err != nil {
		return nil, fmt.Errorf("decode search %q: %w", p.Query, err)
	}
	for i := range list {
		list[i] = normalizePhotos(list[i])
	}
	return list, nil
}

// Categories returns the category tree, served from cache while fresh.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	if v, ok := c.categories.Get(categoriesKey); ok {
		if cats, ok := v.([]Category); ok {
			return cats, nil
		}
	}
	return c.RefreshCategories(ctx)
}

// RefreshCategories fetches the category tree and replaces the cached copy.
// Failures leave the previous copy in place.
func (c *Client) RefreshCategories(ctx context.Context) ([]Category, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	raw, err := c.do(ctx, http.MethodGet, "/api/categories", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}
	var cats []Category
	if err := json.Unmarshal(raw, &cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	c.categories.Set(categoriesKey, cats, cache.DefaultExpiration)
	c.log.WithField("count", len(cats)).Debug("catalog: categories refreshed")
	return cats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

// decodeAnnouncements accepts a bare array or a {"data": [...]} envelope.
func decodeAnnouncements(raw []byte) ([]Announcement, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []Announcement
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var env struct {
		Data []Announcement `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
