package storage

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryKV keeps values in process memory. With a positive ttl entries
// expire ttl after their last write, which gives session-scoped storage the
// lifetime of a browsing session.
type MemoryKV struct {
	c *cache.Cache
}

func NewMemoryKV(ttl time.Duration) *MemoryKV {
	exp := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		exp = ttl
		cleanup = ttl / 2
		if cleanup < time.Minute {
			cleanup = time.Minute
		}
	}
	return &MemoryKV{c: cache.New(exp, cleanup)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), true, nil
}

func (m *MemoryKV) Set(key string, value []byte) error {
	m.c.Set(key, append([]byte(nil), value...), cache.DefaultExpiration)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.c.Delete(key)
	return nil
}

// Len reports the number of live entries.
func (m *MemoryKV) Len() int { return m.c.ItemCount() }
