package assistant

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"avt-guide/internal/chat"
	"avt-guide/internal/conversation"
	"avt-guide/internal/quota"
	"avt-guide/internal/storage"
)

// DefaultSessionTTL is how long an idle session stays in memory.
const DefaultSessionTTL = 12 * time.Hour

// ManagerOptions tune how sessions are built.
type ManagerOptions struct {
	SessionTTL    time.Duration
	DailyLimit    int
	QuotaLocation *time.Location
	QuotaClock    func() time.Time
}

// Manager hands out one Orchestrator per session. Conversation state goes
// to session storage scoped by session id; quota records go to durable
// storage scoped by client id. Guards never expire so every session of a
// client shares one lock over its quota record.
type Manager struct {
	deps     *Deps
	session  storage.KV
	durable  storage.KV
	opts     ManagerOptions
	sessions *cache.Cache
	guards   *cache.Cache
	mu       sync.Mutex
}

func NewManager(deps *Deps, session, durable storage.KV, opts ManagerOptions) *Manager {
	deps.withDefaults()
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	return &Manager{
		deps:     deps,
		session:  session,
		durable:  durable,
		opts:     opts,
		sessions: cache.New(opts.SessionTTL, opts.SessionTTL/2),
		guards:   cache.New(cache.NoExpiration, 0),
	}
}

// Session returns the orchestrator of sessionID, creating and restoring it
// on first use. locale only picks the greeting of a brand new session.
func (m *Manager) Session(clientID, sessionID, locale string) *Orchestrator {
	key := clientID + "|" + sessionID
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.sessions.Get(key); ok {
		m.sessions.SetDefault(key, v)
		return v.(*Orchestrator)
	}

	locale = chat.NormalizeLocale(locale, m.deps.DefaultLocale)
	seed := chat.NewMessage(chat.SenderBot, Greeting(locale), m.deps.Now(), nil)
	store := conversation.NewStore(
		storage.Scoped(m.session, "session:"+sessionID),
		seed,
		DefaultSuggestions(locale),
		m.deps.Log.WithField("session", sessionID),
	)
	store.Restore()

	o := New(m.deps, m.guard(clientID), store, clientID, sessionID)
	m.sessions.SetDefault(key, o)
	return o
}

// Quota returns the guard of clientID.
func (m *Manager) Quota(clientID string) *quota.Guard {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guard(clientID)
}

// Forget drops the in-memory session; persisted state stays.
func (m *Manager) Forget(clientID, sessionID string) {
	m.sessions.Delete(clientID + "|" + sessionID)
}

func (m *Manager) Active() int { return m.sessions.ItemCount() }

func (m *Manager) guard(clientID string) *quota.Guard {
	if v, ok := m.guards.Get(clientID); ok {
		return v.(*quota.Guard)
	}
	opts := []quota.Option{
		quota.WithLimit(m.opts.DailyLimit),
		quota.WithLocation(m.opts.QuotaLocation),
		quota.WithLogger(m.deps.Log.WithField("client", clientID)),
	}
	if m.opts.QuotaClock != nil {
		opts = append(opts, quota.WithClock(m.opts.QuotaClock))
	}
	g := quota.NewGuard(storage.Scoped(m.durable, "client:"+clientID), opts...)
	m.guards.SetDefault(clientID, g)
	return g
}
