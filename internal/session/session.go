// Package session owns the per-browser state of a signed-in user: who they
// are and the claims ledger they are filling in.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"mileage/internal/cache"
	"mileage/internal/ledger"
	"mileage/internal/log"
)

// CookieName is the name of the session cookie.
const CookieName = "mileage_session"

// Session is one signed-in browser. The ledger lives and dies with it.
type Session struct {
	ID        string
	User      string
	CreatedAt time.Time
	Ledger    *ledger.Ledger
}

// Config controls session lifetime and the ledgers created for new sessions.
type Config struct {
	TTL           time.Duration
	MaxSessions   int
	Secure        bool
	LedgerOptions []ledger.Option
	Now           func() time.Time
}

// Store keeps live sessions in an LRU cache with sliding expiry.
type Store struct {
	sessions *cache.LRUCache[*Session]
	cfg      Config
	logger   *log.Logger
}

func NewStore(cfg Config, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	logger = logger.WithComponent(log.ComponentSession)

	s := &Store{cfg: cfg, logger: logger}
	s.sessions = cache.NewLRUCache[*Session](cfg.MaxSessions, cfg.TTL,
		cache.WithSlidingExpiry[*Session](),
		cache.WithClock[*Session](cfg.Now),
		cache.WithEvictCallback(func(id string, sess *Session) {
			logger.Info("Session expired",
				log.FieldSessionID, id,
				log.FieldUser, sess.User,
				log.FieldEntryCount, sess.Ledger.Len(),
			)
		}),
	)
	return s
}

// Cache exposes the backing cache so it can be registered for cleanup.
func (s *Store) Cache() cache.Cleaner {
	return s.sessions
}

// Start creates a session for user with an empty ledger and sets its cookie.
func (s *Store) Start(w http.ResponseWriter, user string) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: s.cfg.Now(),
		Ledger:    ledger.New(s.cfg.LedgerOptions...),
	}
	s.sessions.Set(sess.ID, sess)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("Session started", log.FieldSessionID, sess.ID, log.FieldUser, user)
	return sess
}

// Get returns the live session named by the request cookie.
func (s *Store) Get(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.sessions.Get(c.Value)
}

// Destroy drops the request's session, discarding its ledger, and expires
// the cookie.
func (s *Store) Destroy(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		s.sessions.Delete(c.Value)
		s.logger.Info("Session ended", log.FieldSessionID, c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Size()
}
