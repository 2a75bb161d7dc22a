// Package session ties a CSRF token to a browser session cookie.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName holds the session id.
	CookieName = "fintrack_session"
	// HeaderName carries the CSRF token on mutating requests.
	HeaderName = "X-CSRF-Token"

	tokenBytes = 16
)

type entry struct {
	token    string
	lastSeen time.Time
}

// Store keeps one CSRF token per session id in memory. Sessions idle for
// longer than the TTL are removed by a background goroutine.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewStore creates a store and starts its cleanup loop.
func NewStore(ttl, cleanupInterval time.Duration) *Store {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	s := &Store{
		sessions:    make(map[string]*entry),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go s.cleanup(cleanupInterval)
	return s
}

// Ensure returns the token for the request's session, starting a new session
// (and setting the cookie) when the request has none or it expired.
func (s *Store) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil {
		if token, ok := s.touch(c.Value); ok {
			return token, nil
		}
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = &entry{token: token, lastSeen: s.now()}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return token, nil
}

// Verify reports whether the X-CSRF-Token header matches the session token.
func (s *Store) Verify(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	token, ok := s.touch(c.Value)
	if !ok {
		return false
	}
	sent := r.Header.Get(HeaderName)
	if sent == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sent), []byte(token)) == 1
}

// Middleware rejects non-GET/HEAD/OPTIONS requests without a valid token.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if !s.Verify(r) {
			slog.WarnContext(r.Context(), "CSRF token rejected",
				"method", r.Method,
				"path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Invalid CSRF token"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActiveSessions returns the number of live sessions.
func (s *Store) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *Store) touch(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	now := s.now()
	if now.Sub(e.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return "", false
	}
	e.lastSeen = now
	return e.token, true
}

func (s *Store) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) removeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Expired sessions removed", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
