package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func issue(t *testing.T, s *Store) (*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	token, err := s.Ensure(rec, httptest.NewRequest(http.MethodGet, "/api/csrf", nil))
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("expected session cookie, got %v", cookies)
	}
	return cookies[0], token
}

func TestEnsureReusesSession(t *testing.T) {
	s := NewStore(time.Hour, time.Hour)
	defer s.Stop()

	cookie, token := issue(t, s)
	if len(token) != 2*tokenBytes {
		t.Fatalf("unexpected token length %d", len(token))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/csrf", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	again, err := s.Ensure(rec, req)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if again != token {
		t.Fatalf("expected same token for same session")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("cookie should not be reissued")
	}
	if s.ActiveSessions() != 1 {
		t.Fatalf("expected 1 session, got %d", s.ActiveSessions())
	}
}

func TestMiddleware(t *testing.T) {
	s := NewStore(time.Hour, time.Hour)
	defer s.Stop()
	cookie, token := issue(t, s)

	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		method string
		cookie bool
		header string
		want   int
	}{
		{"get passes without token", http.MethodGet, false, "", http.StatusNoContent},
		{"post with token", http.MethodPost, true, token, http.StatusNoContent},
		{"post without header", http.MethodPost, true, "", http.StatusForbidden},
		{"delete with wrong token", http.MethodDelete, true, "nope", http.StatusForbidden},
		{"put without cookie", http.MethodPut, false, token, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/transactions", nil)
			if tc.cookie {
				req.AddCookie(cookie)
			}
			if tc.header != "" {
				req.Header.Set(HeaderName, tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusForbidden && rec.Body.String() != "{\"error\":\"Invalid CSRF token\"}\n" {
				t.Fatalf("unexpected body %q", rec.Body.String())
			}
		})
	}
}

func TestExpiredSession(t *testing.T) {
	s := NewStore(time.Minute, time.Hour)
	defer s.Stop()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	cookie, token := issue(t, s)

	now = now.Add(2 * time.Minute)
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
	req.AddCookie(cookie)
	req.Header.Set(HeaderName, token)
	if s.Verify(req) {
		t.Fatalf("expired session should not verify")
	}
	if s.ActiveSessions() != 0 {
		t.Fatalf("expired session should be dropped")
	}
}

func TestRemoveExpired(t *testing.T) {
	s := NewStore(time.Minute, time.Hour)
	defer s.Stop()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	issue(t, s)
	issue(t, s)

	now = now.Add(time.Hour)
	if n := s.removeExpired(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	s.Stop()
}
