package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// stubIdentity recognizes the tokens in its map and rejects everything else.
// Only GetUser matters to the middleware; the rest satisfy the interface.
type stubIdentity struct {
	users map[string]*User
}

func (s *stubIdentity) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubIdentity) SignInWithPassword(ctx context.Context, email, password string) (*Session, *User, error) {
	return nil, nil, errors.New("not implemented")
}

func (s *stubIdentity) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if u, ok := s.users[accessToken]; ok {
		return u, nil
	}
	return nil, errors.New("invalid token")
}

func (s *stubIdentity) RefreshSession(ctx context.Context, refreshToken string) (*Session, *User, error) {
	return nil, nil, errors.New("not implemented")
}

func (s *stubIdentity) SignOut(ctx context.Context, accessToken string) error { return nil }

func (s *stubIdentity) ResetPasswordForEmail(ctx context.Context, email string) error { return nil }

func (s *stubIdentity) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	return nil
}

func (s *stubIdentity) UpdateMetadata(ctx context.Context, accessToken string, data map[string]interface{}) error {
	return nil
}

func (s *stubIdentity) AuthorizeURL(oauthProvider, redirectTo string) string { return "" }

func (s *stubIdentity) ExchangeCode(ctx context.Context, code string) (*Session, *User, error) {
	return nil, nil, errors.New("not implemented")
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

// =========================================================================
// BEARER TOKEN PARSING
// =========================================================================

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"no header", "", "", false},
		{"wrong scheme", "Basic abc123", "", false},
		{"bearer with empty token", "Bearer ", "", false},
		{"bearer with spaces", "Bearer   tok123  ", "tok123", true},
		{"valid", "Bearer tok123", "tok123", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			got, ok := BearerToken(r)
			if got != tc.want || ok != tc.ok {
				t.Errorf("BearerToken = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

// =========================================================================
// AUTH MIDDLEWARE
// =========================================================================

func TestRequireAuth(t *testing.T) {
	alice := &User{ID: "user-1", Email: "alice@example.com"}
	identity := &stubIdentity{users: map[string]*User{"valid-token": alice}}

	var seenUser *User
	var seenToken string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = UserFromContext(r.Context())
		seenToken, _ = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	protected := RequireAuth(identity)(next)

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decodeErrorBody(t, rec)
		if body["error"] != "Authentication required. Please sign in." {
			t.Errorf("error = %q", body["error"])
		}
	})

	t.Run("dead token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer dead")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decodeErrorBody(t, rec)
		if body["error"] != "Session expired. Please sign in again." {
			t.Errorf("error = %q", body["error"])
		}
	})

	t.Run("valid token reaches the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if seenUser == nil || seenUser.ID != "user-1" {
			t.Errorf("context user = %+v", seenUser)
		}
		if seenToken != "valid-token" {
			t.Errorf("context token = %q", seenToken)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := RequireAdmin("op-key")(next)

	t.Run("missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decodeErrorBody(t, rec)
		if body["error"] != "Admin access required" {
			t.Errorf("error = %q", body["error"])
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.Header.Set("X-Admin-Key", "guess")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("correct key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.Header.Set("X-Admin-Key", "op-key")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestContextAccessorsWithoutMiddleware(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserFromContext(ctx); ok {
		t.Error("UserFromContext on a bare context must report absence")
	}
	if _, ok := TokenFromContext(ctx); ok {
		t.Error("TokenFromContext on a bare context must report absence")
	}
}
