package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/billing-manager/internal/apperror"
	"github.com/sakif/billing-manager/internal/auth"
	"github.com/sakif/billing-manager/internal/handler"
	"github.com/sakif/billing-manager/internal/model"
	"github.com/sakif/billing-manager/internal/service"
)

// ============================================
// MOCKS AND HELPERS
// ============================================

// mockIdentity implements auth.Identity with canned responses. Tokens listed
// in Users are valid; everything else is rejected.
type mockIdentity struct {
	Users        map[string]*auth.User
	SignUpUser   *auth.User
	SignUpErr    error
	SignInSess   *auth.Session
	SignInUser   *auth.User
	SignInErr    error
	RefreshSess  *auth.Session
	RefreshUser  *auth.User
	RefreshErr   error
	ExchangeSess *auth.Session
	ExchangeUser *auth.User
	ExchangeErr  error
}

func (m *mockIdentity) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*auth.User, error) {
	return m.SignUpUser, m.SignUpErr
}

func (m *mockIdentity) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, *auth.User, error) {
	if m.SignInErr != nil {
		return nil, nil, m.SignInErr
	}
	return m.SignInSess, m.SignInUser, nil
}

func (m *mockIdentity) GetUser(ctx context.Context, accessToken string) (*auth.User, error) {
	if u, ok := m.Users[accessToken]; ok {
		return u, nil
	}
	return nil, errors.New("invalid token")
}

func (m *mockIdentity) RefreshSession(ctx context.Context, refreshToken string) (*auth.Session, *auth.User, error) {
	if m.RefreshErr != nil {
		return nil, nil, m.RefreshErr
	}
	return m.RefreshSess, m.RefreshUser, nil
}

func (m *mockIdentity) SignOut(ctx context.Context, accessToken string) error { return nil }

func (m *mockIdentity) ResetPasswordForEmail(ctx context.Context, email string) error { return nil }

func (m *mockIdentity) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	return nil
}

func (m *mockIdentity) UpdateMetadata(ctx context.Context, accessToken string, data map[string]interface{}) error {
	return nil
}

func (m *mockIdentity) AuthorizeURL(oauthProvider, redirectTo string) string {
	return "https://provider.test/auth/v1/authorize?provider=" + oauthProvider + "&redirect_to=" + redirectTo
}

func (m *mockIdentity) ExchangeCode(ctx context.Context, code string) (*auth.Session, *auth.User, error) {
	if m.ExchangeErr != nil {
		return nil, nil, m.ExchangeErr
	}
	return m.ExchangeSess, m.ExchangeUser, nil
}

// mockProfiles is an in-memory profile store keyed by user id.
type mockProfiles struct {
	Rows map[string]*model.User
}

func newMockProfiles() *mockProfiles {
	return &mockProfiles{Rows: make(map[string]*model.User)}
}

func (m *mockProfiles) GetByID(ctx context.Context, accessToken, userID string) (*model.User, error) {
	if p, ok := m.Rows[userID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, apperror.NotFound("Profile")
}

func (m *mockProfiles) GetByEmail(ctx context.Context, accessToken, email string) (*model.User, error) {
	for _, p := range m.Rows {
		if p.Email == email {
			copied := *p
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("Profile")
}

func (m *mockProfiles) Create(ctx context.Context, accessToken string, user *model.User) (*model.User, error) {
	copied := *user
	m.Rows[user.ID] = &copied
	result := copied
	return &result, nil
}

func (m *mockProfiles) Update(ctx context.Context, accessToken, userID string, changes map[string]interface{}) (*model.User, error) {
	p, ok := m.Rows[userID]
	if !ok {
		return nil, apperror.NotFound("Profile")
	}
	if name, ok := changes["name"].(string); ok {
		p.Name = name
	}
	copied := *p
	return &copied, nil
}

func (m *mockProfiles) SyncInvoiceStats(ctx context.Context, accessToken, userID string) error {
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newAuthRouter wires the auth endpoints the way the server does, protected
// routes behind the auth middleware.
func newAuthRouter(identity auth.Identity, profiles *mockProfiles) http.Handler {
	svc := service.NewAuthService(identity, profiles, quietLogger())
	h := handler.NewAuthHandler(svc, nil, true)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/signin", h.Signin)
		r.Post("/signout", h.Signout)
		r.Post("/refresh", h.Refresh)
		r.Get("/check", h.Check)
		r.Get("/providers", h.Providers)
		r.Post("/google", h.GoogleAuth)
		r.Get("/google/url", h.GoogleURL)
		r.Post("/google/callback", h.GoogleCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(identity))
			r.Get("/profile", h.Profile)
			r.Put("/profile", h.UpdateProfile)
			r.Put("/update-password", h.UpdatePassword)
		})
	})
	return r
}

// doRequest runs a request through the router and decodes the JSON body into
// a generic map.
func doRequest(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, decoded
}

func sessionFixture() *auth.Session {
	return &auth.Session{AccessToken: "valid-token", RefreshToken: "valid-refresh", ExpiresIn: 3600}
}

func userFixture() *auth.User {
	return &auth.User{
		ID:    "user-1",
		Email: "alice@example.com",
		Metadata: map[string]interface{}{
			"name": "Alice",
		},
	}
}

// ============================================
// SIGNUP / SIGNIN
// ============================================

func TestSignupEndpoint(t *testing.T) {
	t.Run("invalid JSON body", func(t *testing.T) {
		router := newAuthRouter(&mockIdentity{}, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signup", "{not json", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Invalid request body", body["error"])
	})

	t.Run("validation failure", func(t *testing.T) {
		router := newAuthRouter(&mockIdentity{}, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signup",
			`{"email":"nope","password":"secret1","name":"Alice"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Valid email is required", body["error"])
	})

	t.Run("success with immediate session", func(t *testing.T) {
		identity := &mockIdentity{
			SignUpUser: userFixture(),
			SignInSess: sessionFixture(),
			SignInUser: userFixture(),
		}
		router := newAuthRouter(identity, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signup",
			`{"email":"alice@example.com","password":"secret1","name":"Alice"}`, nil)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Account created and signed in successfully!", body["message"])

		data := body["data"].(map[string]interface{})
		session := data["session"].(map[string]interface{})
		assert.Equal(t, "valid-token", session["access_token"])
		user := data["user"].(map[string]interface{})
		assert.Equal(t, "alice@example.com", user["email"])
	})

	t.Run("confirmation pending", func(t *testing.T) {
		identity := &mockIdentity{
			SignUpUser: userFixture(),
			SignInErr:  errors.New("email confirmation pending"),
		}
		router := newAuthRouter(identity, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signup",
			`{"email":"alice@example.com","password":"secret1","name":"Alice"}`, nil)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Account created! Please sign in.", body["message"])
		data := body["data"].(map[string]interface{})
		assert.Equal(t, true, data["requires_signin"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		profiles := newMockProfiles()
		profiles.Rows["other"] = &model.User{ID: "other", Email: "alice@example.com"}
		router := newAuthRouter(&mockIdentity{}, profiles)
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signup",
			`{"email":"alice@example.com","password":"secret1","name":"Alice"}`, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, body["error"], "Email already in use")
	})
}

func TestSigninEndpoint(t *testing.T) {
	t.Run("wrong credentials", func(t *testing.T) {
		identity := &mockIdentity{SignInErr: auth.ErrInvalidCredentials}
		router := newAuthRouter(identity, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signin",
			`{"email":"alice@example.com","password":"wrong"}`, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", body["error"])
	})

	t.Run("missing password", func(t *testing.T) {
		router := newAuthRouter(&mockIdentity{}, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signin",
			`{"email":"alice@example.com"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Password is required", body["error"])
	})

	t.Run("unconfirmed email", func(t *testing.T) {
		identity := &mockIdentity{SignInErr: auth.ErrEmailNotConfirmed}
		router := newAuthRouter(identity, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signin",
			`{"email":"alice@example.com","password":"secret1"}`, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Please verify your email first", body["error"])
	})

	t.Run("success", func(t *testing.T) {
		identity := &mockIdentity{SignInSess: sessionFixture(), SignInUser: userFixture()}
		router := newAuthRouter(identity, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signin",
			`{"email":"alice@example.com","password":"secret1"}`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Signed in successfully", body["message"])
	})
}

// ============================================
// SESSION ENDPOINTS
// ============================================

func TestCheckEndpoint(t *testing.T) {
	identity := &mockIdentity{Users: map[string]*auth.User{"valid-token": userFixture()}}
	router := newAuthRouter(identity, newMockProfiles())

	t.Run("no token", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodGet, "/api/auth/check", "", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, false, body["valid"])
		assert.Equal(t, "No token provided", body["error"])
		// The user key must be present and explicitly null.
		userValue, present := body["user"]
		assert.True(t, present)
		assert.Nil(t, userValue)
	})

	t.Run("dead token", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodGet, "/api/auth/check", "",
			map[string]string{"Authorization": "Bearer dead"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["valid"])
	})

	t.Run("valid token", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodGet, "/api/auth/check", "",
			map[string]string{"Authorization": "Bearer valid-token"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["valid"])
		user := body["user"].(map[string]interface{})
		assert.Equal(t, "user-1", user["id"])
		assert.Equal(t, "Alice", user["name"])
	})
}

func TestSignoutEndpoint(t *testing.T) {
	router := newAuthRouter(&mockIdentity{}, newMockProfiles())
	rec, body := doRequest(t, router, http.MethodPost, "/api/auth/signout", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Signed out successfully", body["message"])
}

func TestRefreshEndpoint(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		router := newAuthRouter(&mockIdentity{}, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/refresh", `{}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Refresh token is required", body["error"])
	})

	t.Run("rotation", func(t *testing.T) {
		identity := &mockIdentity{RefreshSess: sessionFixture(), RefreshUser: userFixture()}
		router := newAuthRouter(identity, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/refresh",
			`{"refresh_token":"old"}`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "valid-token", data["access_token"])
	})
}

func TestProvidersEndpoint(t *testing.T) {
	router := newAuthRouter(&mockIdentity{}, newMockProfiles())
	rec, body := doRequest(t, router, http.MethodGet, "/api/auth/providers", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"email", "google"}, data["providers"])
	assert.Equal(t, true, data["google_configured"])
}

// ============================================
// PROTECTED PROFILE ENDPOINTS
// ============================================

func TestProfileEndpoint(t *testing.T) {
	identity := &mockIdentity{Users: map[string]*auth.User{"valid-token": userFixture()}}
	profiles := newMockProfiles()
	profiles.Rows["user-1"] = &model.User{
		ID:               "user-1",
		Email:            "alice@example.com",
		Name:             "Alice",
		SubscriptionPlan: model.PlanFree,
	}
	router := newAuthRouter(identity, profiles)

	t.Run("no auth header", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodGet, "/api/auth/profile", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Authentication required. Please sign in.", body["error"])
	})

	t.Run("dead token", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodGet, "/api/auth/profile", "",
			map[string]string{"Authorization": "Bearer dead"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Session expired. Please sign in again.", body["error"])
	})

	t.Run("fetch", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodGet, "/api/auth/profile", "",
			map[string]string{"Authorization": "Bearer valid-token"})

		assert.Equal(t, http.StatusOK, rec.Code)
		data := body["data"].(map[string]interface{})
		user := data["user"].(map[string]interface{})
		assert.Equal(t, "Alice", user["name"])
		assert.Equal(t, model.PlanFree, user["subscription_plan"])
	})

	t.Run("update", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodPut, "/api/auth/profile",
			`{"name":"Alice Updated"}`,
			map[string]string{"Authorization": "Bearer valid-token"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Profile updated successfully", body["message"])
		data := body["data"].(map[string]interface{})
		user := data["user"].(map[string]interface{})
		assert.Equal(t, "Alice Updated", user["name"])
	})
}

func TestUpdatePasswordEndpoint(t *testing.T) {
	identity := &mockIdentity{Users: map[string]*auth.User{"valid-token": userFixture()}}
	router := newAuthRouter(identity, newMockProfiles())

	t.Run("too short", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodPut, "/api/auth/update-password",
			`{"new_password":"123"}`,
			map[string]string{"Authorization": "Bearer valid-token"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "New password must be at least 6 characters", body["error"])
	})

	t.Run("success", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodPut, "/api/auth/update-password",
			`{"new_password":"new-secret"}`,
			map[string]string{"Authorization": "Bearer valid-token"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Password updated successfully", body["message"])
	})
}

// ============================================
// GOOGLE OAUTH ENDPOINTS
// ============================================

func TestGoogleAuthEndpoint(t *testing.T) {
	router := newAuthRouter(&mockIdentity{}, newMockProfiles())

	t.Run("default redirect from origin", func(t *testing.T) {
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/google", `{}`,
			map[string]string{"Origin": "http://localhost:5173"})

		assert.Equal(t, http.StatusOK, rec.Code)
		data := body["data"].(map[string]interface{})
		url := data["url"].(string)
		assert.Contains(t, url, "provider=google")
		assert.Contains(t, url, "redirect_to=http://localhost:5173/api/auth/callback")
	})

	t.Run("explicit redirect", func(t *testing.T) {
		_, body := doRequest(t, router, http.MethodPost, "/api/auth/google",
			`{"redirect_to":"https://app.example/cb"}`, nil)

		data := body["data"].(map[string]interface{})
		assert.Contains(t, data["url"], "redirect_to=https://app.example/cb")
	})
}

func TestGoogleURLEndpoint(t *testing.T) {
	router := newAuthRouter(&mockIdentity{}, newMockProfiles())
	rec, body := doRequest(t, router, http.MethodGet, "/api/auth/google/url", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "myapp://auth-callback", data["redirect_to"])
	assert.Contains(t, data["auth_url"], "redirect_to=myapp://auth-callback")
}

func TestGoogleCallbackEndpoint(t *testing.T) {
	t.Run("mobile tokens accepted", func(t *testing.T) {
		identity := &mockIdentity{Users: map[string]*auth.User{"mob-tok": userFixture()}}
		router := newAuthRouter(identity, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/google/callback",
			`{"access_token":"mob-tok","refresh_token":"mob-ref"}`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Google authentication successful", body["message"])
		data := body["data"].(map[string]interface{})
		session := data["session"].(map[string]interface{})
		assert.Equal(t, "mob-tok", session["access_token"])
	})

	t.Run("no tokens", func(t *testing.T) {
		router := newAuthRouter(&mockIdentity{}, newMockProfiles())
		rec, body := doRequest(t, router, http.MethodPost, "/api/auth/google/callback", `{}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Access token or refresh token required", body["error"])
	})
}
