// Package auth integrates the hosted identity/data provider's auth service.
//
// EVERYTHING IS DELEGATED:
// This application never hashes a password, never mints a token, and never
// decodes one. Accounts, sessions, and OAuth all live at the provider; this
// package is a typed doorway to it. The HTTP handlers and services talk to
// the Identity interface below, so tests can swap in a fake and the rest of
// the codebase stays free of SDK types.
//
// PROVIDER TOPOLOGY:
// The provider exposes its auth service under <base>/auth/v1 and its table
// store under <base>/rest/v1 of a single project URL. This package covers the
// auth half via the gotrue-go SDK; internal/repository/postgrest covers the
// table half.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// User is the slice of the provider's identity record the application needs.
// Metadata carries the provider's free-form user_metadata object (name,
// phone, company_name, avatar_url, OAuth profile fields).
type User struct {
	ID        string
	Email     string
	Phone     string
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MetaString returns a string value from the user metadata, or "" when the
// key is absent or not a string.
func (u *User) MetaString(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata[key].(string)
	return s
}

// DisplayName resolves the best available display name from the metadata.
// OAuth providers populate full_name; email signups populate name.
func (u *User) DisplayName() string {
	if name := u.MetaString("full_name"); name != "" {
		return name
	}
	return u.MetaString("name")
}

// Session is an access/refresh token pair minted by the provider. The tokens
// are opaque to the application — validation is always a provider round trip.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Identity is the provider surface the application consumes.
//
// WHY AN INTERFACE?
// Same reason the repositories are interfaces: the services and the
// middleware depend on this, tests inject a fake, and only Provider below
// knows the SDK exists.
type Identity interface {
	// SignUp registers a new email/password account. The returned user may
	// not yet have a usable session (email confirmation may be pending).
	SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*User, error)

	// SignInWithPassword performs the password grant.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, *User, error)

	// GetUser resolves an access token to its user. This is the per-request
	// validation call the auth middleware makes.
	GetUser(ctx context.Context, accessToken string) (*User, error)

	// RefreshSession rotates a refresh token into a fresh session.
	RefreshSession(ctx context.Context, refreshToken string) (*Session, *User, error)

	// SignOut invalidates the session behind the access token.
	SignOut(ctx context.Context, accessToken string) error

	// ResetPasswordForEmail asks the provider to send a recovery email.
	ResetPasswordForEmail(ctx context.Context, email string) error

	// UpdatePassword sets a new password for the token's user.
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error

	// UpdateMetadata merges data into the token's user metadata.
	UpdateMetadata(ctx context.Context, accessToken string, data map[string]interface{}) error

	// AuthorizeURL returns the provider-hosted OAuth authorization URL for
	// the named OAuth provider (e.g. "google").
	AuthorizeURL(oauthProvider, redirectTo string) string

	// ExchangeCode trades an OAuth authorization code for a session.
	ExchangeCode(ctx context.Context, code string) (*Session, *User, error)
}

// Provider implements Identity on top of the gotrue-go SDK.
//
// The zero-ish construction dance: the SDK derives its endpoint from a hosted
// project reference, which self-hosted and local deployments don't have, so
// we always override the URL explicitly.
type Provider struct {
	client  gotrue.Client
	baseURL string
	anonKey string
	httpc   *http.Client
}

var _ Identity = (*Provider)(nil)

// NewProvider creates a Provider for the project at baseURL using the
// anonymous API key. baseURL is the project root (e.g.
// https://abc.supabase.co or http://localhost:54321), not the auth path.
func NewProvider(baseURL, anonKey string) *Provider {
	base := strings.TrimRight(baseURL, "/")
	client := gotrue.New(projectRef(base), anonKey).WithCustomGoTrueURL(base + "/auth/v1")
	return &Provider{
		client:  client,
		baseURL: base,
		anonKey: anonKey,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// projectRef extracts the hosted project reference (first host label) so the
// SDK constructor has something to chew on. The value is irrelevant once the
// URL override is applied.
func projectRef(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Hostname() == "" {
		return "local"
	}
	return strings.SplitN(u.Hostname(), ".", 2)[0]
}

func (p *Provider) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*User, error) {
	resp, err := p.client.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data:     data,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("auth: provider signup: %w", err))
	}
	u := userFromTypes(resp.User)
	return &u, nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, *User, error) {
	resp, err := p.client.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, nil, classify(fmt.Errorf("auth: provider password signin: %w", err))
	}
	sess := sessionFromTypes(resp.Session)
	u := userFromTypes(resp.User)
	return &sess, &u, nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := p.client.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, classify(fmt.Errorf("auth: resolving token: %w", err))
	}
	u := userFromTypes(resp.User)
	return &u, nil
}

func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*Session, *User, error) {
	resp, err := p.client.RefreshToken(refreshToken)
	if err != nil {
		return nil, nil, classify(fmt.Errorf("auth: refreshing session: %w", err))
	}
	sess := sessionFromTypes(resp.Session)
	u := userFromTypes(resp.User)
	return &sess, &u, nil
}

func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	if err := p.client.WithToken(accessToken).Logout(); err != nil {
		return classify(fmt.Errorf("auth: provider signout: %w", err))
	}
	return nil
}

func (p *Provider) ResetPasswordForEmail(ctx context.Context, email string) error {
	if err := p.client.Recover(types.RecoverRequest{Email: email}); err != nil {
		return classify(fmt.Errorf("auth: requesting password recovery: %w", err))
	}
	return nil
}

func (p *Provider) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	_, err := p.client.WithToken(accessToken).UpdateUser(types.UpdateUserRequest{
		Password: &newPassword,
	})
	if err != nil {
		return classify(fmt.Errorf("auth: updating password: %w", err))
	}
	return nil
}

func (p *Provider) UpdateMetadata(ctx context.Context, accessToken string, data map[string]interface{}) error {
	_, err := p.client.WithToken(accessToken).UpdateUser(types.UpdateUserRequest{
		Data: data,
	})
	if err != nil {
		return classify(fmt.Errorf("auth: updating user metadata: %w", err))
	}
	return nil
}

// AuthorizeURL builds the provider-hosted authorization URL locally, the same
// way the provider's own JS client does — no network call is involved. The
// extra Google query parameters request a refresh token and force the consent
// screen so repeat signins behave like the first one.
func (p *Provider) AuthorizeURL(oauthProvider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", oauthProvider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	return p.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// exchangeResponse is the wire shape of the provider's token endpoint.
type exchangeResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID           string                 `json:"id"`
		Email        string                 `json:"email"`
		Phone        string                 `json:"phone"`
		UserMetadata map[string]interface{} `json:"user_metadata"`
		CreatedAt    time.Time              `json:"created_at"`
		UpdatedAt    time.Time              `json:"updated_at"`
	} `json:"user"`
}

// ExchangeCode trades an OAuth authorization code for a session via the
// provider's token endpoint. The SDK has no equivalent of the JS client's
// exchangeCodeForSession, so this is the one call made directly.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*Session, *User, error) {
	body, err := json.Marshal(map[string]string{"auth_code": code})
	if err != nil {
		return nil, nil, fmt.Errorf("auth: encoding code exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/auth/v1/token?grant_type=pkce", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("auth: building code exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+p.anonKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("auth: reading code exchange response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, classify(fmt.Errorf("auth: code exchange failed: %s", providerErrorMessage(raw, resp.StatusCode)))
	}

	var ex exchangeResponse
	if err := json.Unmarshal(raw, &ex); err != nil {
		return nil, nil, fmt.Errorf("auth: decoding code exchange response: %w", err)
	}
	if ex.AccessToken == "" || ex.User.ID == "" {
		return nil, nil, fmt.Errorf("auth: code exchange returned no session")
	}

	sess := &Session{
		AccessToken:  ex.AccessToken,
		RefreshToken: ex.RefreshToken,
		ExpiresIn:    ex.ExpiresIn,
		ExpiresAt:    ex.ExpiresAt,
	}
	user := &User{
		ID:        ex.User.ID,
		Email:     ex.User.Email,
		Phone:     ex.User.Phone,
		Metadata:  ex.User.UserMetadata,
		CreatedAt: ex.User.CreatedAt,
		UpdatedAt: ex.User.UpdatedAt,
	}
	return sess, user, nil
}

// providerErrorMessage digs the human-readable message out of a provider
// error payload, falling back to the raw status.
func providerErrorMessage(raw []byte, status int) string {
	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, m := range []string{payload.ErrorDescription, payload.Message, payload.Msg} {
			if m != "" {
				return m
			}
		}
	}
	return fmt.Sprintf("provider returned status %d", status)
}

func userFromTypes(u types.User) User {
	return User{
		ID:        u.ID.String(),
		Email:     u.Email,
		Phone:     u.Phone,
		Metadata:  u.UserMetadata,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func sessionFromTypes(s types.Session) Session {
	return Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    int(s.ExpiresIn),
		ExpiresAt:    int64(s.ExpiresAt),
	}
}
