package service

import (
	"context"

	"github.com/sakif/billing-manager/internal/apperror"
	"github.com/sakif/billing-manager/internal/auth"
	"github.com/sakif/billing-manager/internal/model"
)

// OAuthIdentity is the browser-facing identity slice handed to the OAuth
// callback page; it is embedded in the postMessage payload and localStorage.
type OAuthIdentity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// OAuthResult is a completed OAuth signin.
type OAuthResult struct {
	Session *auth.Session
	User    OAuthIdentity
}

// GoogleAuthURL returns the provider-hosted Google authorization URL.
func (s *AuthService) GoogleAuthURL(redirectTo string) string {
	return s.identity.AuthorizeURL("google", redirectTo)
}

// CompleteOAuthCallback trades the authorization code for a session and
// ensures the profile row exists. OAuth arrivals are often first contact, so
// this is where most Google accounts get their profile.
func (s *AuthService) CompleteOAuthCallback(ctx context.Context, code string) (*OAuthResult, error) {
	sess, user, err := s.identity.ExchangeCode(ctx, code)
	if err != nil {
		s.logger.Error("OAuth code exchange failed", "error", err)
		return nil, apperror.Unauthorized("Session creation failed")
	}

	profile, err := s.getOrCreateProfile(ctx, sess.AccessToken, user, "Google User")
	if err != nil {
		// The session is good even if the profile row is not; the next
		// authenticated request will retry the create.
		s.logger.Warn("profile not resolved during OAuth callback", "user_id", user.ID, "error", err)
	}

	name := user.DisplayName()
	if profile != nil && profile.Name != "" {
		name = profile.Name
	}

	return &OAuthResult{
		Session: sess,
		User: OAuthIdentity{
			ID:        user.ID,
			Email:     user.Email,
			Name:      name,
			AvatarURL: user.MetaString("avatar_url"),
		},
	}, nil
}

// CompleteMobileCallback finishes an OAuth signin for native apps, which
// receive the tokens in their deep link and post them here. Either token is
// enough: an access token is validated directly, a refresh token is rotated
// into a fresh session.
func (s *AuthService) CompleteMobileCallback(ctx context.Context, accessToken, refreshToken string) (*Credentials, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, apperror.ValidationFailed("access_token", "Access token or refresh token required")
	}

	var (
		sess *auth.Session
		user *auth.User
	)
	if accessToken != "" {
		u, err := s.identity.GetUser(ctx, accessToken)
		if err != nil || u == nil || u.ID == "" {
			return nil, apperror.Unauthorized("User not found")
		}
		user = u
		sess = &auth.Session{AccessToken: accessToken, RefreshToken: refreshToken}
	} else {
		var err error
		sess, user, err = s.identity.RefreshSession(ctx, refreshToken)
		if err != nil || sess == nil || user == nil {
			return nil, apperror.Unauthorized("Invalid refresh token")
		}
	}

	profile, err := s.getOrCreateProfile(ctx, sess.AccessToken, user, "Google User")
	if err != nil {
		return nil, err
	}

	view := AccountView{
		ID:               user.ID,
		Email:            user.Email,
		Name:             firstNonEmpty(profile.Name, user.MetaString("name")),
		SubscriptionPlan: firstNonEmpty(profile.SubscriptionPlan, model.PlanFree),
	}
	setOptional(&view.AvatarURL, user.MetaString("avatar_url"))
	if !profile.CreatedAt.IsZero() {
		view.CreatedAt = &profile.CreatedAt
	}
	if !profile.UpdatedAt.IsZero() {
		view.UpdatedAt = &profile.UpdatedAt
	}

	return &Credentials{User: view, Session: sess}, nil
}
