// Package service holds the business rules between the HTTP handlers and the
// provider/repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/billing-manager/internal/apperror"
	"github.com/sakif/billing-manager/internal/auth"
	"github.com/sakif/billing-manager/internal/model"
	"github.com/sakif/billing-manager/internal/repository"
)

// AccountView is the user object the auth endpoints return. Different
// endpoints populate different subsets; unset optional fields are omitted
// from the JSON.
type AccountView struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Phone            *string    `json:"phone,omitempty"`
	CompanyName      *string    `json:"company_name,omitempty"`
	SubscriptionPlan string     `json:"subscription_plan,omitempty"`
	AvatarURL        *string    `json:"avatar_url,omitempty"`
	InvoiceCount     *int       `json:"invoice_count,omitempty"`
	ClientCount      *int       `json:"client_count,omitempty"`
	TotalRevenue     *float64   `json:"total_revenue,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Credentials is a signed-in identity: the user view plus the provider
// session. Session is nil when signup succeeded but could not sign the user
// in (confirmation pending), in which case RequiresSignin is set.
type Credentials struct {
	User           AccountView   `json:"user"`
	Session        *auth.Session `json:"session,omitempty"`
	RequiresSignin bool          `json:"requires_signin,omitempty"`
}

// SignupInput carries the signup form fields.
type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name"`
}

// UpdateProfileInput carries a partial profile update. Nil means "leave
// alone"; a pointer to "" clears the field (name excepted — an empty name is
// ignored).
type UpdateProfileInput struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	CompanyName *string `json:"company_name"`
}

// AuthService implements signup, signin, sessions, and profile management on
// top of the identity provider and the profile repository.
//
// THE PROFILE SHADOW:
// The provider owns the account; we own a users-table row keyed by the
// provider's user id. The row is created lazily — on the first signin (of any
// kind) that finds it missing — so accounts created out-of-band (OAuth,
// console) heal themselves on arrival.
type AuthService struct {
	identity auth.Identity
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

func NewAuthService(identity auth.Identity, profiles repository.ProfileRepository, logger *slog.Logger) *AuthService {
	return &AuthService{
		identity: identity,
		profiles: profiles,
		logger:   logger,
	}
}

// normalizeEmail lowercases and trims the way every credential path must, so
// "Alice@Example.com " and "alice@example.com" are the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return email != "" && strings.Contains(email, "@")
}

// SignUp registers an account and, when the provider allows it, signs the
// user straight in.
func (s *AuthService) SignUp(ctx context.Context, in SignupInput) (*Credentials, error) {
	email := normalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, apperror.ValidationFailed("email", "Valid email is required")
	}
	password := strings.TrimSpace(in.Password)
	if len(password) < 6 {
		return nil, apperror.ValidationFailed("password", "Password must be at least 6 characters")
	}
	name := strings.TrimSpace(in.Name)
	if len(name) < 2 {
		return nil, apperror.ValidationFailed("name", "Name is required (min 2 characters)")
	}

	// The profile table sees every account regardless of how it was created,
	// so this catches addresses already used with OAuth too.
	if _, err := s.profiles.GetByEmail(ctx, "", email); err == nil {
		return nil, apperror.Conflict("Email already in use. This email may have been used with Google Sign-In. Please sign in instead.")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	metadata := map[string]interface{}{
		"name": name,
	}
	phone := strings.TrimSpace(in.Phone)
	if phone != "" {
		metadata["phone"] = phone
	}
	company := strings.TrimSpace(in.CompanyName)
	if company != "" {
		metadata["company_name"] = company
	}

	created, err := s.identity.SignUp(ctx, email, password, metadata)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			return nil, apperror.Conflict("Email already in use. This email may have been used with Google Sign-In. Please sign in instead.")
		}
		s.logger.Error("provider signup failed", "error", err)
		return nil, apperror.ValidationFailed("email", "Failed to create account")
	}

	// Sign in immediately so the client gets a usable session. When the
	// provider requires email confirmation first, hand back the account and
	// let the client send the user to the signin screen.
	sess, signedIn, err := s.identity.SignInWithPassword(ctx, email, password)
	if err != nil || sess == nil {
		return &Credentials{
			User: AccountView{
				ID:    created.ID,
				Email: created.Email,
				Name:  name,
			},
			RequiresSignin: true,
		}, nil
	}

	profile, err := s.getOrCreateProfile(ctx, sess.AccessToken, signedIn, name)
	if err != nil {
		return nil, err
	}

	view := AccountView{
		ID:               signedIn.ID,
		Email:            signedIn.Email,
		Name:             firstNonEmpty(signedIn.MetaString("name"), name),
		SubscriptionPlan: firstNonEmpty(profile.SubscriptionPlan, model.PlanFree),
	}
	setOptional(&view.Phone, firstNonEmpty(signedIn.MetaString("phone"), phone))
	setOptional(&view.CompanyName, firstNonEmpty(signedIn.MetaString("company_name"), company))
	if !profile.CreatedAt.IsZero() {
		view.CreatedAt = &profile.CreatedAt
	}

	return &Credentials{User: view, Session: sess}, nil
}

// SignIn performs the password grant and resolves the profile row.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, apperror.ValidationFailed("email", "Valid email is required")
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return nil, apperror.ValidationFailed("password", "Password is required")
	}

	sess, user, err := s.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			// An existing profile with no working password almost always
			// means the account came in through OAuth. Say so instead of
			// the generic rejection.
			if _, perr := s.profiles.GetByEmail(ctx, "", email); perr == nil {
				return nil, apperror.Unauthorized("This email is registered with Google Sign-In. Please use Google Sign-In instead or reset your password.")
			}
			return nil, apperror.Unauthorized("Invalid email or password")
		case errors.Is(err, auth.ErrEmailNotConfirmed):
			return nil, apperror.Forbidden("Please verify your email first")
		default:
			s.logger.Error("provider signin failed", "error", err)
			return nil, apperror.Unauthorized("Sign in failed")
		}
	}
	if sess == nil || user == nil {
		return nil, apperror.Unauthorized("Authentication failed")
	}

	profile, err := s.getOrCreateProfile(ctx, sess.AccessToken, user, "User")
	if err != nil {
		return nil, err
	}

	view := AccountView{
		ID:               user.ID,
		Email:            user.Email,
		Name:             firstNonEmpty(profile.Name, user.MetaString("name")),
		SubscriptionPlan: firstNonEmpty(profile.SubscriptionPlan, model.PlanFree),
	}
	setOptional(&view.Phone, firstNonEmpty(profile.Phone, user.MetaString("phone")))
	setOptional(&view.CompanyName, firstNonEmpty(profile.CompanyName, user.MetaString("company_name")))
	if !profile.CreatedAt.IsZero() {
		view.CreatedAt = &profile.CreatedAt
	}

	return &Credentials{User: view, Session: sess}, nil
}

// Profile assembles the full profile view: the users-table row plus the
// avatar held only in provider metadata.
func (s *AuthService) Profile(ctx context.Context, accessToken string, user *auth.User) (*AccountView, error) {
	profile, err := s.profiles.GetByID(ctx, accessToken, user.ID)
	if err != nil {
		return nil, err
	}

	view := AccountView{
		ID:               user.ID,
		Email:            user.Email,
		Name:             profile.Name,
		SubscriptionPlan: profile.SubscriptionPlan,
		InvoiceCount:     &profile.InvoiceCount,
		ClientCount:      &profile.ClientCount,
		TotalRevenue:     &profile.TotalRevenue,
	}
	setOptional(&view.Phone, profile.Phone)
	setOptional(&view.CompanyName, profile.CompanyName)
	setOptional(&view.AvatarURL, user.MetaString("avatar_url"))
	if !profile.CreatedAt.IsZero() {
		view.CreatedAt = &profile.CreatedAt
	}
	if !profile.UpdatedAt.IsZero() {
		view.UpdatedAt = &profile.UpdatedAt
	}
	return &view, nil
}

// UpdateProfile applies a partial update to the profile row and mirrors a
// name change into the provider metadata.
func (s *AuthService) UpdateProfile(ctx context.Context, accessToken string, user *auth.User, in UpdateProfileInput) (*model.User, error) {
	changes := map[string]interface{}{
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		changes["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		changes["phone"] = nullableTrim(*in.Phone)
	}
	if in.CompanyName != nil {
		changes["company_name"] = nullableTrim(*in.CompanyName)
	}

	profile, err := s.profiles.Update(ctx, accessToken, user.ID, changes)
	if err != nil {
		return nil, err
	}

	// The metadata copy of the name is what /auth/check serves, so keep it
	// in step. Failing to push it is not worth failing the update over.
	if name, ok := changes["name"].(string); ok {
		if err := s.identity.UpdateMetadata(ctx, accessToken, map[string]interface{}{"name": name}); err != nil {
			s.logger.Warn("profile name not mirrored to provider metadata", "user_id", user.ID, "error", err)
		}
	}

	return profile, nil
}

// SignOut invalidates the session. A missing token is not an error: the
// client's goal state (no session) already holds.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := s.identity.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("provider signout failed", "error", err)
	}
	return nil
}

// Refresh rotates a refresh token into a new session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	if refreshToken == "" {
		return nil, apperror.ValidationFailed("refresh_token", "Refresh token is required")
	}
	sess, _, err := s.identity.RefreshSession(ctx, refreshToken)
	if err != nil || sess == nil {
		return nil, apperror.Unauthorized("Invalid or expired refresh token")
	}
	return sess, nil
}

// RequestPasswordReset asks the provider to mail reset instructions. The
// response never discloses whether the account exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return apperror.ValidationFailed("email", "Valid email is required")
	}
	if err := s.identity.ResetPasswordForEmail(ctx, email); err != nil {
		s.logger.Error("password reset request failed", "error", err)
		return apperror.ValidationFailed("email", "Failed to process reset request")
	}
	return nil
}

// UpdatePassword sets a new password, optionally verifying the current one
// by attempting a signin with it first.
func (s *AuthService) UpdatePassword(ctx context.Context, accessToken string, user *auth.User, currentPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return apperror.ValidationFailed("new_password", "New password must be at least 6 characters")
	}
	if user == nil || user.Email == "" {
		return apperror.Unauthorized("User not found")
	}

	if currentPassword != "" {
		if _, _, err := s.identity.SignInWithPassword(ctx, user.Email, currentPassword); err != nil {
			return apperror.Unauthorized("Current password is incorrect")
		}
	}

	if err := s.identity.UpdatePassword(ctx, accessToken, strings.TrimSpace(newPassword)); err != nil {
		s.logger.Error("password update failed", "user_id", user.ID, "error", err)
		return apperror.ValidationFailed("new_password", "Failed to update password")
	}
	return nil
}

// ValidateToken resolves an access token to its user, or nil when the token
// is missing or dead. Used by the non-failing session check endpoint.
func (s *AuthService) ValidateToken(ctx context.Context, accessToken string) *auth.User {
	if accessToken == "" {
		return nil
	}
	user, err := s.identity.GetUser(ctx, accessToken)
	if err != nil || user == nil || user.ID == "" {
		return nil
	}
	return user
}

// getOrCreateProfile fetches the profile row, creating it when absent. A
// create that loses a race to a concurrent request falls back to re-reading
// the winner's row.
func (s *AuthService) getOrCreateProfile(ctx context.Context, accessToken string, user *auth.User, fallbackName string) (*model.User, error) {
	profile, err := s.profiles.GetByID(ctx, accessToken, user.ID)
	if err == nil {
		return profile, nil
	}
	if !errorsIsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	row := &model.User{
		ID:               user.ID,
		Email:            user.Email,
		Name:             firstNonEmpty(user.DisplayName(), fallbackName),
		Phone:            user.MetaString("phone"),
		CompanyName:      user.MetaString("company_name"),
		AvatarURL:        user.MetaString("avatar_url"),
		SubscriptionPlan: model.PlanFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.profiles.Create(ctx, accessToken, row)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return s.profiles.GetByID(ctx, accessToken, user.ID)
		}
		return nil, fmt.Errorf("creating profile for %s: %w", user.ID, err)
	}
	return created, nil
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// setOptional points dst at value unless it is empty.
func setOptional(dst **string, value string) {
	if value != "" {
		v := value
		*dst = &v
	}
}

// nullableTrim trims a string, mapping the empty result to SQL null.
func nullableTrim(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
