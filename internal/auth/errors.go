package auth

import (
	"errors"
	"strings"
)

// Sentinel errors for the provider failures the services branch on. The
// provider reports these only as message text, so classification is by
// substring — confined to this file so the rest of the codebase can use
// errors.Is like it would for any other sentinel.
var (
	// ErrInvalidCredentials: the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid login credentials")

	// ErrEmailNotConfirmed: the account exists but the address was never
	// verified.
	ErrEmailNotConfirmed = errors.New("email not confirmed")

	// ErrEmailTaken: signup hit an already-registered address.
	ErrEmailTaken = errors.New("email already registered")
)

// classify maps a provider error onto a sentinel when its message matches a
// known failure, and returns the error unchanged otherwise.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Invalid login credentials"):
		return ErrInvalidCredentials
	case strings.Contains(msg, "Email not confirmed"):
		return ErrEmailNotConfirmed
	case strings.Contains(msg, "already registered"), strings.Contains(msg, "already been registered"):
		return ErrEmailTaken
	}
	return err
}
