// Package postgrest implements the repository interfaces against the hosted
// provider's table API.
//
// ROW-LEVEL SECURITY DOES THE HEAVY LIFTING:
// Every call builds a client carrying the caller's own access token, so the
// store's row-level policies see the real user and enforce ownership
// server-side. The explicit user_id filters in the queries are a second
// fence, not the only one.
package postgrest

import (
	"strings"

	"github.com/supabase-community/postgrest-go"
)

const (
	usersTable    = "users"
	invoicesTable = "invoices"
)

// Conn holds what it takes to build a table API client for one request.
type Conn struct {
	restURL string
	anonKey string
}

// NewConn creates a Conn for the project at baseURL (the project root, not
// the /rest/v1 path).
func NewConn(baseURL, anonKey string) *Conn {
	return &Conn{
		restURL: strings.TrimRight(baseURL, "/") + "/rest/v1",
		anonKey: anonKey,
	}
}

// client builds a per-request client. Clients are cheap — they hold a URL
// and headers — so building one per call keeps tokens from leaking between
// requests.
func (c *Conn) client(accessToken string) *postgrest.Client {
	token := accessToken
	if token == "" {
		token = c.anonKey
	}
	return postgrest.NewClient(c.restURL, "", map[string]string{
		"apikey":        c.anonKey,
		"Authorization": "Bearer " + token,
	})
}

// isDuplicate reports whether a table API error is a unique-constraint
// violation. The API only exposes the Postgres error as text, so this is a
// message check on the stable pieces (the SQLSTATE code and the standard
// message).
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
