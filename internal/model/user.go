// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Plan names for the subscription_plan column. Only the free plan is ever
// assigned by this application; paid tiers are reserved for the billing UI.
const (
	PlanFree = "free"
)

// User represents a row in the application-owned "users" table.
//
// The identity itself (credentials, OAuth links, email confirmation state)
// lives at the provider. This row is the business-layer profile keyed by the
// provider's user id, created lazily on first successful signin/signup/OAuth
// callback ("get-or-create"). The counters are denormalized from the invoices
// table and are advisory — they get reconciled after invoice writes, not
// updated transactionally.
//
// WHY ID string (not a uuid type)?
// The provider issues opaque UUID strings. We never generate or compare ids
// structurally, so a string keeps the model free of provider types.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone,omitempty"`
	CompanyName      string    `json:"company_name,omitempty"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	SubscriptionPlan string    `json:"subscription_plan"`
	InvoiceCount     int       `json:"invoice_count"`
	ClientCount      int       `json:"client_count"`
	TotalRevenue     float64   `json:"total_revenue"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
