// Package repository defines the persistence interfaces for billing data.
//
// The backing store is the hosted provider's table API, but nothing here says
// so: services depend on these interfaces, and internal/repository/postgrest
// is the one package that knows how rows actually move. Swapping the store
// (or faking it in tests) never touches a service.
package repository

import (
	"context"

	"github.com/sakif/billing-manager/internal/model"
)

// ProfileRepository persists the application-owned user profile rows that
// shadow the provider's identity records.
type ProfileRepository interface {
	// GetByID fetches a profile by the provider-issued user id. Returns
	// apperror.ErrNotFound when no row exists.
	GetByID(ctx context.Context, accessToken, userID string) (*model.User, error)

	// GetByEmail fetches a profile by email. Returns apperror.ErrNotFound
	// when no row exists.
	GetByEmail(ctx context.Context, accessToken, email string) (*model.User, error)

	// Create inserts a new profile row. A duplicate id surfaces as
	// apperror.ErrConflict.
	Create(ctx context.Context, accessToken string, user *model.User) (*model.User, error)

	// Update applies a partial change set to the profile and returns the
	// updated row.
	Update(ctx context.Context, accessToken, userID string, changes map[string]interface{}) (*model.User, error)

	// SyncInvoiceStats asks the store to recalculate the profile's cached
	// invoice counters from the invoice table.
	SyncInvoiceStats(ctx context.Context, accessToken, userID string) error
}

// InvoiceRepository persists invoices. Every operation is scoped to a user
// id so one user's rows are invisible to another.
type InvoiceRepository interface {
	// ListByUser returns the user's invoices, newest first.
	ListByUser(ctx context.Context, accessToken, userID string) ([]model.Invoice, error)

	// GetByID fetches one invoice owned by the user. A missing row and a
	// row owned by someone else both return apperror.ErrNotFound.
	GetByID(ctx context.Context, accessToken, userID, invoiceID string) (*model.Invoice, error)

	// Create inserts a new invoice and returns the stored row.
	Create(ctx context.Context, accessToken string, invoice *model.Invoice) (*model.Invoice, error)

	// Update applies a partial change set to an invoice owned by the user
	// and returns the updated row. Returns apperror.ErrNotFound when the
	// user owns no such invoice.
	Update(ctx context.Context, accessToken, userID, invoiceID string, changes map[string]interface{}) (*model.Invoice, error)

	// Delete removes an invoice owned by the user. Returns
	// apperror.ErrNotFound when the user owns no such invoice.
	Delete(ctx context.Context, accessToken, userID, invoiceID string) error
}
