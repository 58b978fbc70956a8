package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/billing-manager/internal/apperror"
	"github.com/sakif/billing-manager/internal/model"
	"github.com/sakif/billing-manager/internal/repository"
)

// CreateInvoiceInput carries the invoice creation form. Numbers arrive as
// JSON numbers and are stored as given; amount arithmetic is the client's
// business.
type CreateInvoiceInput struct {
	ClientName    string              `json:"client_name"`
	ClientEmail   string              `json:"client_email"`
	ClientPhone   string              `json:"client_phone"`
	InvoiceNumber string              `json:"invoice_number"`
	Amount        float64             `json:"amount"`
	TaxRate       float64             `json:"tax_rate"`
	TaxAmount     float64             `json:"tax_amount"`
	TotalAmount   float64             `json:"total_amount"`
	Currency      string              `json:"currency"`
	Status        string              `json:"status"`
	DueDate       *string             `json:"due_date"`
	Items         []model.InvoiceItem `json:"items"`
	Notes         string              `json:"notes"`
}

// UpdateInvoiceInput carries a partial invoice update. Only the fields
// listed here are updatable; nil means "leave alone".
type UpdateInvoiceInput struct {
	ClientName  *string              `json:"client_name"`
	ClientEmail *string              `json:"client_email"`
	ClientPhone *string              `json:"client_phone"`
	Amount      *float64             `json:"amount"`
	Status      *string              `json:"status"`
	DueDate     *string              `json:"due_date"`
	Items       *[]model.InvoiceItem `json:"items"`
	Notes       *string              `json:"notes"`
}

// InvoiceService implements invoice CRUD and the dashboard stats.
type InvoiceService struct {
	invoices repository.InvoiceRepository
	profiles repository.ProfileRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewInvoiceService(invoices repository.InvoiceRepository, profiles repository.ProfileRepository, logger *slog.Logger) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns the user's invoices, newest first.
func (s *InvoiceService) List(ctx context.Context, accessToken, userID string) ([]model.Invoice, error) {
	return s.invoices.ListByUser(ctx, accessToken, userID)
}

// Get returns one invoice the user owns.
func (s *InvoiceService) Get(ctx context.Context, accessToken, userID, invoiceID string) (*model.Invoice, error) {
	if err := validInvoiceID(invoiceID); err != nil {
		return nil, err
	}
	return s.invoices.GetByID(ctx, accessToken, userID, invoiceID)
}

// validInvoiceID rejects ids the store could never hold. A malformed id
// reads the same as a missing invoice; the store's uuid parser never sees it.
func validInvoiceID(invoiceID string) error {
	if _, err := uuid.Parse(invoiceID); err != nil {
		return apperror.NotFound("Invoice")
	}
	return nil
}

// Create stores a new invoice, filling defaults for everything the client
// left out, and refreshes the profile's cached counters.
func (s *InvoiceService) Create(ctx context.Context, accessToken, userID string, in CreateInvoiceInput) (*model.Invoice, error) {
	clientName := strings.TrimSpace(in.ClientName)
	if clientName == "" || in.Amount == 0 {
		return nil, apperror.ValidationFailed("client_name", "Client name and amount are required")
	}

	now := s.now().UTC()

	invoice := &model.Invoice{
		UserID:        userID,
		ClientName:    clientName,
		ClientEmail:   strings.TrimSpace(in.ClientEmail),
		ClientPhone:   strings.TrimSpace(in.ClientPhone),
		InvoiceNumber: in.InvoiceNumber,
		Amount:        in.Amount,
		TaxRate:       in.TaxRate,
		TaxAmount:     in.TaxAmount,
		TotalAmount:   in.TotalAmount,
		Currency:      in.Currency,
		Status:        in.Status,
		DueDate:       in.DueDate,
		Items:         in.Items,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if invoice.InvoiceNumber == "" {
		invoice.InvoiceNumber = fmt.Sprintf("INV-%d", now.UnixMilli())
	}
	if invoice.TotalAmount == 0 {
		invoice.TotalAmount = invoice.Amount
	}
	if invoice.Currency == "" {
		invoice.Currency = model.DefaultCurrency
	}
	if invoice.Status == "" {
		invoice.Status = model.StatusDraft
	}
	if invoice.Items == nil {
		invoice.Items = []model.InvoiceItem{}
	}

	created, err := s.invoices.Create(ctx, accessToken, invoice)
	if err != nil {
		return nil, err
	}

	s.syncProfileStats(ctx, accessToken, userID)
	return created, nil
}

// Update applies a partial update to an invoice the user owns.
func (s *InvoiceService) Update(ctx context.Context, accessToken, userID, invoiceID string, in UpdateInvoiceInput) (*model.Invoice, error) {
	if err := validInvoiceID(invoiceID); err != nil {
		return nil, err
	}

	changes := map[string]interface{}{
		"updated_at": s.now().UTC().Format(time.RFC3339),
	}
	if in.ClientName != nil {
		changes["client_name"] = strings.TrimSpace(*in.ClientName)
	}
	if in.ClientEmail != nil {
		changes["client_email"] = nullableTrim(*in.ClientEmail)
	}
	if in.ClientPhone != nil {
		changes["client_phone"] = nullableTrim(*in.ClientPhone)
	}
	if in.Amount != nil {
		changes["amount"] = *in.Amount
	}
	if in.Status != nil {
		changes["status"] = *in.Status
	}
	if in.DueDate != nil {
		changes["due_date"] = *in.DueDate
	}
	if in.Items != nil {
		changes["items"] = *in.Items
	}
	if in.Notes != nil {
		changes["notes"] = nullableTrim(*in.Notes)
	}

	updated, err := s.invoices.Update(ctx, accessToken, userID, invoiceID, changes)
	if err != nil {
		return nil, err
	}

	s.syncProfileStats(ctx, accessToken, userID)
	return updated, nil
}

// Delete removes an invoice the user owns and refreshes the cached counters.
func (s *InvoiceService) Delete(ctx context.Context, accessToken, userID, invoiceID string) error {
	if err := validInvoiceID(invoiceID); err != nil {
		return err
	}
	if err := s.invoices.Delete(ctx, accessToken, userID, invoiceID); err != nil {
		return err
	}
	s.syncProfileStats(ctx, accessToken, userID)
	return nil
}

// Stats computes the dashboard summary from a single fetch of the user's
// invoices. Revenue counts paid invoices only.
func (s *InvoiceService) Stats(ctx context.Context, accessToken, userID string) (*model.InvoiceStats, error) {
	invoices, err := s.invoices.ListByUser(ctx, accessToken, userID)
	if err != nil {
		return nil, err
	}

	stats := &model.InvoiceStats{Total: len(invoices)}
	for _, inv := range invoices {
		switch inv.Status {
		case model.StatusPaid:
			stats.Paid++
			stats.TotalRevenue += inv.TotalAmount
		case model.StatusPending:
			stats.Pending++
		case model.StatusOverdue:
			stats.Overdue++
		case model.StatusDraft:
			stats.Draft++
		}
	}
	return stats, nil
}

// syncProfileStats refreshes the profile's cached invoice counters. The
// counters are advisory, so a failed refresh is logged and the write that
// triggered it still succeeds.
func (s *InvoiceService) syncProfileStats(ctx context.Context, accessToken, userID string) {
	if err := s.profiles.SyncInvoiceStats(ctx, accessToken, userID); err != nil {
		s.logger.Warn("invoice stats not refreshed", "user_id", userID, "error", err)
	}
}
