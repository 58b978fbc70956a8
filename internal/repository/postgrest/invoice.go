package postgrest

import (
	"context"
	"fmt"

	"github.com/supabase-community/postgrest-go"

	"github.com/sakif/billing-manager/internal/apperror"
	"github.com/sakif/billing-manager/internal/model"
	"github.com/sakif/billing-manager/internal/repository"
)

// InvoiceRepo stores invoices in the invoices table. Every query carries a
// user_id filter, so a missing row and someone else's row are
// indistinguishable — both come back as not found.
type InvoiceRepo struct {
	conn *Conn
}

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

func NewInvoiceRepo(conn *Conn) *InvoiceRepo {
	return &InvoiceRepo{conn: conn}
}

func (r *InvoiceRepo) ListByUser(ctx context.Context, accessToken, userID string) ([]model.Invoice, error) {
	var rows []model.Invoice
	_, err := r.conn.client(accessToken).
		From(invoicesTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("postgrest: listing invoices: %w", err)
	}
	if rows == nil {
		rows = []model.Invoice{}
	}
	return rows, nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, accessToken, userID, invoiceID string) (*model.Invoice, error) {
	var rows []model.Invoice
	_, err := r.conn.client(accessToken).
		From(invoicesTable).
		Select("*", "", false).
		Eq("id", invoiceID).
		Eq("user_id", userID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("postgrest: fetching invoice %s: %w", invoiceID, err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("Invoice")
	}
	return &rows[0], nil
}

func (r *InvoiceRepo) Create(ctx context.Context, accessToken string, invoice *model.Invoice) (*model.Invoice, error) {
	var rows []model.Invoice
	_, err := r.conn.client(accessToken).
		From(invoicesTable).
		Insert(invoice, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		if isDuplicate(err) {
			return nil, apperror.Conflict("Invoice number already exists")
		}
		return nil, fmt.Errorf("postgrest: creating invoice: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("postgrest: creating invoice: no row returned")
	}
	return &rows[0], nil
}

func (r *InvoiceRepo) Update(ctx context.Context, accessToken, userID, invoiceID string, changes map[string]interface{}) (*model.Invoice, error) {
	var rows []model.Invoice
	_, err := r.conn.client(accessToken).
		From(invoicesTable).
		Update(changes, "representation", "").
		Eq("id", invoiceID).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("postgrest: updating invoice %s: %w", invoiceID, err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("Invoice")
	}
	return &rows[0], nil
}

func (r *InvoiceRepo) Delete(ctx context.Context, accessToken, userID, invoiceID string) error {
	var rows []model.Invoice
	_, err := r.conn.client(accessToken).
		From(invoicesTable).
		Delete("representation", "").
		Eq("id", invoiceID).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("postgrest: deleting invoice %s: %w", invoiceID, err)
	}
	if len(rows) == 0 {
		return apperror.NotFound("Invoice")
	}
	return nil
}
