package model

import "time"

// Invoice status values. The application treats status as a free-form string
// (client-supplied values are stored as-is); these constants exist for the
// defaults and for the stats summary buckets.
const (
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusOverdue = "overdue"
)

// DefaultCurrency is applied when a create request carries no currency.
const DefaultCurrency = "USD"

// InvoiceItem is a single line item on an invoice. The list is free-form:
// nothing cross-validates quantities or amounts against the invoice totals.
type InvoiceItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// Invoice represents a row in the "invoices" table. Every invoice is owned by
// exactly one user (UserID), and every query against the table carries a
// user_id filter — cross-user lookups come back "not found", never
// "forbidden", so the existence of other users' invoices never leaks.
//
// Numeric consistency (total = amount + tax) is NOT enforced server-side;
// the values are stored as the client supplied them.
type Invoice struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ClientName    string        `json:"client_name"`
	ClientEmail   string        `json:"client_email,omitempty"`
	ClientPhone   string        `json:"client_phone,omitempty"`
	InvoiceNumber string        `json:"invoice_number"`
	Amount        float64       `json:"amount"`
	TaxRate       float64       `json:"tax_rate"`
	TaxAmount     float64       `json:"tax_amount"`
	TotalAmount   float64       `json:"total_amount"`
	Currency      string        `json:"currency"`
	Status        string        `json:"status"`
	DueDate       *string       `json:"due_date"`
	Items         []InvoiceItem `json:"items"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// InvoiceStats is the payload of GET /api/invoices/stats/summary.
// Revenue counts only invoices whose status is "paid".
//
// ThisMonth and LastMonth are carried in the payload for API compatibility
// but are always zero — the original service never computed them.
type InvoiceStats struct {
	Total        int     `json:"total"`
	Paid         int     `json:"paid"`
	Pending      int     `json:"pending"`
	Overdue      int     `json:"overdue"`
	Draft        int     `json:"draft"`
	TotalRevenue float64 `json:"total_revenue"`
	ThisMonth    float64 `json:"this_month"`
	LastMonth    float64 `json:"last_month"`
}
