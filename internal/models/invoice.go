package models

import (
	"fmt"
	"time"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusDraft    InvoiceStatus = "draft"
	StatusSent     InvoiceStatus = "sent"
	StatusPaid     InvoiceStatus = "paid"
	StatusOverdue  InvoiceStatus = "overdue"
	StatusCanceled InvoiceStatus = "canceled"
)

// ParseInvoiceStatus converts a user-supplied string to an InvoiceStatus.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch InvoiceStatus(s) {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCanceled:
		return InvoiceStatus(s), nil
	}
	return "", fmt.Errorf("unknown invoice status %q", s)
}

// allowed forward transitions: draft -> sent, sent -> paid/overdue,
// overdue -> paid, canceled from any non-paid state.
var statusTransitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:   {StatusSent, StatusCanceled},
	StatusSent:    {StatusPaid, StatusOverdue, StatusCanceled},
	StatusOverdue: {StatusPaid, StatusCanceled},
}

// CanTransitionTo reports whether the status machine permits moving from s
// to next.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Invoice is a billing document for one client over a date range.
// TaxRate is a percentage; TaxAmount and TaxRate are zero when no tax applies.
type Invoice struct {
	ID            int64             `json:"id"`
	ClientID      int64             `json:"client_id"`
	InvoiceNumber string            `json:"invoice_number"`
	IssueDate     time.Time         `json:"issue_date"`
	DueDate       time.Time         `json:"due_date"`
	Status        InvoiceStatus     `json:"status"`
	Notes         string            `json:"notes,omitempty"`
	Subtotal      float64           `json:"subtotal"`
	TaxRate       float64           `json:"tax_rate,omitempty"`
	TaxAmount     float64           `json:"tax_amount,omitempty"`
	TotalAmount   float64           `json:"total_amount"`
	Metadata      map[string]string `json:"metadata,omitempty"`

	// Populated by repository lookups that load relations.
	Items  []InvoiceItem `json:"items,omitempty"`
	Client *Client       `json:"client,omitempty"`
}

// HasTax reports whether a tax line applies.
func (i *Invoice) HasTax() bool {
	return i.TaxRate > 0
}
