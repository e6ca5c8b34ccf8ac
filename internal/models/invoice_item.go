package models

import "math"

// amountEpsilon is the tolerance for the amount = quantity * rate invariant.
const amountEpsilon = 0.01

// InvoiceItem is one priced line on an invoice. Items are created during
// invoice generation and immutable afterwards.
type InvoiceItem struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	WorkLogID   *int64  `json:"work_log_id,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category,omitempty"`

	// Optional equity compensation component.
	EquityType        string  `json:"equity_type,omitempty"`
	EquityQuantity    float64 `json:"equity_quantity,omitempty"`
	EquityDescription string  `json:"equity_description,omitempty"`
}

// NewInvoiceItem validates and constructs a line item. The amount must agree
// with quantity * rate to within a cent; the mismatch is rejected rather than
// silently recomputed.
func NewInvoiceItem(description string, quantity float64, unit string, rate, amount float64, category string) (*InvoiceItem, error) {
	if description == "" {
		return nil, &ValidationError{Field: "description", Message: "description is required"}
	}
	if quantity < 0 {
		return nil, &ValidationError{Field: "quantity", Message: "quantity must not be negative"}
	}
	if rate < 0 {
		return nil, &ValidationError{Field: "rate", Message: "rate must not be negative"}
	}
	expected := Round2(quantity * rate)
	if math.Abs(amount-expected) > amountEpsilon {
		return nil, &ValidationError{Field: "amount", Message: "amount does not match quantity * rate"}
	}
	if unit == "" {
		unit = "hour"
	}
	return &InvoiceItem{
		Description: description,
		Quantity:    Round2(quantity),
		Unit:        unit,
		Rate:        rate,
		Amount:      Round2(amount),
		Category:    category,
	}, nil
}

// HasEquityComponent reports whether the item carries equity compensation.
func (i *InvoiceItem) HasEquityComponent() bool {
	return i.EquityType != "" && i.EquityQuantity > 0
}
