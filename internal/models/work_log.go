package models

import (
	"math"
	"time"
)

// WorkLog represents a dated unit of effort on a project. InvoiceID is nil
// until the log is billed; invoice deletion clears it again.
type WorkLog struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	InvoiceID   *int64    `json:"invoice_id,omitempty"`
	WorkDate    time.Time `json:"work_date"`
	Hours       float64   `json:"hours"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Billable    bool      `json:"billable"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewWorkLog validates and constructs a work log. Hours must not be negative
// and are stored rounded to two decimals.
func NewWorkLog(projectID int64, workDate time.Time, hours float64, description, category string, billable bool, tags []string) (*WorkLog, error) {
	if projectID <= 0 {
		return nil, &ValidationError{Field: "project_id", Message: "project id is required"}
	}
	if workDate.IsZero() {
		return nil, &ValidationError{Field: "work_date", Message: "work date is required"}
	}
	if hours < 0 {
		return nil, &ValidationError{Field: "hours", Message: "hours must not be negative"}
	}
	if description == "" {
		return nil, &ValidationError{Field: "description", Message: "description is required"}
	}
	return &WorkLog{
		ProjectID:   projectID,
		WorkDate:    workDate,
		Hours:       Round2(hours),
		Description: description,
		Category:    category,
		Billable:    billable,
		Tags:        tags,
	}, nil
}

// Billed reports whether the log is already linked to an invoice.
func (w *WorkLog) Billed() bool {
	return w.InvoiceID != nil
}

type UpdateWorkLogRequest struct {
	WorkDate    *time.Time `json:"work_date,omitempty"`
	Hours       *float64   `json:"hours,omitempty"`
	Description *string    `json:"description,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Billable    *bool      `json:"billable,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// TouchesBilling reports whether the update changes fields that feed invoice
// math. Such updates on a billed log require explicit confirmation.
func (r *UpdateWorkLogRequest) TouchesBilling() bool {
	return r.WorkDate != nil || r.Hours != nil || r.Billable != nil
}

// Round2 rounds a monetary or hour value to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
