package models

import "time"

// Project represents a client engagement. HourlyRate is the pricing input
// for invoice aggregation.
type Project struct {
	ID          int64      `json:"id"`
	ClientID    int64      `json:"client_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	HourlyRate  float64    `json:"hourly_rate"`
	IsActive    bool       `json:"is_active"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateProjectRequest struct {
	ClientID    int64      `json:"client_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	HourlyRate  float64    `json:"hourly_rate"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

func (r *CreateProjectRequest) Validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "project name is required"}
	}
	if r.ClientID <= 0 {
		return &ValidationError{Field: "client_id", Message: "client id is required"}
	}
	if r.HourlyRate < 0 {
		return &ValidationError{Field: "hourly_rate", Message: "hourly rate must not be negative"}
	}
	return nil
}

type UpdateProjectRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	HourlyRate  *float64 `json:"hourly_rate,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}
