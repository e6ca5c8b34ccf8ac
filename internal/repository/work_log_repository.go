package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pritish3006/InvoiceAgent/internal/models"
)

type WorkLogRepository struct {
	db DBTX
}

func NewWorkLogRepository(db DBTX) *WorkLogRepository {
	return &WorkLogRepository{db: db}
}

func (r *WorkLogRepository) Create(log *models.WorkLog) (*models.WorkLog, error) {
	tags, err := json.Marshal(log.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO work_logs (project_id, work_date, hours, description, category, billable, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRow(
		query,
		log.ProjectID,
		formatDate(log.WorkDate),
		log.Hours,
		log.Description,
		nullString(log.Category),
		log.Billable,
		string(tags),
	).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create work log: %w", err)
	}
	return log, nil
}

const workLogColumns = `id, project_id, invoice_id, work_date, hours, description, category, billable, tags, created_at, updated_at`

func scanWorkLog(row interface{ Scan(...interface{}) error }) (*models.WorkLog, error) {
	var w models.WorkLog
	var invoiceID sql.NullInt64
	var workDate string
	var category sql.NullString
	var tags string
	err := row.Scan(
		&w.ID,
		&w.ProjectID,
		&invoiceID,
		&workDate,
		&w.Hours,
		&w.Description,
		&category,
		&w.Billable,
		&tags,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if invoiceID.Valid {
		w.InvoiceID = &invoiceID.Int64
	}
	if d, err := parseDate(workDate); err == nil {
		w.WorkDate = d
	}
	w.Category = category.String
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &w.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	return &w, nil
}

func (r *WorkLogRepository) GetByID(id int64) (*models.WorkLog, error) {
	row := r.db.QueryRow(`SELECT `+workLogColumns+` FROM work_logs WHERE id = ?`, id)
	log, err := scanWorkLog(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("work log %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work log: %w", err)
	}
	return log, nil
}

func (r *WorkLogRepository) GetByProjectID(projectID int64) ([]*models.WorkLog, error) {
	return r.queryWorkLogs(
		`SELECT `+workLogColumns+` FROM work_logs WHERE project_id = ? ORDER BY work_date, id`,
		projectID,
	)
}

func (r *WorkLogRepository) GetByClientID(clientID int64) ([]*models.WorkLog, error) {
	query := `
		SELECT w.id, w.project_id, w.invoice_id, w.work_date, w.hours, w.description,
		       w.category, w.billable, w.tags, w.created_at, w.updated_at
		FROM work_logs w
		JOIN projects p ON p.id = w.project_id
		WHERE p.client_id = ?
		ORDER BY w.work_date, w.id
	`
	return r.queryWorkLogs(query, clientID)
}

func (r *WorkLogRepository) GetByDateRange(start, end time.Time) ([]*models.WorkLog, error) {
	return r.queryWorkLogs(
		`SELECT `+workLogColumns+` FROM work_logs WHERE work_date >= ? AND work_date <= ? ORDER BY work_date, id`,
		formatDate(start), formatDate(end),
	)
}

func (r *WorkLogRepository) GetByInvoiceID(invoiceID int64) ([]*models.WorkLog, error) {
	return r.queryWorkLogs(
		`SELECT `+workLogColumns+` FROM work_logs WHERE invoice_id = ? ORDER BY work_date, id`,
		invoiceID,
	)
}

func (r *WorkLogRepository) GetUnbilled() ([]*models.WorkLog, error) {
	return r.queryWorkLogs(
		`SELECT ` + workLogColumns + ` FROM work_logs WHERE invoice_id IS NULL AND billable = 1 ORDER BY work_date, id`,
	)
}

// GetBillableUnbilled returns the logs eligible for invoicing: billable,
// not yet assigned to an invoice, dated within [start, end], and belonging
// to a project of the given client.
func (r *WorkLogRepository) GetBillableUnbilled(clientID int64, start, end time.Time) ([]*models.WorkLog, error) {
	query := `
		SELECT w.id, w.project_id, w.invoice_id, w.work_date, w.hours, w.description,
		       w.category, w.billable, w.tags, w.created_at, w.updated_at
		FROM work_logs w
		JOIN projects p ON p.id = w.project_id
		WHERE p.client_id = ?
		  AND w.invoice_id IS NULL
		  AND w.billable = 1
		  AND w.work_date >= ?
		  AND w.work_date <= ?
		ORDER BY w.work_date, w.id
	`
	return r.queryWorkLogs(query, clientID, formatDate(start), formatDate(end))
}

func (r *WorkLogRepository) queryWorkLogs(query string, args ...interface{}) ([]*models.WorkLog, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.WorkLog
	for rows.Next() {
		log, err := scanWorkLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work log: %w", err)
		}
		logs = append(logs, log)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return logs, nil
}

func (r *WorkLogRepository) Update(id int64, update *models.UpdateWorkLogRequest) (*models.WorkLog, error) {
	setParts := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{}

	if update.WorkDate != nil {
		if update.WorkDate.IsZero() {
			return nil, &models.ValidationError{Field: "work_date", Message: "work date is required"}
		}
		setParts = append(setParts, "work_date = ?")
		args = append(args, formatDate(*update.WorkDate))
	}
	if update.Hours != nil {
		if *update.Hours < 0 {
			return nil, &models.ValidationError{Field: "hours", Message: "hours must not be negative"}
		}
		setParts = append(setParts, "hours = ?")
		args = append(args, models.Round2(*update.Hours))
	}
	if update.Description != nil {
		if strings.TrimSpace(*update.Description) == "" {
			return nil, &models.ValidationError{Field: "description", Message: "description is required"}
		}
		setParts = append(setParts, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Category != nil {
		setParts = append(setParts, "category = ?")
		args = append(args, nullString(*update.Category))
	}
	if update.Billable != nil {
		setParts = append(setParts, "billable = ?")
		args = append(args, *update.Billable)
	}
	if update.Tags != nil {
		tags, err := json.Marshal(update.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags: %w", err)
		}
		setParts = append(setParts, "tags = ?")
		args = append(args, string(tags))
	}

	if len(setParts) == 1 {
		return r.GetByID(id)
	}

	setClause := strings.Join(setParts, ", ")
	args = append(args, id)
	result, err := r.db.Exec(fmt.Sprintf(`UPDATE work_logs SET %s WHERE id = ?`, setClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update work log: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("work log %d not found", id)
	}

	return r.GetByID(id)
}

func (r *WorkLogRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM work_logs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete work log: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("work log %d not found", id)
	}
	return nil
}

// AssignInvoice marks the given logs as billed on the given invoice.
func (r *WorkLogRepository) AssignInvoice(invoiceID int64, logIDs []int64) error {
	if len(logIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(logIDs))
	args := make([]interface{}, 0, len(logIDs)+1)
	args = append(args, invoiceID)
	for i, id := range logIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`UPDATE work_logs SET invoice_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (%s)`,
		strings.Join(placeholders, ", "),
	)
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to assign work logs to invoice: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != int64(len(logIDs)) {
		return fmt.Errorf("expected to assign %d work logs, assigned %d", len(logIDs), rowsAffected)
	}
	return nil
}

// ClearInvoice releases every log linked to the given invoice back to the
// unbilled pool.
func (r *WorkLogRepository) ClearInvoice(invoiceID int64) error {
	_, err := r.db.Exec(
		`UPDATE work_logs SET invoice_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE invoice_id = ?`,
		invoiceID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear invoice from work logs: %w", err)
	}
	return nil
}
