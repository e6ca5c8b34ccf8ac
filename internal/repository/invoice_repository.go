package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pritish3006/InvoiceAgent/internal/models"
)

type InvoiceRepository struct {
	db DBTX
}

func NewInvoiceRepository(db DBTX) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts the invoice and its items. Item IDs and the invoice ID are
// filled in on the passed struct. Run inside a transaction when the caller
// also assigns work logs.
func (r *InvoiceRepository) Create(invoice *models.Invoice) (*models.Invoice, error) {
	metadata := "{}"
	if len(invoice.Metadata) > 0 {
		raw, err := json.Marshal(invoice.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = string(raw)
	}

	query := `
		INSERT INTO invoices (client_id, invoice_number, issue_date, due_date, status,
			notes, subtotal, tax_rate, tax_amount, total_amount, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := r.db.QueryRow(
		query,
		invoice.ClientID,
		invoice.InvoiceNumber,
		formatDate(invoice.IssueDate),
		formatDate(invoice.DueDate),
		string(invoice.Status),
		nullString(invoice.Notes),
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.TotalAmount,
		metadata,
	).Scan(&invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	for i := range invoice.Items {
		item := &invoice.Items[i]
		item.InvoiceID = invoice.ID
		if err := r.createItem(item); err != nil {
			return nil, err
		}
	}
	return invoice, nil
}

func (r *InvoiceRepository) createItem(item *models.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (invoice_id, work_log_id, description, quantity, unit,
			rate, amount, category, equity_type, equity_quantity, equity_description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	var workLogID interface{}
	if item.WorkLogID != nil {
		workLogID = *item.WorkLogID
	}
	err := r.db.QueryRow(
		query,
		item.InvoiceID,
		workLogID,
		item.Description,
		item.Quantity,
		nullString(item.Unit),
		item.Rate,
		item.Amount,
		nullString(item.Category),
		nullString(item.EquityType),
		item.EquityQuantity,
		nullString(item.EquityDescription),
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create invoice item: %w", err)
	}
	return nil
}

const invoiceColumns = `id, client_id, invoice_number, issue_date, due_date, status, notes, subtotal, tax_rate, tax_amount, total_amount, metadata`

func scanInvoice(row interface{ Scan(...interface{}) error }) (*models.Invoice, error) {
	var inv models.Invoice
	var issueDate, dueDate, status string
	var notes, metadata sql.NullString
	err := row.Scan(
		&inv.ID,
		&inv.ClientID,
		&inv.InvoiceNumber,
		&issueDate,
		&dueDate,
		&status,
		&notes,
		&inv.Subtotal,
		&inv.TaxRate,
		&inv.TaxAmount,
		&inv.TotalAmount,
		&metadata,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = models.InvoiceStatus(status)
	inv.Notes = notes.String
	if d, err := parseDate(issueDate); err == nil {
		inv.IssueDate = d
	}
	if d, err := parseDate(dueDate); err == nil {
		inv.DueDate = d
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "{}" {
		if err := json.Unmarshal([]byte(metadata.String), &inv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &inv, nil
}

func (r *InvoiceRepository) GetByID(id int64) (*models.Invoice, error) {
	row := r.db.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	invoice, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

func (r *InvoiceRepository) GetByNumber(number string) (*models.Invoice, error) {
	row := r.db.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = ?`, number)
	invoice, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice %q not found", number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// GetWithItems loads the invoice together with its line items and client.
func (r *InvoiceRepository) GetWithItems(id int64) (*models.Invoice, error) {
	invoice, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	items, err := r.GetItems(id)
	if err != nil {
		return nil, err
	}
	invoice.Items = items

	clientRow := r.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE id = ?`, invoice.ClientID)
	client, err := scanClient(clientRow)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load invoice client: %w", err)
	}
	invoice.Client = client

	return invoice, nil
}

func (r *InvoiceRepository) GetItems(invoiceID int64) ([]models.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, work_log_id, description, quantity, unit, rate, amount,
		       category, equity_type, equity_quantity, equity_description
		FROM invoice_items WHERE invoice_id = ? ORDER BY id
	`
	rows, err := r.db.Query(query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	var items []models.InvoiceItem
	for rows.Next() {
		var item models.InvoiceItem
		var workLogID sql.NullInt64
		var unit, category, equityType, equityDesc sql.NullString
		err := rows.Scan(
			&item.ID,
			&item.InvoiceID,
			&workLogID,
			&item.Description,
			&item.Quantity,
			&unit,
			&item.Rate,
			&item.Amount,
			&category,
			&equityType,
			&item.EquityQuantity,
			&equityDesc,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		if workLogID.Valid {
			item.WorkLogID = &workLogID.Int64
		}
		item.Unit = unit.String
		item.Category = category.String
		item.EquityType = equityType.String
		item.EquityDescription = equityDesc.String
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return items, nil
}

// ListFilter narrows List results. Zero values mean no constraint.
type ListFilter struct {
	ClientID  int64
	Status    models.InvoiceStatus
	StartDate time.Time
	EndDate   time.Time
}

func (r *InvoiceRepository) List(filter ListFilter) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	var conditions []string
	var args []interface{}

	if filter.ClientID > 0 {
		conditions = append(conditions, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.StartDate.IsZero() {
		conditions = append(conditions, "issue_date >= ?")
		args = append(args, formatDate(filter.StartDate))
	}
	if !filter.EndDate.IsZero() {
		conditions = append(conditions, "issue_date <= ?")
		args = append(args, formatDate(filter.EndDate))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY issue_date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return invoices, nil
}

// NumbersForDate returns all invoice numbers carrying the given
// INV-YYYYMMDD prefix, used to pick the next sequence suffix.
func (r *InvoiceRepository) NumbersForDate(issueDate time.Time) ([]string, error) {
	prefix := "INV-" + issueDate.Format("20060102") + "-"
	rows, err := r.db.Query(`SELECT invoice_number FROM invoices WHERE invoice_number LIKE ?`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan invoice number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return numbers, nil
}

func (r *InvoiceRepository) UpdateStatus(id int64, status models.InvoiceStatus) error {
	result, err := r.db.Exec(`UPDATE invoices SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("invoice %d not found", id)
	}
	return nil
}

// Delete removes the invoice and its items. Work logs must be released
// first via WorkLogRepository.ClearInvoice.
func (r *InvoiceRepository) Delete(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM invoice_items WHERE invoice_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete invoice items: %w", err)
	}

	result, err := r.db.Exec(`DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("invoice %d not found", id)
	}
	return nil
}
