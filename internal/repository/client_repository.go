package repository

import (
	"database/sql"
	"fmt"

	"github.com/pritish3006/InvoiceAgent/internal/models"
)

type ClientRepository struct {
	db DBTX
}

func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(req *models.CreateClientRequest) (*models.Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO clients (name, contact_name, email, phone, address, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at
	`

	client := &models.Client{
		Name:        req.Name,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Notes:       req.Notes,
	}
	err := r.db.QueryRow(
		query,
		req.Name,
		nullString(req.ContactName),
		nullString(req.Email),
		nullString(req.Phone),
		nullString(req.Address),
		nullString(req.Notes),
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}

const clientColumns = `id, name, contact_name, email, phone, address, notes, created_at, updated_at`

func scanClient(row interface{ Scan(...interface{}) error }) (*models.Client, error) {
	var c models.Client
	var contactName, email, phone, address, notes sql.NullString
	err := row.Scan(
		&c.ID,
		&c.Name,
		&contactName,
		&email,
		&phone,
		&address,
		&notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ContactName = contactName.String
	c.Email = email.String
	c.Phone = phone.String
	c.Address = address.String
	c.Notes = notes.String
	return &c, nil
}

func (r *ClientRepository) GetByID(id int64) (*models.Client, error) {
	row := r.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	client, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("client %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

func (r *ClientRepository) GetByName(name string) (*models.Client, error) {
	row := r.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE name = ? COLLATE NOCASE`, name)
	client, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("client %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

func (r *ClientRepository) GetAll() ([]*models.Client, error) {
	rows, err := r.db.Query(`SELECT ` + clientColumns + ` FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return clients, nil
}

func (r *ClientRepository) Update(id int64, update *models.UpdateClientRequest) (*models.Client, error) {
	setParts := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, &models.ValidationError{Field: "name", Message: "client name is required"}
		}
		setParts = append(setParts, "name = ?")
		args = append(args, *update.Name)
	}
	if update.ContactName != nil {
		setParts = append(setParts, "contact_name = ?")
		args = append(args, nullString(*update.ContactName))
	}
	if update.Email != nil {
		setParts = append(setParts, "email = ?")
		args = append(args, nullString(*update.Email))
	}
	if update.Phone != nil {
		setParts = append(setParts, "phone = ?")
		args = append(args, nullString(*update.Phone))
	}
	if update.Address != nil {
		setParts = append(setParts, "address = ?")
		args = append(args, nullString(*update.Address))
	}
	if update.Notes != nil {
		setParts = append(setParts, "notes = ?")
		args = append(args, nullString(*update.Notes))
	}

	if len(setParts) == 1 {
		return r.GetByID(id)
	}

	setClause := setParts[0]
	for i := 1; i < len(setParts); i++ {
		setClause += ", " + setParts[i]
	}

	args = append(args, id)
	result, err := r.db.Exec(fmt.Sprintf(`UPDATE clients SET %s WHERE id = ?`, setClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("client %d not found", id)
	}

	return r.GetByID(id)
}

func (r *ClientRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("client %d not found", id)
	}
	return nil
}
