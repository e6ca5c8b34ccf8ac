package repository

import (
	"database/sql"
	"fmt"

	"github.com/pritish3006/InvoiceAgent/internal/models"
)

type ProjectRepository struct {
	db DBTX
}

func NewProjectRepository(db DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(req *models.CreateProjectRequest) (*models.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO projects (client_id, name, description, hourly_rate, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, is_active, created_at, updated_at
	`

	project := &models.Project{
		ClientID:    req.ClientID,
		Name:        req.Name,
		Description: req.Description,
		HourlyRate:  req.HourlyRate,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	err := r.db.QueryRow(
		query,
		req.ClientID,
		req.Name,
		nullString(req.Description),
		req.HourlyRate,
		nullDate(req.StartDate),
		nullDate(req.EndDate),
	).Scan(&project.ID, &project.IsActive, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

const projectColumns = `id, client_id, name, description, hourly_rate, is_active, start_date, end_date, created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*models.Project, error) {
	var p models.Project
	var description sql.NullString
	var startDate, endDate sql.NullString
	err := row.Scan(
		&p.ID,
		&p.ClientID,
		&p.Name,
		&description,
		&p.HourlyRate,
		&p.IsActive,
		&startDate,
		&endDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	if startDate.Valid {
		if d, err := parseDate(startDate.String); err == nil {
			p.StartDate = &d
		}
	}
	if endDate.Valid {
		if d, err := parseDate(endDate.String); err == nil {
			p.EndDate = &d
		}
	}
	return &p, nil
}

func (r *ProjectRepository) GetByID(id int64) (*models.Project, error) {
	row := r.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (r *ProjectRepository) GetByName(name string) (*models.Project, error) {
	row := r.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE name = ? COLLATE NOCASE`, name)
	project, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (r *ProjectRepository) GetByClientID(clientID int64) ([]*models.Project, error) {
	return r.queryProjects(`SELECT `+projectColumns+` FROM projects WHERE client_id = ? ORDER BY name`, clientID)
}

func (r *ProjectRepository) GetAll() ([]*models.Project, error) {
	return r.queryProjects(`SELECT ` + projectColumns + ` FROM projects ORDER BY name`)
}

func (r *ProjectRepository) queryProjects(query string, args ...interface{}) ([]*models.Project, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepository) Update(id int64, update *models.UpdateProjectRequest) (*models.Project, error) {
	setParts := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, &models.ValidationError{Field: "name", Message: "project name is required"}
		}
		setParts = append(setParts, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		setParts = append(setParts, "description = ?")
		args = append(args, nullString(*update.Description))
	}
	if update.HourlyRate != nil {
		if *update.HourlyRate < 0 {
			return nil, &models.ValidationError{Field: "hourly_rate", Message: "hourly rate must not be negative"}
		}
		setParts = append(setParts, "hourly_rate = ?")
		args = append(args, *update.HourlyRate)
	}
	if update.IsActive != nil {
		setParts = append(setParts, "is_active = ?")
		args = append(args, *update.IsActive)
	}

	if len(setParts) == 1 {
		return r.GetByID(id)
	}

	setClause := setParts[0]
	for i := 1; i < len(setParts); i++ {
		setClause += ", " + setParts[i]
	}

	args = append(args, id)
	result, err := r.db.Exec(fmt.Sprintf(`UPDATE projects SET %s WHERE id = ?`, setClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("project %d not found", id)
	}

	return r.GetByID(id)
}

func (r *ProjectRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project %d not found", id)
	}
	return nil
}
