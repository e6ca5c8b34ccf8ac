package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pritish3006/InvoiceAgent/internal/database"
	"github.com/pritish3006/InvoiceAgent/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedClient(t *testing.T, db *database.DB, name string) *models.Client {
	t.Helper()
	client, err := NewClientRepository(db).Create(&models.CreateClientRequest{
		Name:  name,
		Email: "billing@example.com",
	})
	require.NoError(t, err)
	return client
}

func seedProject(t *testing.T, db *database.DB, clientID int64, name string, rate float64) *models.Project {
	t.Helper()
	project, err := NewProjectRepository(db).Create(&models.CreateProjectRequest{
		ClientID:   clientID,
		Name:       name,
		HourlyRate: rate,
	})
	require.NoError(t, err)
	return project
}

func seedWorkLog(t *testing.T, db *database.DB, projectID int64, date time.Time, hours float64, desc string) *models.WorkLog {
	t.Helper()
	log, err := models.NewWorkLog(projectID, date, hours, desc, "Development", true, []string{"tag1"})
	require.NoError(t, err)
	created, err := NewWorkLogRepository(db).Create(log)
	require.NoError(t, err)
	return created
}

func TestClientRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewClientRepository(db)

	t.Run("create and fetch", func(t *testing.T) {
		client := seedClient(t, db, "Acme Corp")
		assert.NotZero(t, client.ID)
		assert.False(t, client.CreatedAt.IsZero())

		got, err := repo.GetByID(client.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", got.Name)
		assert.Equal(t, "billing@example.com", got.Email)
	})

	t.Run("lookup by name is case insensitive", func(t *testing.T) {
		got, err := repo.GetByName("acme corp")
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", got.Name)
	})

	t.Run("update changes only set fields", func(t *testing.T) {
		client := seedClient(t, db, "Globex")
		phone := "555-0100"
		updated, err := repo.Update(client.ID, &models.UpdateClientRequest{Phone: &phone})
		require.NoError(t, err)
		assert.Equal(t, "Globex", updated.Name)
		assert.Equal(t, "555-0100", updated.Phone)
	})

	t.Run("delete missing client fails", func(t *testing.T) {
		err := repo.Delete(9999)
		require.Error(t, err)
	})
}

func TestProjectRepository(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db, "Acme")
	repo := NewProjectRepository(db)

	project := seedProject(t, db, client.ID, "Website", 120)
	assert.True(t, project.IsActive)

	t.Run("lookup by client", func(t *testing.T) {
		seedProject(t, db, client.ID, "API", 150)
		list, err := repo.GetByClientID(client.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("update rate", func(t *testing.T) {
		rate := 135.0
		updated, err := repo.Update(project.ID, &models.UpdateProjectRequest{HourlyRate: &rate})
		require.NoError(t, err)
		assert.Equal(t, 135.0, updated.HourlyRate)
	})

	t.Run("negative rate rejected", func(t *testing.T) {
		rate := -5.0
		_, err := repo.Update(project.ID, &models.UpdateProjectRequest{HourlyRate: &rate})
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("client cascade removes projects", func(t *testing.T) {
		victim := seedClient(t, db, "Doomed")
		seedProject(t, db, victim.ID, "Gone", 10)
		require.NoError(t, NewClientRepository(db).Delete(victim.ID))

		list, err := repo.GetByClientID(victim.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestWorkLogRepository(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db, "Acme")
	project := seedProject(t, db, client.ID, "Website", 100)
	repo := NewWorkLogRepository(db)

	mar10 := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	mar15 := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	apr01 := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	log1 := seedWorkLog(t, db, project.ID, mar10, 3, "Landing page")
	log2 := seedWorkLog(t, db, project.ID, mar15, 2.5, "Checkout flow")
	seedWorkLog(t, db, project.ID, apr01, 4, "April work")

	t.Run("round trips tags and date", func(t *testing.T) {
		got, err := repo.GetByID(log1.ID)
		require.NoError(t, err)
		assert.Equal(t, mar10, got.WorkDate)
		assert.Equal(t, []string{"tag1"}, got.Tags)
		assert.True(t, got.Billable)
	})

	t.Run("date range query", func(t *testing.T) {
		list, err := repo.GetByDateRange(mar10, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("billable unbilled selection", func(t *testing.T) {
		// Non-billable logs never qualify.
		nb, err := models.NewWorkLog(project.ID, mar10, 1, "Internal admin", "", false, nil)
		require.NoError(t, err)
		_, err = repo.Create(nb)
		require.NoError(t, err)

		list, err := repo.GetBillableUnbilled(client.ID, mar10, mar15)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, log1.ID, list[0].ID)
		assert.Equal(t, log2.ID, list[1].ID)
	})

	t.Run("assign and clear invoice", func(t *testing.T) {
		invoices := NewInvoiceRepository(db)
		inv := &models.Invoice{
			ClientID:      client.ID,
			InvoiceNumber: "INV-20240401-01",
			IssueDate:     apr01,
			DueDate:       apr01.AddDate(0, 0, 30),
			Status:        models.StatusDraft,
		}
		_, err := invoices.Create(inv)
		require.NoError(t, err)

		require.NoError(t, repo.AssignInvoice(inv.ID, []int64{log1.ID, log2.ID}))

		got, err := repo.GetByID(log1.ID)
		require.NoError(t, err)
		require.True(t, got.Billed())
		assert.Equal(t, inv.ID, *got.InvoiceID)

		// Assigned logs drop out of the eligible pool.
		list, err := repo.GetBillableUnbilled(client.ID, mar10, mar15)
		require.NoError(t, err)
		assert.Empty(t, list)

		require.NoError(t, repo.ClearInvoice(inv.ID))
		got, err = repo.GetByID(log1.ID)
		require.NoError(t, err)
		assert.False(t, got.Billed())
	})

	t.Run("assign fails when an id is missing", func(t *testing.T) {
		err := repo.AssignInvoice(1, []int64{log1.ID, 99999})
		require.Error(t, err)
	})
}

func TestInvoiceRepository(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db, "Acme")
	repo := NewInvoiceRepository(db)
	issue := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	newInvoice := func(number string, status models.InvoiceStatus, total float64) *models.Invoice {
		item, err := models.NewInvoiceItem("Development work", 2, "hour", total/2, total, "Development")
		require.NoError(t, err)
		return &models.Invoice{
			ClientID:      client.ID,
			InvoiceNumber: number,
			IssueDate:     issue,
			DueDate:       issue.AddDate(0, 0, 30),
			Status:        status,
			Subtotal:      total,
			TotalAmount:   total,
			Metadata:      map[string]string{"period": "2024-02"},
			Items:         []models.InvoiceItem{*item},
		}
	}

	t.Run("create with items and load back", func(t *testing.T) {
		inv := newInvoice("INV-20240301-01", models.StatusDraft, 300)
		created, err := repo.Create(inv)
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		require.NotZero(t, created.Items[0].ID)

		full, err := repo.GetWithItems(created.ID)
		require.NoError(t, err)
		require.Len(t, full.Items, 1)
		assert.Equal(t, 300.0, full.Items[0].Amount)
		require.NotNil(t, full.Client)
		assert.Equal(t, "Acme", full.Client.Name)
		assert.Equal(t, map[string]string{"period": "2024-02"}, full.Metadata)
		assert.Equal(t, issue, full.IssueDate)
	})

	t.Run("duplicate number is rejected", func(t *testing.T) {
		_, err := repo.Create(newInvoice("INV-20240301-01", models.StatusDraft, 100))
		require.Error(t, err)
	})

	t.Run("list filters", func(t *testing.T) {
		_, err := repo.Create(newInvoice("INV-20240301-02", models.StatusSent, 500))
		require.NoError(t, err)

		sent, err := repo.List(ListFilter{Status: models.StatusSent})
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, "INV-20240301-02", sent[0].InvoiceNumber)

		all, err := repo.List(ListFilter{ClientID: client.ID})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		none, err := repo.List(ListFilter{StartDate: issue.AddDate(0, 1, 0)})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("numbers for date", func(t *testing.T) {
		numbers, err := repo.NumbersForDate(issue)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"INV-20240301-01", "INV-20240301-02"}, numbers)
	})

	t.Run("update status", func(t *testing.T) {
		inv, err := repo.GetByNumber("INV-20240301-01")
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStatus(inv.ID, models.StatusSent))

		got, err := repo.GetByID(inv.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSent, got.Status)
	})

	t.Run("delete removes items", func(t *testing.T) {
		inv, err := repo.GetByNumber("INV-20240301-02")
		require.NoError(t, err)
		require.NoError(t, repo.Delete(inv.ID))

		_, err = repo.GetByID(inv.ID)
		require.Error(t, err)
		items, err := repo.GetItems(inv.ID)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}
