package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pritish3006/InvoiceAgent/internal/database"
	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/repository"
)

type fixture struct {
	db         *database.DB
	aggregator *Aggregator
	client     *models.Client
	project    *models.Project
}

func newFixture(t *testing.T, rate float64) *fixture {
	t.Helper()
	db, err := database.New(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client, err := repository.NewClientRepository(db).Create(&models.CreateClientRequest{Name: "Acme Corp"})
	require.NoError(t, err)
	project, err := repository.NewProjectRepository(db).Create(&models.CreateProjectRequest{
		ClientID:   client.ID,
		Name:       "Website",
		HourlyRate: rate,
	})
	require.NoError(t, err)

	return &fixture{
		db:         db,
		aggregator: NewAggregator(db, zap.NewNop()),
		client:     client,
		project:    project,
	}
}

func (f *fixture) addLog(t *testing.T, date time.Time, hours float64, desc, category string, billable bool) *models.WorkLog {
	t.Helper()
	log, err := models.NewWorkLog(f.project.ID, date, hours, desc, category, billable, nil)
	require.NoError(t, err)
	created, err := repository.NewWorkLogRepository(f.db).Create(log)
	require.NoError(t, err)
	return created
}

var (
	periodStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
)

func (f *fixture) generate(t *testing.T, params GenerateParams) *models.Invoice {
	t.Helper()
	if params.ClientID == 0 {
		params.ClientID = f.client.ID
	}
	if params.StartDate.IsZero() {
		params.StartDate = periodStart
	}
	if params.EndDate.IsZero() {
		params.EndDate = periodEnd
	}
	if params.IssueDate.IsZero() {
		params.IssueDate = periodEnd
	}
	invoice, err := f.aggregator.Generate(params)
	require.NoError(t, err)
	return invoice
}

func TestGenerateSimpleInvoice(t *testing.T) {
	f := newFixture(t, 100)
	f.addLog(t, periodStart.AddDate(0, 0, 9), 3, "Landing page work", "Development", true)

	invoice := f.generate(t, GenerateParams{})

	assert.Equal(t, models.StatusDraft, invoice.Status)
	assert.Equal(t, "INV-20240331-01", invoice.InvoiceNumber)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, 3.0, invoice.Items[0].Quantity)
	assert.Equal(t, 100.0, invoice.Items[0].Rate)
	assert.Equal(t, 300.0, invoice.Items[0].Amount)
	assert.Equal(t, "Landing page work", invoice.Items[0].Description)
	assert.Equal(t, 300.0, invoice.Subtotal)
	assert.Equal(t, 0.0, invoice.TaxAmount)
	assert.Equal(t, 300.0, invoice.TotalAmount)

	// The due date defaults to thirty days after issue.
	assert.Equal(t, periodEnd.AddDate(0, 0, 30), invoice.DueDate)
}

func TestGenerateWithTax(t *testing.T) {
	f := newFixture(t, 100)
	f.addLog(t, periodStart, 3, "Work", "Development", true)

	invoice := f.generate(t, GenerateParams{TaxRate: 8.25})

	assert.Equal(t, 300.0, invoice.Subtotal)
	assert.Equal(t, 24.75, invoice.TaxAmount)
	assert.Equal(t, 324.75, invoice.TotalAmount)
	assert.True(t, invoice.HasTax())
}

func TestGenerateMergesByCategory(t *testing.T) {
	f := newFixture(t, 100)
	f.addLog(t, periodStart, 2, "Built the checkout flow. Then fixed bugs.", "Development", true)
	f.addLog(t, periodStart.AddDate(0, 0, 1), 1.5, "Refactored the cart module", "Development", true)
	f.addLog(t, periodStart.AddDate(0, 0, 2), 1, "Sprint planning call", "Meetings", true)

	invoice := f.generate(t, GenerateParams{})

	require.Len(t, invoice.Items, 2)

	dev := invoice.Items[0]
	assert.Equal(t, "Development", dev.Category)
	assert.Equal(t, 3.5, dev.Quantity)
	assert.Equal(t, 350.0, dev.Amount)
	assert.Contains(t, dev.Description, "Development work:")
	assert.Contains(t, dev.Description, "Built the checkout flow")
	assert.Contains(t, dev.Description, "Refactored the cart module")

	meetings := invoice.Items[1]
	assert.Equal(t, "Meetings", meetings.Category)
	assert.Equal(t, "Sprint planning call", meetings.Description)
}

func TestGenerateOrdersItemsByProjectID(t *testing.T) {
	f := newFixture(t, 100)

	// Explicit ids so a two-digit project sorts after a one-digit one.
	addProject := func(id int64, name string) {
		_, err := f.db.Exec(
			`INSERT INTO projects (id, client_id, name, hourly_rate) VALUES (?, ?, ?, 100)`,
			id, f.client.ID, name,
		)
		require.NoError(t, err)
	}
	addProject(2, "Design")
	addProject(10, "Backend")

	addLogFor := func(projectID int64, desc string) {
		log, err := models.NewWorkLog(projectID, periodStart, 1, desc, "Development", true, nil)
		require.NoError(t, err)
		_, err = repository.NewWorkLogRepository(f.db).Create(log)
		require.NoError(t, err)
	}
	addLogFor(10, "Backend endpoint work")
	addLogFor(2, "Design mockups")

	invoice := f.generate(t, GenerateParams{})

	require.Len(t, invoice.Items, 2)
	assert.Equal(t, "Design mockups", invoice.Items[0].Description)
	assert.Equal(t, "Backend endpoint work", invoice.Items[1].Description)
}

func TestGenerateLargeGroupTruncatesDescription(t *testing.T) {
	f := newFixture(t, 100)
	for i := 0; i < 5; i++ {
		f.addLog(t, periodStart.AddDate(0, 0, i), 1, "Task number "+string(rune('A'+i)), "Development", true)
	}

	invoice := f.generate(t, GenerateParams{})
	require.Len(t, invoice.Items, 1)
	assert.Contains(t, invoice.Items[0].Description, "and 2 more tasks")
}

func TestGenerateNothingToInvoice(t *testing.T) {
	f := newFixture(t, 100)
	f.addLog(t, periodStart, 2, "Non-billable admin", "", false)
	f.addLog(t, periodEnd.AddDate(0, 0, 5), 2, "Outside the window", "", true)

	_, err := f.aggregator.Generate(GenerateParams{
		ClientID:  f.client.ID,
		StartDate: periodStart,
		EndDate:   periodEnd,
	})
	require.ErrorIs(t, err, ErrNothingToInvoice)
}

func TestInvoiceNumberSequence(t *testing.T) {
	f := newFixture(t, 100)
	invoices := repository.NewInvoiceRepository(f.db)
	for _, n := range []string{"INV-20240331-01", "INV-20240331-02"} {
		_, err := invoices.Create(&models.Invoice{
			ClientID:      f.client.ID,
			InvoiceNumber: n,
			IssueDate:     periodEnd,
			DueDate:       periodEnd.AddDate(0, 0, 30),
			Status:        models.StatusDraft,
		})
		require.NoError(t, err)
	}

	f.addLog(t, periodStart, 1, "Work", "", true)
	invoice := f.generate(t, GenerateParams{})
	assert.Equal(t, "INV-20240331-03", invoice.InvoiceNumber)
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newFixture(t, 100)
	f.addLog(t, periodStart, 2, "Work", "", true)

	first := f.generate(t, GenerateParams{})
	assert.Equal(t, 200.0, first.TotalAmount)

	// The logs are now billed, so a second run finds nothing.
	_, err := f.aggregator.Generate(GenerateParams{
		ClientID:  f.client.ID,
		StartDate: periodStart,
		EndDate:   periodEnd,
	})
	require.ErrorIs(t, err, ErrNothingToInvoice)
}

func TestDryRunWritesNothing(t *testing.T) {
	f := newFixture(t, 100)
	log := f.addLog(t, periodStart, 2, "Work", "", true)

	invoice := f.generate(t, GenerateParams{DryRun: true})
	assert.Zero(t, invoice.ID)
	assert.Equal(t, 200.0, invoice.TotalAmount)

	// Nothing was persisted: the log is still unbilled and no invoice exists.
	got, err := repository.NewWorkLogRepository(f.db).GetByID(log.ID)
	require.NoError(t, err)
	assert.False(t, got.Billed())

	list, err := repository.NewInvoiceRepository(f.db).List(repository.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteReleasesWorkLogs(t *testing.T) {
	f := newFixture(t, 100)
	log := f.addLog(t, periodStart, 2, "Work", "", true)

	invoice := f.generate(t, GenerateParams{})
	require.NoError(t, f.aggregator.Delete(invoice.ID))

	got, err := repository.NewWorkLogRepository(f.db).GetByID(log.ID)
	require.NoError(t, err)
	assert.False(t, got.Billed())

	// Released work can be invoiced again, under a fresh number.
	second := f.generate(t, GenerateParams{})
	assert.Equal(t, 200.0, second.TotalAmount)
	assert.NotZero(t, second.ID)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, 100)
	f.addLog(t, periodStart, 2, "Work", "", true)
	invoice := f.generate(t, GenerateParams{})

	t.Run("draft to sent to paid", func(t *testing.T) {
		_, err := f.aggregator.UpdateStatus(invoice.ID, models.StatusSent)
		require.NoError(t, err)
		updated, err := f.aggregator.UpdateStatus(invoice.ID, models.StatusPaid)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaid, updated.Status)
	})

	t.Run("paid is terminal", func(t *testing.T) {
		_, err := f.aggregator.UpdateStatus(invoice.ID, models.StatusCanceled)
		require.Error(t, err)
	})
}

func TestOverdueRequiresPastDueDate(t *testing.T) {
	f := newFixture(t, 100)
	f.addLog(t, periodStart, 2, "Work", "", true)

	t.Run("future due date rejects overdue", func(t *testing.T) {
		invoice := f.generate(t, GenerateParams{
			IssueDate: time.Now(),
		})
		_, err := f.aggregator.UpdateStatus(invoice.ID, models.StatusSent)
		require.NoError(t, err)
		_, err = f.aggregator.UpdateStatus(invoice.ID, models.StatusOverdue)
		require.Error(t, err)
	})

	t.Run("past due date allows overdue", func(t *testing.T) {
		f2 := newFixture(t, 100)
		f2.addLog(t, periodStart, 2, "Work", "", true)
		invoice := f2.generate(t, GenerateParams{
			IssueDate: periodEnd,
			DueDate:   periodEnd.AddDate(0, 0, 30),
		})
		_, err := f2.aggregator.UpdateStatus(invoice.ID, models.StatusSent)
		require.NoError(t, err)
		updated, err := f2.aggregator.UpdateStatus(invoice.ID, models.StatusOverdue)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOverdue, updated.Status)
	})
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t, 100)

	_, err := f.aggregator.Generate(GenerateParams{StartDate: periodStart, EndDate: periodEnd})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.aggregator.Generate(GenerateParams{ClientID: f.client.ID, StartDate: periodEnd, EndDate: periodStart})
	require.ErrorAs(t, err, &verr)

	_, err = f.aggregator.Generate(GenerateParams{ClientID: f.client.ID, StartDate: periodStart, EndDate: periodEnd, TaxRate: -1})
	require.ErrorAs(t, err, &verr)

	_, err = f.aggregator.Generate(GenerateParams{ClientID: 777, StartDate: periodStart, EndDate: periodEnd})
	require.Error(t, err)
}
