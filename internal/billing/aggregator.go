package billing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pritish3006/InvoiceAgent/internal/database"
	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/repository"
)

// ErrNothingToInvoice means no billable, unbilled work exists for the client
// in the requested window. Callers treat it as a clean no-op, not a failure.
var ErrNothingToInvoice = errors.New("no billable unbilled work in the period")

// Aggregator turns unbilled work logs into invoices.
type Aggregator struct {
	db     *database.DB
	logger *zap.Logger
}

func NewAggregator(db *database.DB, logger *zap.Logger) *Aggregator {
	return &Aggregator{db: db, logger: logger}
}

// GenerateParams selects the work to invoice and sets document fields.
// A zero DueDate defaults to thirty days after the issue date.
type GenerateParams struct {
	ClientID  int64
	StartDate time.Time
	EndDate   time.Time
	IssueDate time.Time
	DueDate   time.Time
	TaxRate   float64
	Notes     string
	DryRun    bool
}

// Generate builds an invoice from the client's eligible work logs. The
// invoice insert, item inserts, and work log assignment happen in one
// transaction; DryRun returns the built invoice without writing anything.
func (a *Aggregator) Generate(params GenerateParams) (*models.Invoice, error) {
	if params.ClientID <= 0 {
		return nil, &models.ValidationError{Field: "client_id", Message: "client id is required"}
	}
	if params.StartDate.IsZero() || params.EndDate.IsZero() {
		return nil, &models.ValidationError{Field: "period", Message: "start and end dates are required"}
	}
	if params.EndDate.Before(params.StartDate) {
		return nil, &models.ValidationError{Field: "period", Message: "end date precedes start date"}
	}
	if params.TaxRate < 0 {
		return nil, &models.ValidationError{Field: "tax_rate", Message: "tax rate must not be negative"}
	}
	if params.IssueDate.IsZero() {
		params.IssueDate = time.Now()
	}
	if params.DueDate.IsZero() {
		params.DueDate = params.IssueDate.AddDate(0, 0, 30)
	}

	tx, err := a.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	clients := repository.NewClientRepository(tx)
	projects := repository.NewProjectRepository(tx)
	workLogs := repository.NewWorkLogRepository(tx)
	invoices := repository.NewInvoiceRepository(tx)

	client, err := clients.GetByID(params.ClientID)
	if err != nil {
		return nil, err
	}

	logs, err := workLogs.GetBillableUnbilled(params.ClientID, params.StartDate, params.EndDate)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNothingToInvoice
	}

	items, logIDs, err := a.buildItems(projects, logs)
	if err != nil {
		return nil, err
	}

	number, err := nextInvoiceNumber(invoices, params.IssueDate)
	if err != nil {
		return nil, err
	}

	subtotal := 0.0
	for _, item := range items {
		subtotal += item.Amount
	}
	subtotal = models.Round2(subtotal)

	taxAmount := 0.0
	if params.TaxRate > 0 {
		taxAmount = models.Round2(subtotal * params.TaxRate / 100)
	}

	invoice := &models.Invoice{
		ClientID:      params.ClientID,
		InvoiceNumber: number,
		IssueDate:     params.IssueDate,
		DueDate:       params.DueDate,
		Status:        models.StatusDraft,
		Notes:         params.Notes,
		Subtotal:      subtotal,
		TaxRate:       params.TaxRate,
		TaxAmount:     taxAmount,
		TotalAmount:   models.Round2(subtotal + taxAmount),
		Items:         items,
		Client:        client,
	}

	if params.DryRun {
		a.logger.Info("Dry run, invoice not persisted",
			zap.String("invoice_number", number),
			zap.Int("items", len(items)),
			zap.Float64("total", invoice.TotalAmount),
		)
		return invoice, nil
	}

	if _, err := invoices.Create(invoice); err != nil {
		return nil, err
	}
	if err := workLogs.AssignInvoice(invoice.ID, logIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}

	a.logger.Info("Generated invoice",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("invoice_number", number),
		zap.Int64("client_id", params.ClientID),
		zap.Int("work_logs", len(logIDs)),
		zap.Float64("total", invoice.TotalAmount),
	)
	return invoice, nil
}

type itemGroup struct {
	projectID    int64
	category     string
	hours        float64
	descriptions []string
	logIDs       []int64
}

// buildItems groups logs by project and category, one line item per group,
// priced at the project's hourly rate. Items are ordered by project id,
// then category.
func (a *Aggregator) buildItems(projects *repository.ProjectRepository, logs []*models.WorkLog) ([]models.InvoiceItem, []int64, error) {
	groups := map[string]*itemGroup{}
	var logIDs []int64

	for _, log := range logs {
		category := log.Category
		if category == "" {
			category = "General"
		}
		key := fmt.Sprintf("%d|%s", log.ProjectID, category)
		g, ok := groups[key]
		if !ok {
			g = &itemGroup{projectID: log.ProjectID, category: category}
			groups[key] = g
		}
		g.hours += log.Hours
		g.descriptions = append(g.descriptions, log.Description)
		g.logIDs = append(g.logIDs, log.ID)
		logIDs = append(logIDs, log.ID)
	}

	ordered := make([]*itemGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].projectID != ordered[j].projectID {
			return ordered[i].projectID < ordered[j].projectID
		}
		return ordered[i].category < ordered[j].category
	})

	projectCache := map[int64]*models.Project{}
	var items []models.InvoiceItem

	for _, g := range ordered {
		project, ok := projectCache[g.projectID]
		if !ok {
			var err error
			project, err = projects.GetByID(g.projectID)
			if err != nil {
				return nil, nil, err
			}
			projectCache[g.projectID] = project
		}

		hours := models.Round2(g.hours)
		amount := models.Round2(hours * project.HourlyRate)
		description := synthesizeDescription(g.category, g.descriptions)

		item, err := models.NewInvoiceItem(description, hours, "hour", project.HourlyRate, amount, g.category)
		if err != nil {
			return nil, nil, err
		}
		if len(g.logIDs) == 1 {
			id := g.logIDs[0]
			item.WorkLogID = &id
		}
		items = append(items, *item)
	}

	return items, logIDs, nil
}

// synthesizeDescription builds the line item text for a group: a single
// log keeps its description verbatim, larger groups get the category plus
// the first sentence of up to three logs.
func synthesizeDescription(category string, descriptions []string) string {
	if len(descriptions) == 1 {
		return descriptions[0]
	}

	limit := len(descriptions)
	if limit > 3 {
		limit = 3
	}
	parts := make([]string, 0, limit)
	for _, d := range descriptions[:limit] {
		parts = append(parts, firstSentence(d))
	}

	description := fmt.Sprintf("%s work: %s", category, strings.Join(parts, "; "))
	if extra := len(descriptions) - limit; extra > 0 {
		description += fmt.Sprintf("; and %d more tasks", extra)
	}
	return description
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	for _, sep := range []string{". ", "! ", "? "} {
		if idx := strings.Index(s, sep); idx >= 0 {
			return s[:idx]
		}
	}
	return strings.TrimSuffix(s, ".")
}

// nextInvoiceNumber issues INV-YYYYMMDD-NN, incrementing the highest
// suffix already taken for the issue date.
func nextInvoiceNumber(invoices *repository.InvoiceRepository, issueDate time.Time) (string, error) {
	numbers, err := invoices.NumbersForDate(issueDate)
	if err != nil {
		return "", err
	}

	prefix := "INV-" + issueDate.Format("20060102") + "-"
	max := 0
	for _, n := range numbers {
		suffix := strings.TrimPrefix(n, prefix)
		if seq, err := strconv.Atoi(suffix); err == nil && seq > max {
			max = seq
		}
	}
	return fmt.Sprintf("%s%02d", prefix, max+1), nil
}
