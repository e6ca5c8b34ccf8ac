package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/ollama"
)

// ExtractionError wraps a pipeline failure together with the raw model
// output that caused it.
type ExtractionError struct {
	Message string
	Raw     string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %s: %v", e.Message, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// WorkLogEntry is one structured record extracted from free-form text.
// Client and Project are names as the user wrote them; resolving them to
// database rows is the caller's job.
type WorkLogEntry struct {
	Client      string
	Project     string
	WorkDate    time.Time
	Hours       float64
	Description string
	Category    string
	Billable    bool
	Tags        []string
}

type workLogPayload struct {
	Client      string   `json:"client"`
	Project     string   `json:"project"`
	WorkDate    string   `json:"work_date"`
	Hours       float64  `json:"hours"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Billable    *bool    `json:"billable"`
	Tags        []string `json:"tags"`
}

// Processor runs the LLM extraction pipeline.
type Processor struct {
	client     *ollama.Client
	promptsDir string
	logger     *zap.Logger
}

func NewProcessor(client *ollama.Client, promptsDir string, logger *zap.Logger) *Processor {
	return &Processor{client: client, promptsDir: promptsDir, logger: logger}
}

// ProcessFreeForm extracts structured work log entries from a natural
// language description of work performed.
func (p *Processor) ProcessFreeForm(ctx context.Context, text string) ([]WorkLogEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Message: "empty work description", Err: fmt.Errorf("nothing to extract")}
	}

	tmpl, err := ollama.LoadPromptTemplate(p.promptsDir, "work_log_processing")
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt: %w", err)
	}

	prompt := tmpl.Format(map[string]string{
		"text":  text,
		"today": time.Now().Format("2006-01-02"),
	})

	raw, err := p.client.StructuredGenerate(ctx, ollama.StructuredRequest{
		Prompt:      prompt,
		System:      tmpl.SystemPrompt,
		Temperature: tmpl.Temperature,
		MaxTokens:   tmpl.MaxTokens,
		Schema:      workLogSchema,
	})
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Entries []workLogPayload `json:"entries"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		// Some models return the bare array instead of the wrapper object.
		if err2 := json.Unmarshal(raw, &wrapper.Entries); err2 != nil {
			return nil, &ExtractionError{Message: "response does not match work log schema", Raw: string(raw), Err: err}
		}
	}
	if len(wrapper.Entries) == 0 {
		return nil, &ExtractionError{Message: "no work log entries found", Raw: string(raw), Err: fmt.Errorf("empty entries")}
	}

	entries := make([]WorkLogEntry, 0, len(wrapper.Entries))
	for i, payload := range wrapper.Entries {
		entry, err := payload.toEntry()
		if err != nil {
			return nil, &ExtractionError{
				Message: fmt.Sprintf("invalid entry %d", i+1),
				Raw:     string(raw),
				Err:     err,
			}
		}
		entries = append(entries, *entry)
	}

	p.logger.Info("Extracted work log entries", zap.Int("count", len(entries)))
	return entries, nil
}

func (w *workLogPayload) toEntry() (*WorkLogEntry, error) {
	if strings.TrimSpace(w.Client) == "" {
		return nil, &models.ValidationError{Field: "client", Message: "client name is required"}
	}
	if strings.TrimSpace(w.Project) == "" {
		return nil, &models.ValidationError{Field: "project", Message: "project name is required"}
	}
	if strings.TrimSpace(w.Description) == "" {
		return nil, &models.ValidationError{Field: "description", Message: "description is required"}
	}
	if w.Hours <= 0 {
		return nil, &models.ValidationError{Field: "hours", Message: "hours must be positive"}
	}

	date, err := parseWorkDate(w.WorkDate)
	if err != nil {
		return nil, &models.ValidationError{Field: "work_date", Message: err.Error()}
	}

	billable := true
	if w.Billable != nil {
		billable = *w.Billable
	}

	return &WorkLogEntry{
		Client:      strings.TrimSpace(w.Client),
		Project:     strings.TrimSpace(w.Project),
		WorkDate:    date,
		Hours:       models.Round2(w.Hours),
		Description: strings.TrimSpace(w.Description),
		Category:    strings.TrimSpace(w.Category),
		Billable:    billable,
		Tags:        w.Tags,
	}, nil
}

// parseWorkDate accepts the date formats models actually emit.
func parseWorkDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006/01/02", "01/02/2006", "January 2, 2006"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable work date %q", s)
}

// GenerateInvoiceItems rewrites work logs into client-facing invoice line
// items. Hours and rates missing from the model's reply are backfilled from
// the source logs; validation is all or nothing, one bad item rejects the
// whole batch.
func (p *Processor) GenerateInvoiceItems(ctx context.Context, logs []*models.WorkLog, hourlyRate float64) ([]*models.InvoiceItem, error) {
	if len(logs) == 0 {
		return nil, &ExtractionError{Message: "no work logs to convert", Err: fmt.Errorf("empty input")}
	}

	tmpl, err := ollama.LoadPromptTemplate(p.promptsDir, "invoice_item_generation")
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt: %w", err)
	}

	prompt := tmpl.Format(map[string]string{
		"work_logs": describeWorkLogs(logs, hourlyRate),
	})

	raw, err := p.client.StructuredGenerate(ctx, ollama.StructuredRequest{
		Prompt:      prompt,
		System:      tmpl.SystemPrompt,
		Temperature: tmpl.Temperature,
		MaxTokens:   tmpl.MaxTokens,
		Schema:      invoiceItemSchema,
	})
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Items []struct {
			Description string  `json:"description"`
			Quantity    float64 `json:"quantity"`
			Unit        string  `json:"unit"`
			Rate        float64 `json:"rate"`
			Amount      float64 `json:"amount"`
			Category    string  `json:"category"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		if err2 := json.Unmarshal(raw, &wrapper.Items); err2 != nil {
			return nil, &ExtractionError{Message: "response does not match invoice item schema", Raw: string(raw), Err: err}
		}
	}
	if len(wrapper.Items) == 0 {
		return nil, &ExtractionError{Message: "no invoice items generated", Raw: string(raw), Err: fmt.Errorf("empty items")}
	}

	items := make([]*models.InvoiceItem, 0, len(wrapper.Items))
	for i, it := range wrapper.Items {
		rate := it.Rate
		if rate == 0 {
			rate = hourlyRate
		}
		amount := it.Amount
		if amount == 0 {
			amount = models.Round2(it.Quantity * rate)
		}
		item, err := models.NewInvoiceItem(it.Description, it.Quantity, it.Unit, rate, amount, it.Category)
		if err != nil {
			return nil, &ExtractionError{
				Message: fmt.Sprintf("invalid item %d", i+1),
				Raw:     string(raw),
				Err:     err,
			}
		}
		items = append(items, item)
	}

	p.logger.Info("Generated invoice items", zap.Int("count", len(items)))
	return items, nil
}

// GenerateInvoiceSummary writes a short notes paragraph for the invoice.
func (p *Processor) GenerateInvoiceSummary(ctx context.Context, logs []*models.WorkLog) (string, error) {
	if len(logs) == 0 {
		return "", &ExtractionError{Message: "no work logs to summarize", Err: fmt.Errorf("empty input")}
	}

	tmpl, err := ollama.LoadPromptTemplate(p.promptsDir, "invoice_summary")
	if err != nil {
		return "", fmt.Errorf("failed to load prompt: %w", err)
	}

	prompt := tmpl.Format(map[string]string{
		"work_logs": describeWorkLogs(logs, 0),
	})

	text, err := p.client.Generate(ctx, ollama.GenerateRequest{
		Prompt:      prompt,
		System:      tmpl.SystemPrompt,
		Temperature: tmpl.Temperature,
		MaxTokens:   tmpl.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func describeWorkLogs(logs []*models.WorkLog, hourlyRate float64) string {
	var b strings.Builder
	for _, log := range logs {
		fmt.Fprintf(&b, "- %s: %.2f hours", log.WorkDate.Format("2006-01-02"), log.Hours)
		if hourlyRate > 0 {
			fmt.Fprintf(&b, " at $%.2f/hour", hourlyRate)
		}
		if log.Category != "" {
			fmt.Fprintf(&b, " [%s]", log.Category)
		}
		fmt.Fprintf(&b, ": %s\n", log.Description)
	}
	return b.String()
}
