package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/ollama"
)

// newTestProcessor serves a fixed chat reply for every model call.
func newTestProcessor(t *testing.T, content string) *Processor {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := json.Marshal(map[string]interface{}{
			"message":  map[string]string{"role": "assistant", "content": content},
			"response": content,
			"done":     true,
		})
		fmt.Fprint(w, string(raw))
	}))
	t.Cleanup(server.Close)

	client := ollama.NewClient(server.URL, "test-model", 10*time.Second, nil, zap.NewNop())
	return NewProcessor(client, t.TempDir(), zap.NewNop())
}

func TestProcessFreeForm(t *testing.T) {
	t.Run("extracts entries", func(t *testing.T) {
		p := newTestProcessor(t, `{
			"entries": [
				{
					"client": "Acme Corp",
					"project": "Website Redesign",
					"work_date": "2024-03-10",
					"hours": 3.5,
					"description": "Built the landing page",
					"category": "Development",
					"tags": ["frontend"]
				},
				{
					"client": "Acme Corp",
					"project": "Website Redesign",
					"work_date": "2024-03-11",
					"hours": 1,
					"description": "Client call",
					"billable": false
				}
			]
		}`)

		entries, err := p.ProcessFreeForm(context.Background(), "worked on acme stuff")
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, "Acme Corp", entries[0].Client)
		assert.Equal(t, "Website Redesign", entries[0].Project)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), entries[0].WorkDate)
		assert.Equal(t, 3.5, entries[0].Hours)
		assert.True(t, entries[0].Billable, "billable defaults to true")
		assert.Equal(t, []string{"frontend"}, entries[0].Tags)

		assert.False(t, entries[1].Billable)
	})

	t.Run("accepts a bare entries array", func(t *testing.T) {
		p := newTestProcessor(t, `[
			{"client": "Acme", "project": "Site", "work_date": "2024-03-10", "hours": 2, "description": "Work"}
		]`)
		entries, err := p.ProcessFreeForm(context.Background(), "text")
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("normalizes alternate date formats", func(t *testing.T) {
		p := newTestProcessor(t, `{"entries":[
			{"client":"A","project":"P","work_date":"2024/03/10","hours":1,"description":"d"}
		]}`)
		entries, err := p.ProcessFreeForm(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), entries[0].WorkDate)
	})

	t.Run("rejects an entry with missing fields", func(t *testing.T) {
		p := newTestProcessor(t, `{"entries":[
			{"client":"A","project":"P","work_date":"2024-03-10","hours":0,"description":"d"}
		]}`)
		_, err := p.ProcessFreeForm(context.Background(), "text")
		var eerr *ExtractionError
		require.ErrorAs(t, err, &eerr)
		assert.NotEmpty(t, eerr.Raw)
	})

	t.Run("empty input fails without a model call", func(t *testing.T) {
		p := newTestProcessor(t, `{}`)
		_, err := p.ProcessFreeForm(context.Background(), "   ")
		var eerr *ExtractionError
		require.ErrorAs(t, err, &eerr)
	})
}

func TestGenerateInvoiceItems(t *testing.T) {
	mustLog := func(date time.Time, hours float64, desc string) *models.WorkLog {
		log, err := models.NewWorkLog(1, date, hours, desc, "Development", true, nil)
		require.NoError(t, err)
		return log
	}
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("backfills rate and amount from hours", func(t *testing.T) {
		p := newTestProcessor(t, `{"items":[
			{"description": "Frontend development", "quantity": 3.5, "category": "Development"}
		]}`)

		items, err := p.GenerateInvoiceItems(context.Background(), []*models.WorkLog{
			mustLog(date, 3.5, "Built the landing page"),
		}, 100)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 100.0, items[0].Rate)
		assert.Equal(t, 350.0, items[0].Amount)
		assert.Equal(t, "hour", items[0].Unit)
	})

	t.Run("one invalid item rejects the whole batch", func(t *testing.T) {
		p := newTestProcessor(t, `{"items":[
			{"description": "Good item", "quantity": 1, "rate": 100, "amount": 100},
			{"description": "Bad item", "quantity": 2, "rate": 100, "amount": 9999}
		]}`)

		_, err := p.GenerateInvoiceItems(context.Background(), []*models.WorkLog{
			mustLog(date, 3, "Work"),
		}, 100)
		var eerr *ExtractionError
		require.ErrorAs(t, err, &eerr)
	})

	t.Run("no work logs is an error", func(t *testing.T) {
		p := newTestProcessor(t, `{}`)
		_, err := p.GenerateInvoiceItems(context.Background(), nil, 100)
		require.Error(t, err)
	})
}

func TestGenerateInvoiceSummary(t *testing.T) {
	log, err := models.NewWorkLog(1, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 2, "API integration", "", true, nil)
	require.NoError(t, err)

	p := newTestProcessor(t, "  Delivered API integration work across the period.  ")
	summary, err := p.GenerateInvoiceSummary(context.Background(), []*models.WorkLog{log})
	require.NoError(t, err)
	assert.Equal(t, "Delivered API integration work across the period.", summary)
}

func TestParseWorkDate(t *testing.T) {
	for _, s := range []string{"2024-03-10", "2024/03/10", "03/10/2024", "March 10, 2024"} {
		d, err := parseWorkDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.March, d.Month())
		assert.Equal(t, 10, d.Day())
	}
	_, err := parseWorkDate("next tuesday")
	require.Error(t, err)
}
