package ollama

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPromptTemplate(t *testing.T) {
	t.Run("missing file falls back to builtin", func(t *testing.T) {
		tmpl, err := LoadPromptTemplate(t.TempDir(), "work_log_processing")
		require.NoError(t, err)
		assert.Equal(t, 0.1, tmpl.Temperature)
		assert.Contains(t, tmpl.Template, "{text}")
	})

	t.Run("unknown name with no builtin fails", func(t *testing.T) {
		_, err := LoadPromptTemplate(t.TempDir(), "no_such_prompt")
		require.Error(t, err)
	})

	t.Run("disk file overrides builtin body, metadata overrides settings", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, "invoice_summary.txt"),
			[]byte("Summarize: {work_logs}"), 0o644))
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, "invoice_summary.json"),
			[]byte(`{"temperature": 0.2, "max_tokens": 300}`), 0o644))

		tmpl, err := LoadPromptTemplate(dir, "invoice_summary")
		require.NoError(t, err)
		assert.Equal(t, "Summarize: {work_logs}", tmpl.Template)
		assert.Equal(t, 0.2, tmpl.Temperature)
		assert.Equal(t, 300, tmpl.MaxTokens)
		// System prompt comes from the builtin when the metadata omits it.
		assert.NotEmpty(t, tmpl.SystemPrompt)
	})
}

func TestPromptTemplateFormat(t *testing.T) {
	tmpl := &PromptTemplate{Template: "Hello {name}, today is {today}. Again: {name}."}
	out := tmpl.Format(map[string]string{"name": "Ada", "today": "2024-03-10"})
	assert.Equal(t, "Hello Ada, today is 2024-03-10. Again: Ada.", out)
}

func TestListPromptTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom_prompt.txt"), []byte("body"), 0o644))

	templates, err := ListPromptTemplates(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		names = append(names, tmpl.Name)
	}
	assert.Equal(t, []string{"custom_prompt", "invoice_item_generation", "invoice_summary", "work_log_processing"}, names)
}
