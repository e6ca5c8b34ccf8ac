package ollama

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PromptTemplate is a named prompt with its generation settings. Templates
// live on disk as NAME.txt (the prompt body) plus an optional NAME.json with
// metadata; the built-in set covers every pipeline stage so a missing
// prompts directory still works.
type PromptTemplate struct {
	Name         string
	Template     string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

type promptMetadata struct {
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

var builtinPrompts = map[string]PromptTemplate{
	"work_log_processing": {
		Name: "work_log_processing",
		Template: "Extract structured work log entries from the following description of work performed.\n" +
			"Today's date is {today}. Resolve relative dates like \"yesterday\" or \"last Tuesday\" against it.\n\n" +
			"Work description:\n{text}",
		SystemPrompt: "You are an assistant that converts free-form work descriptions into structured work log records for invoicing. Be precise with dates, hours, and client or project names. Never invent work that is not described.",
		Temperature:  0.1,
		MaxTokens:    2000,
	},
	"invoice_item_generation": {
		Name: "invoice_item_generation",
		Template: "Generate professional invoice line items from these work log entries.\n" +
			"Group closely related work where it reads better, keep descriptions concise and client-facing.\n\n" +
			"Work logs:\n{work_logs}",
		SystemPrompt: "You are an assistant that writes invoice line items. Descriptions must be professional and specific. Preserve the hours and rates given.",
		Temperature:  0.3,
		MaxTokens:    2000,
	},
	"invoice_summary": {
		Name: "invoice_summary",
		Template: "Write a short professional summary paragraph for an invoice covering this work:\n\n{work_logs}\n\n" +
			"The summary goes in the invoice notes section. Two or three sentences, no pricing.",
		SystemPrompt: "You are an assistant that writes brief, professional invoice summaries.",
		Temperature:  0.7,
		MaxTokens:    500,
	},
}

// LoadPromptTemplate reads NAME.txt (and NAME.json when present) from dir,
// falling back to the built-in template of the same name.
func LoadPromptTemplate(dir, name string) (*PromptTemplate, error) {
	body, err := os.ReadFile(filepath.Join(dir, name+".txt"))
	if err != nil {
		if builtin, ok := builtinPrompts[name]; ok {
			t := builtin
			return &t, nil
		}
		return nil, fmt.Errorf("prompt template %q not found: %w", name, err)
	}

	tmpl := &PromptTemplate{
		Name:      name,
		Template:  strings.TrimSpace(string(body)),
		MaxTokens: defaultMaxTokens,
	}
	if builtin, ok := builtinPrompts[name]; ok {
		tmpl.SystemPrompt = builtin.SystemPrompt
		tmpl.Temperature = builtin.Temperature
		tmpl.MaxTokens = builtin.MaxTokens
	}

	metaRaw, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err == nil {
		var meta promptMetadata
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return nil, fmt.Errorf("invalid metadata for prompt %q: %w", name, err)
		}
		if meta.SystemPrompt != "" {
			tmpl.SystemPrompt = meta.SystemPrompt
		}
		if meta.Temperature > 0 {
			tmpl.Temperature = meta.Temperature
		}
		if meta.MaxTokens > 0 {
			tmpl.MaxTokens = meta.MaxTokens
		}
	}

	return tmpl, nil
}

// ListPromptTemplates returns every available template, builtins merged
// with (and overridden by) the .txt files in dir.
func ListPromptTemplates(dir string) ([]*PromptTemplate, error) {
	names := map[string]bool{}
	for name := range builtinPrompts {
		names[name] = true
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt templates: %w", err)
	}
	for _, m := range matches {
		names[strings.TrimSuffix(filepath.Base(m), ".txt")] = true
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	templates := make([]*PromptTemplate, 0, len(sorted))
	for _, name := range sorted {
		tmpl, err := LoadPromptTemplate(dir, name)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// Format substitutes {placeholder} markers in the template body.
func (t *PromptTemplate) Format(values map[string]string) string {
	out := t.Template
	for k, v := range values {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
