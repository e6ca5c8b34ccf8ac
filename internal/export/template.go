package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template describes the layout of a rendered invoice. Templates live on
// disk as YAML files named after the template; a missing template name
// silently falls back to the built-in default.
type Template struct {
	Name        string      `yaml:"name"`
	Page        PageConfig  `yaml:"page"`
	Header      Header      `yaml:"header"`
	InvoiceInfo InvoiceInfo `yaml:"invoice_info"`
	ClientInfo  ClientInfo  `yaml:"client_info"`
	ItemsTable  ItemsTable  `yaml:"items_table"`
	Totals      Totals      `yaml:"totals"`
	Footer      Footer      `yaml:"footer"`
	Currency    string      `yaml:"currency"`
}

type PageConfig struct {
	Size        string  `yaml:"size"`
	Orientation string  `yaml:"orientation"`
	MarginLeft  float64 `yaml:"margin_left"`
	MarginTop   float64 `yaml:"margin_top"`
	MarginRight float64 `yaml:"margin_right"`
}

type Header struct {
	CompanyName    string `yaml:"company_name"`
	CompanyDetails string `yaml:"company_details"`
	LogoPath       string `yaml:"logo_path"`
}

type InvoiceInfo struct {
	Title string `yaml:"title"`
}

type ClientInfo struct {
	Label string `yaml:"label"`
}

type ItemsTable struct {
	Columns      []Column `yaml:"columns"`
	ShowCategory bool     `yaml:"show_category"`
	NotesTitle   string   `yaml:"notes_title"`
}

type Column struct {
	Name  string  `yaml:"name"`
	Title string  `yaml:"title"`
	Width float64 `yaml:"width"`
	Align string  `yaml:"align"`
}

type Totals struct {
	SubtotalLabel string `yaml:"subtotal_label"`
	TaxLabel      string `yaml:"tax_label"`
	TotalLabel    string `yaml:"total_label"`
}

type Footer struct {
	Text string `yaml:"text"`
}

// DefaultTemplate is the built-in layout used when no template file exists.
func DefaultTemplate() *Template {
	return &Template{
		Name: "default",
		Page: PageConfig{
			Size:        "A4",
			Orientation: "P",
			MarginLeft:  15,
			MarginTop:   15,
			MarginRight: 15,
		},
		Header: Header{
			CompanyName: "Independent Contractor",
		},
		InvoiceInfo: InvoiceInfo{Title: "INVOICE"},
		ClientInfo:  ClientInfo{Label: "Bill To:"},
		ItemsTable: ItemsTable{
			Columns: []Column{
				{Name: "description", Title: "Description", Width: 90, Align: "L"},
				{Name: "quantity", Title: "Hours", Width: 25, Align: "R"},
				{Name: "rate", Title: "Rate", Width: 30, Align: "R"},
				{Name: "amount", Title: "Amount", Width: 35, Align: "R"},
			},
			ShowCategory: true,
			NotesTitle:   "Notes",
		},
		Totals: Totals{
			SubtotalLabel: "Subtotal",
			TaxLabel:      "Tax",
			TotalLabel:    "Total Due",
		},
		Footer: Footer{
			Text: "Thank you for your business.",
		},
		Currency: "$",
	}
}

// LoadTemplate reads the named template from dir. An absent file falls back
// to the default template; a present but unparseable file is an error that
// names the template.
func LoadTemplate(dir, name string) (*Template, error) {
	if name == "" {
		name = "default"
	}

	path := filepath.Join(dir, name+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultTemplate(), nil
		}
		return nil, fmt.Errorf("failed to read template %q: %w", name, err)
	}

	tmpl := DefaultTemplate()
	if err := yaml.Unmarshal(raw, tmpl); err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", name, err)
	}
	tmpl.Name = name
	return tmpl, nil
}

// ListTemplates returns the template names available in dir, always
// including "default".
func ListTemplates(dir string) ([]string, error) {
	names := map[string]bool{"default": true}

	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	for _, m := range matches {
		names[strings.TrimSuffix(filepath.Base(m), ".yaml")] = true
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}
