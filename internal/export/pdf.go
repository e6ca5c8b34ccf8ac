package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/pritish3006/InvoiceAgent/internal/models"
)

const dateDisplayLayout = "January 02, 2006"

// Renderer writes invoices to PDF using a layout template.
type Renderer struct {
	template *Template
	logger   *zap.Logger
}

func NewRenderer(template *Template, logger *zap.Logger) *Renderer {
	return &Renderer{template: template, logger: logger}
}

// RenderFile renders the invoice to the given path. The invoice must carry
// its items and client, as loaded by GetWithItems.
func (r *Renderer) RenderFile(invoice *models.Invoice, path string) error {
	if invoice.Client == nil {
		return fmt.Errorf("invoice %s has no client loaded", invoice.InvoiceNumber)
	}

	t := r.template
	pdf := gofpdf.New(orientation(t.Page.Orientation), "mm", pageSize(t.Page.Size), "")
	pdf.SetMargins(t.Page.MarginLeft, t.Page.MarginTop, t.Page.MarginRight)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	r.renderTitle(pdf, invoice)
	r.renderHeader(pdf)
	r.renderClient(pdf, invoice)

	cash, equity := splitItems(invoice.Items)
	r.renderItemsTable(pdf, cash)
	if len(equity) > 0 {
		r.renderEquityTable(pdf, equity)
	}
	r.renderTotals(pdf, invoice)
	r.renderNotes(pdf, invoice)
	r.renderFooter(pdf)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}

	r.logger.Info("Rendered invoice PDF",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("path", path),
		zap.String("template", t.Name),
	)
	return nil
}

func orientation(o string) string {
	if strings.EqualFold(o, "L") || strings.EqualFold(o, "landscape") {
		return "L"
	}
	return "P"
}

func pageSize(s string) string {
	switch strings.ToUpper(s) {
	case "LETTER":
		return "Letter"
	case "LEGAL":
		return "Legal"
	default:
		return "A4"
	}
}

func splitItems(items []models.InvoiceItem) (cash, equity []models.InvoiceItem) {
	for _, item := range items {
		if item.HasEquityComponent() {
			equity = append(equity, item)
		} else {
			cash = append(cash, item)
		}
	}
	return cash, equity
}

func (r *Renderer) pageWidth(pdf *gofpdf.Fpdf) float64 {
	w, _ := pdf.GetPageSize()
	return w - r.template.Page.MarginLeft - r.template.Page.MarginRight
}

func (r *Renderer) renderTitle(pdf *gofpdf.Fpdf, invoice *models.Invoice) {
	title := r.template.InvoiceInfo.Title
	if title == "" {
		title = "INVOICE"
	}
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(r.pageWidth(pdf), 12, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(r.pageWidth(pdf), 5, "Invoice Number: "+invoice.InvoiceNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(r.pageWidth(pdf), 5, "Issue Date: "+invoice.IssueDate.Format(dateDisplayLayout), "", 1, "L", false, 0, "")
	pdf.CellFormat(r.pageWidth(pdf), 5, "Due Date: "+invoice.DueDate.Format(dateDisplayLayout), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (r *Renderer) renderHeader(pdf *gofpdf.Fpdf) {
	h := r.template.Header

	if h.LogoPath != "" {
		if _, err := os.Stat(h.LogoPath); err == nil {
			pdf.ImageOptions(h.LogoPath, pdf.GetX(), pdf.GetY(), 30, 0, true, gofpdf.ImageOptions{}, 0, "")
			pdf.Ln(2)
		} else {
			r.logger.Warn("Logo not found, skipping", zap.String("path", h.LogoPath))
		}
	}

	if h.CompanyName != "" {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(r.pageWidth(pdf), 6, h.CompanyName, "", 1, "L", false, 0, "")
	}
	if h.CompanyDetails != "" {
		pdf.SetFont("Arial", "", 9)
		for _, line := range strings.Split(h.CompanyDetails, "\n") {
			pdf.CellFormat(r.pageWidth(pdf), 4.5, line, "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)
}

func (r *Renderer) renderClient(pdf *gofpdf.Fpdf, invoice *models.Invoice) {
	label := r.template.ClientInfo.Label
	if label == "" {
		label = "Bill To:"
	}
	client := invoice.Client

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(r.pageWidth(pdf), 5, label, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(r.pageWidth(pdf), 5, client.Name, "", 1, "L", false, 0, "")
	if client.ContactName != "" {
		pdf.CellFormat(r.pageWidth(pdf), 5, client.ContactName, "", 1, "L", false, 0, "")
	}
	if client.Address != "" {
		for _, line := range strings.Split(client.Address, "\n") {
			pdf.CellFormat(r.pageWidth(pdf), 5, line, "", 1, "L", false, 0, "")
		}
	}
	if client.Email != "" {
		pdf.CellFormat(r.pageWidth(pdf), 5, client.Email, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

// scaledWidths maps the template's relative column widths onto the usable
// page width so templates do not need to know the physical page size.
func (r *Renderer) scaledWidths(pdf *gofpdf.Fpdf, columns []Column) []float64 {
	total := 0.0
	for _, c := range columns {
		total += c.Width
	}
	usable := r.pageWidth(pdf)
	widths := make([]float64, len(columns))
	for i, c := range columns {
		widths[i] = c.Width / total * usable
	}
	return widths
}

func (r *Renderer) currency(v float64) string {
	symbol := r.template.Currency
	if symbol == "" {
		symbol = "$"
	}
	return fmt.Sprintf("%s%.2f", symbol, v)
}

func (r *Renderer) renderItemsTable(pdf *gofpdf.Fpdf, items []models.InvoiceItem) {
	columns := r.template.ItemsTable.Columns
	widths := r.scaledWidths(pdf, columns)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, c := range columns {
		pdf.CellFormat(widths[i], 7, c.Title, "1", 0, align(c.Align), true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		for i, c := range columns {
			pdf.CellFormat(widths[i], 6, r.cellValue(&item, c.Name), "1", 0, align(c.Align), false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func (r *Renderer) cellValue(item *models.InvoiceItem, column string) string {
	switch column {
	case "description":
		desc := item.Description
		if r.template.ItemsTable.ShowCategory && item.Category != "" {
			desc = fmt.Sprintf("[%s] %s", item.Category, desc)
		}
		return desc
	case "quantity":
		return fmt.Sprintf("%.2f", item.Quantity)
	case "unit":
		return item.Unit
	case "rate":
		return r.currency(item.Rate)
	case "amount":
		return r.currency(item.Amount)
	default:
		return ""
	}
}

// renderEquityTable lists equity compensation separately from cash items.
// Quantities keep four decimal places since fractional shares are common.
func (r *Renderer) renderEquityTable(pdf *gofpdf.Fpdf, items []models.InvoiceItem) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(r.pageWidth(pdf), 6, "Equity Compensation", "", 1, "L", false, 0, "")

	usable := r.pageWidth(pdf)
	widths := []float64{usable * 0.5, usable * 0.25, usable * 0.25}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	headers := []string{"Description", "Type", "Quantity"}
	for i, hdr := range headers {
		pdf.CellFormat(widths[i], 7, hdr, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		desc := item.EquityDescription
		if desc == "" {
			desc = item.Description
		}
		pdf.CellFormat(widths[0], 6, desc, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, item.EquityType, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, fmt.Sprintf("%.4f %s", item.EquityQuantity, item.Unit), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func (r *Renderer) renderTotals(pdf *gofpdf.Fpdf, invoice *models.Invoice) {
	t := r.template.Totals
	usable := r.pageWidth(pdf)
	labelW, valueW := usable*0.75, usable*0.25

	row := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(labelW, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(valueW, 6, value, "", 1, "R", false, 0, "")
	}

	row(orDefault(t.SubtotalLabel, "Subtotal"), r.currency(invoice.Subtotal), false)
	if invoice.HasTax() {
		row(fmt.Sprintf("%s (%.2f%%)", orDefault(t.TaxLabel, "Tax"), invoice.TaxRate), r.currency(invoice.TaxAmount), false)
	}
	row(orDefault(t.TotalLabel, "Total Due"), r.currency(invoice.TotalAmount), true)
	pdf.Ln(4)
}

// renderNotes skips notes that carry no information beyond the client name.
func (r *Renderer) renderNotes(pdf *gofpdf.Fpdf, invoice *models.Invoice) {
	notes := strings.TrimSpace(invoice.Notes)
	if notes == "" || isTrivialNotes(notes, invoice.Client.Name) {
		return
	}

	title := orDefault(r.template.ItemsTable.NotesTitle, "Notes")
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(r.pageWidth(pdf), 6, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(r.pageWidth(pdf), 5, notes, "", "L", false)
	pdf.Ln(4)
}

func isTrivialNotes(notes, clientName string) bool {
	n := strings.ToLower(strings.TrimSpace(notes))
	c := strings.ToLower(strings.TrimSpace(clientName))
	return n == c || n == c+" invoice" || n == "invoice"
}

func (r *Renderer) renderFooter(pdf *gofpdf.Fpdf) {
	if r.template.Footer.Text == "" {
		return
	}
	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(r.pageWidth(pdf), 5, r.template.Footer.Text, "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func align(a string) string {
	switch strings.ToUpper(a) {
	case "R":
		return "R"
	case "C":
		return "C"
	default:
		return "L"
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
