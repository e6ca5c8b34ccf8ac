package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pritish3006/InvoiceAgent/internal/billing"
	"github.com/pritish3006/InvoiceAgent/internal/export"
	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/repository"
)

func invoiceCommand() *cli.Command {
	return &cli.Command{
		Name:  "invoice",
		Usage: "generate and manage invoices",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "aggregate unbilled work into a draft invoice",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Required: true, Usage: "client id or name"},
					&cli.StringFlag{Name: "from", Usage: "period start YYYY-MM-DD, defaults to first of last month"},
					&cli.StringFlag{Name: "to", Usage: "period end YYYY-MM-DD, defaults to last of last month"},
					&cli.StringFlag{Name: "issue-date", Usage: "defaults to today"},
					&cli.StringFlag{Name: "due-date", Usage: "defaults to 30 days after issue"},
					&cli.Float64Flag{Name: "tax-rate", Usage: "tax percentage, 0 for none"},
					&cli.StringFlag{Name: "notes"},
					&cli.BoolFlag{Name: "ai-notes", Usage: "generate the notes paragraph with the model"},
					&cli.BoolFlag{Name: "dry-run", Usage: "show the invoice without saving it"},
				},
				Action: invoiceGenerate,
			},
			{
				Name:  "list",
				Usage: "list invoices",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Usage: "client id or name"},
					&cli.StringFlag{Name: "status", Usage: "draft, sent, paid, overdue, or canceled"},
					&cli.StringFlag{Name: "from", Usage: "issue date lower bound"},
					&cli.StringFlag{Name: "to", Usage: "issue date upper bound"},
				},
				Action: invoiceList,
			},
			{
				Name:      "get",
				Usage:     "show one invoice with its items",
				ArgsUsage: "<id|number>",
				Action:    invoiceGet,
			},
			{
				Name:      "update-status",
				Usage:     "move an invoice through its lifecycle",
				ArgsUsage: "<id> <status>",
				Action:    invoiceUpdateStatus,
			},
			{
				Name:      "delete",
				Usage:     "delete an invoice, releasing its work logs",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}},
				},
				Action: invoiceDelete,
			},
			{
				Name:      "export",
				Usage:     "render an invoice to PDF",
				ArgsUsage: "<id|number>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "template", Value: "default"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output path, defaults to <number>.pdf"},
				},
				Action: invoiceExport,
			},
			{
				Name:   "templates",
				Usage:  "list available PDF templates",
				Action: invoiceTemplates,
			},
			{
				Name:      "summarize",
				Usage:     "write an AI summary of the work behind an invoice",
				ArgsUsage: "<id>",
				Action:    invoiceSummarize,
			},
		},
	}
}

// generateWindow defaults the billing period to the previous calendar month.
func generateWindow(c *cli.Context) (time.Time, time.Time, error) {
	now := time.Now()
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from := firstOfThisMonth.AddDate(0, -1, 0)
	to := firstOfThisMonth.AddDate(0, 0, -1)

	var err error
	if c.IsSet("from") {
		from, err = parseFlagDate(c.String("from"))
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if c.IsSet("to") {
		to, err = parseFlagDate(c.String("to"))
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func invoiceGenerate(c *cli.Context) error {
	env := getEnv(c)
	clients := repository.NewClientRepository(env.db)

	client, err := resolveClient(clients, c.String("client"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	from, to, err := generateWindow(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	params := billing.GenerateParams{
		ClientID:  client.ID,
		StartDate: from,
		EndDate:   to,
		TaxRate:   c.Float64("tax-rate"),
		Notes:     c.String("notes"),
		DryRun:    c.Bool("dry-run"),
	}
	if c.IsSet("issue-date") {
		params.IssueDate, err = parseFlagDate(c.String("issue-date"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	if c.IsSet("due-date") {
		params.DueDate, err = parseFlagDate(c.String("due-date"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	if c.Bool("ai-notes") && params.Notes == "" {
		logs := repository.NewWorkLogRepository(env.db)
		eligible, lerr := logs.GetBillableUnbilled(client.ID, from, to)
		if lerr == nil && len(eligible) > 0 {
			processor, perr := newProcessor(env)
			if perr == nil {
				if summary, serr := processor.GenerateInvoiceSummary(c.Context, eligible); serr == nil {
					params.Notes = summary
				} else {
					fmt.Fprintf(os.Stderr, "warning: AI notes unavailable: %v\n", serr)
				}
			}
		}
	}

	aggregator := billing.NewAggregator(env.db, env.log.Logger)
	invoice, err := aggregator.Generate(params)
	if errors.Is(err, billing.ErrNothingToInvoice) {
		fmt.Printf("Nothing to invoice for %s between %s and %s.\n",
			client.Name, from.Format(dateFlagLayout), to.Format(dateFlagLayout))
		return nil
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("dry-run") {
		fmt.Println("Dry run, nothing saved.")
	} else {
		fmt.Printf("Created invoice %d\n", invoice.ID)
	}
	printInvoice(invoice)
	return nil
}

func invoiceList(c *cli.Context) error {
	env := getEnv(c)
	invoices := repository.NewInvoiceRepository(env.db)

	filter := repository.ListFilter{}
	if c.IsSet("client") {
		clients := repository.NewClientRepository(env.db)
		client, err := resolveClient(clients, c.String("client"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		filter.ClientID = client.ID
	}
	if c.IsSet("status") {
		status, err := models.ParseInvoiceStatus(c.String("status"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		filter.Status = status
	}
	var err error
	if c.IsSet("from") {
		filter.StartDate, err = parseFlagDate(c.String("from"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	if c.IsSet("to") {
		filter.EndDate, err = parseFlagDate(c.String("to"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	list, err := invoices.List(filter)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(list) == 0 {
		fmt.Println("No invoices found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tCLIENT\tISSUED\tDUE\tSTATUS\tTOTAL")
	for _, inv := range list {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t$%.2f\n",
			inv.ID, inv.InvoiceNumber, inv.ClientID,
			inv.IssueDate.Format(dateFlagLayout), inv.DueDate.Format(dateFlagLayout),
			inv.Status, inv.TotalAmount)
	}
	return w.Flush()
}

// resolveInvoice accepts a numeric id or an invoice number like
// INV-20240301-01.
func resolveInvoice(repo *repository.InvoiceRepository, ref string) (*models.Invoice, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return repo.GetByID(id)
	}
	return repo.GetByNumber(ref)
}

func invoiceGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: invoice get <id|number>", 1)
	}
	env := getEnv(c)
	invoices := repository.NewInvoiceRepository(env.db)

	invoice, err := resolveInvoice(invoices, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	full, err := invoices.GetWithItems(invoice.ID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	printInvoice(full)
	return nil
}

func printInvoice(inv *models.Invoice) {
	fmt.Printf("\n%s  [%s]\n", inv.InvoiceNumber, inv.Status)
	if inv.Client != nil {
		fmt.Printf("Client: %s\n", inv.Client.Name)
	}
	fmt.Printf("Issued: %s   Due: %s\n", inv.IssueDate.Format(dateFlagLayout), inv.DueDate.Format(dateFlagLayout))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DESCRIPTION\tQTY\tRATE\tAMOUNT")
	for _, item := range inv.Items {
		desc := item.Description
		if item.Category != "" {
			desc = fmt.Sprintf("[%s] %s", item.Category, desc)
		}
		fmt.Fprintf(w, "%s\t%.2f %s\t$%.2f\t$%.2f\n", truncate(desc, 60), item.Quantity, item.Unit, item.Rate, item.Amount)
	}
	w.Flush()

	fmt.Printf("\nSubtotal: $%.2f\n", inv.Subtotal)
	if inv.HasTax() {
		fmt.Printf("Tax (%.2f%%): $%.2f\n", inv.TaxRate, inv.TaxAmount)
	}
	fmt.Printf("Total: $%.2f\n", inv.TotalAmount)
	if strings.TrimSpace(inv.Notes) != "" {
		fmt.Printf("\nNotes: %s\n", inv.Notes)
	}
}

func invoiceUpdateStatus(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: invoice update-status <id> <status>", 1)
	}
	id, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
	if err != nil {
		return cli.Exit("invoice id must be a number", 1)
	}
	status, err := models.ParseInvoiceStatus(c.Args().Get(1))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	env := getEnv(c)
	aggregator := billing.NewAggregator(env.db, env.log.Logger)
	invoice, err := aggregator.UpdateStatus(id, status)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Invoice %s is now %s\n", invoice.InvoiceNumber, invoice.Status)
	return nil
}

func invoiceDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: invoice delete <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("invoice id must be a number", 1)
	}
	if !c.Bool("force") {
		return cli.Exit("deleting an invoice releases its work logs for re-invoicing; re-run with --force", 1)
	}

	env := getEnv(c)
	aggregator := billing.NewAggregator(env.db, env.log.Logger)
	if err := aggregator.Delete(id); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Deleted invoice %d\n", id)
	return nil
}

func invoiceExport(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: invoice export <id|number>", 1)
	}
	env := getEnv(c)
	invoices := repository.NewInvoiceRepository(env.db)

	invoice, err := resolveInvoice(invoices, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	full, err := invoices.GetWithItems(invoice.ID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	tmpl, err := export.LoadTemplate(env.cfg.TemplatesDir, c.String("template"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	output := c.String("output")
	if output == "" {
		output = full.InvoiceNumber + ".pdf"
	}

	renderer := export.NewRenderer(tmpl, env.log.Logger)
	if err := renderer.RenderFile(full, output); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Wrote %s\n", output)
	return nil
}

func invoiceTemplates(c *cli.Context) error {
	env := getEnv(c)
	names, err := export.ListTemplates(env.cfg.TemplatesDir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func invoiceSummarize(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: invoice summarize <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("invoice id must be a number", 1)
	}

	env := getEnv(c)
	logs := repository.NewWorkLogRepository(env.db)
	billed, err := logs.GetByInvoiceID(id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(billed) == 0 {
		return cli.Exit(fmt.Sprintf("invoice %d has no linked work logs to summarize", id), 1)
	}

	processor, err := newProcessor(env)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	summary, err := processor.GenerateInvoiceSummary(c.Context, billed)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Println(summary)
	return nil
}
