package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/repository"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "show a snapshot of the workspace",
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	env := getEnv(c)

	clients := repository.NewClientRepository(env.db)
	projects := repository.NewProjectRepository(env.db)
	logs := repository.NewWorkLogRepository(env.db)
	invoices := repository.NewInvoiceRepository(env.db)

	allClients, err := clients.GetAll()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	allProjects, err := projects.GetAll()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	unbilled, err := logs.GetUnbilled()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	drafts, err := invoices.List(repository.ListFilter{Status: models.StatusDraft})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	overdue, err := invoices.List(repository.ListFilter{Status: models.StatusOverdue})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	unbilledHours := 0.0
	for _, log := range unbilled {
		unbilledHours += log.Hours
	}

	ollamaStatus := "reachable"
	if client, cerr := newOllamaClient(env); cerr != nil {
		ollamaStatus = "unavailable: " + cerr.Error()
	} else if perr := client.Ping(c.Context); perr != nil {
		ollamaStatus = "unreachable"
	}

	fmt.Printf("Database:         %s\n", env.cfg.DatabasePath)
	fmt.Printf("Ollama:           %s (%s), %s\n", env.cfg.Ollama.BaseURL, env.cfg.Ollama.Model, ollamaStatus)
	fmt.Println()
	fmt.Printf("Clients:          %d\n", len(allClients))
	fmt.Printf("Projects:         %d\n", len(allProjects))
	fmt.Printf("Unbilled work:    %d log(s), %.2f hours\n", len(unbilled), unbilledHours)
	fmt.Printf("Draft invoices:   %d\n", len(drafts))
	fmt.Printf("Overdue invoices: %d\n", len(overdue))
	return nil
}
