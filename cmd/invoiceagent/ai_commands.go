package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/pritish3006/InvoiceAgent/internal/ollama"
)

func aiCommand() *cli.Command {
	return &cli.Command{
		Name:  "ai",
		Usage: "inspect and exercise the local model",
		Subcommands: []*cli.Command{
			{
				Name:   "test-connection",
				Usage:  "verify the Ollama service is reachable and list its models",
				Action: aiTestConnection,
			},
			{
				Name:      "process-log",
				Usage:     "extract structured work entries from text without saving them",
				ArgsUsage: "<text>",
				Action:    aiProcessLog,
			},
			{
				Name:   "list-templates",
				Usage:  "list prompt templates and their generation settings",
				Action: aiListTemplates,
			},
			{
				Name:   "clear-cache",
				Usage:  "drop all cached model responses",
				Action: aiClearCache,
			},
		},
	}
}

func aiTestConnection(c *cli.Context) error {
	env := getEnv(c)
	client, err := newOllamaClient(env)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := client.Ping(c.Context); err != nil {
		return cli.Exit(fmt.Sprintf("Ollama is not reachable: %v", err), 1)
	}
	fmt.Printf("Connected to %s\n", env.cfg.Ollama.BaseURL)

	names, err := client.ListModels(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("Configured model: %s\n", env.cfg.Ollama.Model)
	fmt.Println("Available models:")
	for _, n := range names {
		marker := "  "
		if n == env.cfg.Ollama.Model {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, n)
	}

	// A tiny generation proves the configured model actually answers.
	reply, err := client.Generate(c.Context, ollama.GenerateRequest{
		Prompt:      "Reply with the single word OK.",
		Temperature: 0,
		MaxTokens:   10,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("model %s did not respond: %v", env.cfg.Ollama.Model, err), 1)
	}
	fmt.Printf("Sample generation: %s\n", strings.TrimSpace(reply))
	return nil
}

func aiListTemplates(c *cli.Context) error {
	env := getEnv(c)
	templates, err := ollama.ListPromptTemplates(env.cfg.PromptsDir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTEMPERATURE\tMAX TOKENS\tSYSTEM PROMPT")
	for _, tmpl := range templates {
		fmt.Fprintf(w, "%s\t%.2f\t%d\t%s\n", tmpl.Name, tmpl.Temperature, tmpl.MaxTokens, truncate(tmpl.SystemPrompt, 60))
	}
	return w.Flush()
}

func aiProcessLog(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("usage: ai process-log <text>", 1)
	}
	text := strings.Join(c.Args().Slice(), " ")

	env := getEnv(c)
	processor, err := newProcessor(env)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	entries, err := processor.ProcessFreeForm(c.Context, text)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tPROJECT\tDATE\tHOURS\tBILLABLE\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%t\t%s\n",
			e.Client, e.Project, e.WorkDate.Format(dateFlagLayout), e.Hours, e.Billable, truncate(e.Description, 50))
	}
	return w.Flush()
}

func aiClearCache(c *cli.Context) error {
	env := getEnv(c)
	cache, err := newResponseCache(env)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	removed, err := cache.Clear()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("Removed %d cached response(s)\n", removed)
	return nil
}
