package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pritish3006/InvoiceAgent/internal/config"
	"github.com/pritish3006/InvoiceAgent/internal/database"
	"github.com/pritish3006/InvoiceAgent/internal/extract"
	"github.com/pritish3006/InvoiceAgent/internal/logger"
	"github.com/pritish3006/InvoiceAgent/internal/ollama"
)

const dateFlagLayout = "2006-01-02"

// appEnv carries the wired application services through cli.Context metadata.
type appEnv struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB
}

func main() {
	app := &cli.App{
		Name:  "invoiceagent",
		Usage: "local AI-assisted invoicing for independent contractors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				EnvVars: []string{"INVOICEAGENT_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("config error: %v", err), 1)
			}

			log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return cli.Exit(fmt.Sprintf("logger error: %v", err), 1)
			}

			db, err := database.New(cfg.DatabasePath, log.Logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("database error: %v", err), 1)
			}

			c.App.Metadata["env"] = &appEnv{cfg: cfg, log: log, db: db}
			return nil
		},
		After: func(c *cli.Context) error {
			if env, ok := c.App.Metadata["env"].(*appEnv); ok {
				env.db.Close()
				env.log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			clientCommand(),
			projectCommand(),
			workLogCommand(),
			invoiceCommand(),
			aiCommand(),
			statusCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getEnv(c *cli.Context) *appEnv {
	return c.App.Metadata["env"].(*appEnv)
}

func newResponseCache(env *appEnv) (*ollama.ResponseCache, error) {
	return ollama.NewResponseCache(
		env.cfg.CacheDir,
		time.Duration(env.cfg.Ollama.CacheTTL)*time.Second,
		env.log.Logger,
	)
}

// newOllamaClient builds the generation client on demand so database-only
// commands never touch the cache directory or the network.
func newOllamaClient(env *appEnv) (*ollama.Client, error) {
	cache, err := newResponseCache(env)
	if err != nil {
		return nil, err
	}
	return ollama.NewClient(
		env.cfg.Ollama.BaseURL,
		env.cfg.Ollama.Model,
		time.Duration(env.cfg.Ollama.Timeout)*time.Second,
		cache,
		env.log.Logger,
	), nil
}

func newProcessor(env *appEnv) (*extract.Processor, error) {
	client, err := newOllamaClient(env)
	if err != nil {
		return nil, err
	}
	return extract.NewProcessor(client, env.cfg.PromptsDir, env.log.Logger), nil
}

func parseFlagDate(s string) (time.Time, error) {
	d, err := time.Parse(dateFlagLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}
