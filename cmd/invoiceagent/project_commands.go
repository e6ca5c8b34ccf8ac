package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/repository"
)

func projectCommand() *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "manage projects",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "add a project for a client",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Required: true, Usage: "client id or name"},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.Float64Flag{Name: "rate", Required: true, Usage: "hourly rate"},
					&cli.StringFlag{Name: "start", Usage: "start date YYYY-MM-DD"},
					&cli.StringFlag{Name: "end", Usage: "end date YYYY-MM-DD"},
				},
				Action: projectAdd,
			},
			{
				Name:  "list",
				Usage: "list projects, optionally for one client",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Usage: "client id or name"},
				},
				Action: projectList,
			},
			{
				Name:      "update",
				Usage:     "update project fields",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "description"},
					&cli.Float64Flag{Name: "rate"},
					&cli.BoolFlag{Name: "active"},
					&cli.BoolFlag{Name: "inactive"},
				},
				Action: projectUpdate,
			},
			{
				Name:      "delete",
				Usage:     "delete a project and its work logs",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}},
				},
				Action: projectDelete,
			},
		},
	}
}

func projectAdd(c *cli.Context) error {
	env := getEnv(c)
	clients := repository.NewClientRepository(env.db)
	projects := repository.NewProjectRepository(env.db)

	client, err := resolveClient(clients, c.String("client"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var startDate, endDate *time.Time
	if c.IsSet("start") {
		d, err := parseFlagDate(c.String("start"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		startDate = &d
	}
	if c.IsSet("end") {
		d, err := parseFlagDate(c.String("end"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		endDate = &d
	}

	project, err := projects.Create(&models.CreateProjectRequest{
		ClientID:    client.ID,
		Name:        c.String("name"),
		Description: c.String("description"),
		HourlyRate:  c.Float64("rate"),
		StartDate:   startDate,
		EndDate:     endDate,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Created project %d: %s for %s at $%.2f/hour\n", project.ID, project.Name, client.Name, project.HourlyRate)
	return nil
}

func projectList(c *cli.Context) error {
	env := getEnv(c)
	projects := repository.NewProjectRepository(env.db)

	var list []*models.Project
	var err error
	if c.IsSet("client") {
		clients := repository.NewClientRepository(env.db)
		client, cerr := resolveClient(clients, c.String("client"))
		if cerr != nil {
			return cli.Exit(cerr.Error(), 1)
		}
		list, err = projects.GetByClientID(client.ID)
	} else {
		list, err = projects.GetAll()
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(list) == 0 {
		fmt.Println("No projects yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCLIENT\tNAME\tRATE\tACTIVE")
	for _, p := range list {
		fmt.Fprintf(w, "%d\t%d\t%s\t$%.2f\t%t\n", p.ID, p.ClientID, p.Name, p.HourlyRate, p.IsActive)
	}
	return w.Flush()
}

func projectUpdate(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: project update <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("project id must be a number", 1)
	}
	if c.Bool("active") && c.Bool("inactive") {
		return cli.Exit("--active and --inactive are mutually exclusive", 1)
	}

	update := &models.UpdateProjectRequest{}
	if c.IsSet("name") {
		v := c.String("name")
		update.Name = &v
	}
	if c.IsSet("description") {
		v := c.String("description")
		update.Description = &v
	}
	if c.IsSet("rate") {
		v := c.Float64("rate")
		update.HourlyRate = &v
	}
	if c.Bool("active") {
		v := true
		update.IsActive = &v
	}
	if c.Bool("inactive") {
		v := false
		update.IsActive = &v
	}

	env := getEnv(c)
	projects := repository.NewProjectRepository(env.db)
	project, err := projects.Update(id, update)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Updated project %d: %s\n", project.ID, project.Name)
	return nil
}

func projectDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: project delete <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("project id must be a number", 1)
	}
	if !c.Bool("force") {
		return cli.Exit("deleting a project removes its work logs; re-run with --force", 1)
	}

	env := getEnv(c)
	projects := repository.NewProjectRepository(env.db)
	if err := projects.Delete(id); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Deleted project %d\n", id)
	return nil
}
