package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/repository"
)

func workLogCommand() *cli.Command {
	return &cli.Command{
		Name:    "log",
		Aliases: []string{"worklog"},
		Usage:   "record and inspect work logs",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "record work, either with explicit flags or from free-form text",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "project id or name"},
					&cli.StringFlag{Name: "date", Usage: "work date YYYY-MM-DD, defaults to today"},
					&cli.Float64Flag{Name: "hours"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
					&cli.StringFlag{Name: "category"},
					&cli.BoolFlag{Name: "non-billable"},
					&cli.StringSliceFlag{Name: "tag"},
					&cli.StringFlag{Name: "free-form", Usage: "extract one or more log entries from natural language"},
				},
				Action: workLogAdd,
			},
			{
				Name:  "list",
				Usage: "list work logs, defaulting to the current month",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "project id or name"},
					&cli.StringFlag{Name: "client", Usage: "client id or name"},
					&cli.StringFlag{Name: "from", Usage: "start date YYYY-MM-DD"},
					&cli.StringFlag{Name: "to", Usage: "end date YYYY-MM-DD"},
					&cli.BoolFlag{Name: "unbilled", Usage: "only logs not yet invoiced"},
				},
				Action: workLogList,
			},
			{
				Name:      "get",
				Usage:     "show one work log with its billed value",
				ArgsUsage: "<id>",
				Action:    workLogGet,
			},
			{
				Name:      "update",
				Usage:     "update a work log",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date"},
					&cli.Float64Flag{Name: "hours"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
					&cli.StringFlag{Name: "category"},
					&cli.BoolFlag{Name: "billable"},
					&cli.BoolFlag{Name: "non-billable"},
					&cli.StringSliceFlag{Name: "tag"},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "allow billing-relevant changes on an already invoiced log"},
				},
				Action: workLogUpdate,
			},
			{
				Name:      "delete",
				Usage:     "delete a work log",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}},
				},
				Action: workLogDelete,
			},
			{
				Name:  "summary",
				Usage: "summarize logged hours by project and category",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Usage: "client id or name"},
					&cli.StringFlag{Name: "from"},
					&cli.StringFlag{Name: "to"},
				},
				Action: workLogSummary,
			},
		},
	}
}

func resolveProject(repo *repository.ProjectRepository, ref string) (*models.Project, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return repo.GetByID(id)
	}
	return repo.GetByName(ref)
}

func workLogAdd(c *cli.Context) error {
	if c.IsSet("free-form") {
		return workLogAddFreeForm(c)
	}
	if !c.IsSet("project") || !c.IsSet("hours") || !c.IsSet("description") {
		return cli.Exit("either --free-form or all of --project, --hours, --description are required", 1)
	}

	env := getEnv(c)
	projects := repository.NewProjectRepository(env.db)
	logs := repository.NewWorkLogRepository(env.db)

	project, err := resolveProject(projects, c.String("project"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	workDate := time.Now()
	if c.IsSet("date") {
		workDate, err = parseFlagDate(c.String("date"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	log, err := models.NewWorkLog(
		project.ID,
		workDate,
		c.Float64("hours"),
		c.String("description"),
		c.String("category"),
		!c.Bool("non-billable"),
		c.StringSlice("tag"),
	)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if _, err := logs.Create(log); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Logged %.2f hours on %s (%s), work log %d\n",
		log.Hours, project.Name, log.WorkDate.Format(dateFlagLayout), log.ID)
	return nil
}

// workLogAddFreeForm runs the extraction pipeline and creates a log per
// extracted entry, resolving client and project by the names the model found.
func workLogAddFreeForm(c *cli.Context) error {
	env := getEnv(c)
	processor, err := newProcessor(env)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	entries, err := processor.ProcessFreeForm(c.Context, c.String("free-form"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	clients := repository.NewClientRepository(env.db)
	projects := repository.NewProjectRepository(env.db)
	logs := repository.NewWorkLogRepository(env.db)

	created := 0
	for _, entry := range entries {
		project, err := resolveProject(projects, entry.Project)
		if err != nil {
			// The model may know the client but not an exact project name.
			client, cerr := clients.GetByName(entry.Client)
			if cerr != nil {
				return cli.Exit(fmt.Sprintf("cannot match %q / %q to a known client and project", entry.Client, entry.Project), 1)
			}
			candidates, perr := projects.GetByClientID(client.ID)
			if perr != nil || len(candidates) != 1 {
				return cli.Exit(fmt.Sprintf("project %q not found for client %s; create it first", entry.Project, client.Name), 1)
			}
			project = candidates[0]
		}

		log, err := models.NewWorkLog(project.ID, entry.WorkDate, entry.Hours, entry.Description, entry.Category, entry.Billable, entry.Tags)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if _, err := logs.Create(log); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		fmt.Printf("Logged %.2f hours on %s (%s): %s\n",
			log.Hours, project.Name, log.WorkDate.Format(dateFlagLayout), log.Description)
		created++
	}

	fmt.Printf("Created %d work log(s) from free-form input\n", created)
	return nil
}

// listWindow resolves --from/--to. No dates means the current month, only
// --from runs through today, and only --to covers that date's month.
func listWindow(c *cli.Context) (time.Time, time.Time, error) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now

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
		if !c.IsSet("from") {
			from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, to.Location())
		}
	}
	return from, to, nil
}

// filterWindow keeps logs dated within [from, to].
func filterWindow(list []*models.WorkLog, from, to time.Time) []*models.WorkLog {
	filtered := make([]*models.WorkLog, 0, len(list))
	for _, log := range list {
		if log.WorkDate.Before(from) || log.WorkDate.After(to) {
			continue
		}
		filtered = append(filtered, log)
	}
	return filtered
}

func workLogList(c *cli.Context) error {
	env := getEnv(c)
	logs := repository.NewWorkLogRepository(env.db)

	var list []*models.WorkLog
	var err error
	switch {
	case c.IsSet("project"):
		projects := repository.NewProjectRepository(env.db)
		project, perr := resolveProject(projects, c.String("project"))
		if perr != nil {
			return cli.Exit(perr.Error(), 1)
		}
		list, err = logs.GetByProjectID(project.ID)
	case c.IsSet("client"):
		clients := repository.NewClientRepository(env.db)
		client, cerr := resolveClient(clients, c.String("client"))
		if cerr != nil {
			return cli.Exit(cerr.Error(), 1)
		}
		list, err = logs.GetByClientID(client.ID)
	case c.Bool("unbilled"):
		list, err = logs.GetUnbilled()
	default:
		from, to, werr := listWindow(c)
		if werr != nil {
			return cli.Exit(werr.Error(), 1)
		}
		list, err = logs.GetByDateRange(from, to)
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Project and client listings show everything unless a window is asked
	// for explicitly.
	if (c.IsSet("project") || c.IsSet("client")) && (c.IsSet("from") || c.IsSet("to")) {
		from, to, werr := listWindow(c)
		if werr != nil {
			return cli.Exit(werr.Error(), 1)
		}
		list = filterWindow(list, from, to)
	}

	if len(list) == 0 {
		fmt.Println("No work logs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tPROJECT\tHOURS\tBILLABLE\tINVOICED\tDESCRIPTION")
	total := 0.0
	for _, log := range list {
		invoiced := "-"
		if log.Billed() {
			invoiced = strconv.FormatInt(*log.InvoiceID, 10)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%t\t%s\t%s\n",
			log.ID, log.WorkDate.Format(dateFlagLayout), log.ProjectID, log.Hours, log.Billable, invoiced, truncate(log.Description, 50))
		total += log.Hours
	}
	fmt.Fprintf(w, "\t\t\t%.2f\t\t\ttotal\n", total)
	return w.Flush()
}

func workLogGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: log get <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("work log id must be a number", 1)
	}

	env := getEnv(c)
	logs := repository.NewWorkLogRepository(env.db)
	projects := repository.NewProjectRepository(env.db)

	log, err := logs.GetByID(id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	project, err := projects.GetByID(log.ProjectID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Work log %d\n", log.ID)
	fmt.Printf("  Project:     %s\n", project.Name)
	fmt.Printf("  Date:        %s\n", log.WorkDate.Format(dateFlagLayout))
	fmt.Printf("  Hours:       %.2f\n", log.Hours)
	fmt.Printf("  Description: %s\n", log.Description)
	if log.Category != "" {
		fmt.Printf("  Category:    %s\n", log.Category)
	}
	fmt.Printf("  Billable:    %t\n", log.Billable)
	if len(log.Tags) > 0 {
		fmt.Printf("  Tags:        %s\n", strings.Join(log.Tags, ", "))
	}
	if log.Billable {
		fmt.Printf("  Value:       $%.2f\n", models.Round2(log.Hours*project.HourlyRate))
	}
	if log.Billed() {
		fmt.Printf("  Invoice:     %d\n", *log.InvoiceID)
	}
	return nil
}

func workLogUpdate(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: log update <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("work log id must be a number", 1)
	}
	if c.Bool("billable") && c.Bool("non-billable") {
		return cli.Exit("--billable and --non-billable are mutually exclusive", 1)
	}

	update := &models.UpdateWorkLogRequest{}
	if c.IsSet("date") {
		d, err := parseFlagDate(c.String("date"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		update.WorkDate = &d
	}
	if c.IsSet("hours") {
		v := c.Float64("hours")
		update.Hours = &v
	}
	if c.IsSet("description") {
		v := c.String("description")
		update.Description = &v
	}
	if c.IsSet("category") {
		v := c.String("category")
		update.Category = &v
	}
	if c.Bool("billable") {
		v := true
		update.Billable = &v
	}
	if c.Bool("non-billable") {
		v := false
		update.Billable = &v
	}
	if c.IsSet("tag") {
		update.Tags = c.StringSlice("tag")
	}

	env := getEnv(c)
	logs := repository.NewWorkLogRepository(env.db)

	existing, err := logs.GetByID(id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if existing.Billed() && update.TouchesBilling() && !c.Bool("force") {
		return cli.Exit(fmt.Sprintf(
			"work log %d is already on invoice %d; changing its date, hours, or billable flag will not update that invoice. Re-run with --force to proceed.",
			id, *existing.InvoiceID), 1)
	}

	log, err := logs.Update(id, update)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Updated work log %d (%.2f hours on %s)\n", log.ID, log.Hours, log.WorkDate.Format(dateFlagLayout))
	return nil
}

func workLogDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: log delete <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("work log id must be a number", 1)
	}

	env := getEnv(c)
	logs := repository.NewWorkLogRepository(env.db)

	existing, err := logs.GetByID(id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if existing.Billed() && !c.Bool("force") {
		return cli.Exit(fmt.Sprintf("work log %d is on invoice %d; re-run with --force to delete it anyway", id, *existing.InvoiceID), 1)
	}
	if !existing.Billed() && !c.Bool("force") {
		return cli.Exit("re-run with --force to confirm deletion", 1)
	}

	if err := logs.Delete(id); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Deleted work log %d\n", id)
	return nil
}

func workLogSummary(c *cli.Context) error {
	env := getEnv(c)
	logs := repository.NewWorkLogRepository(env.db)
	projects := repository.NewProjectRepository(env.db)

	from, to, err := listWindow(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var list []*models.WorkLog
	if c.IsSet("client") {
		clients := repository.NewClientRepository(env.db)
		client, cerr := resolveClient(clients, c.String("client"))
		if cerr != nil {
			return cli.Exit(cerr.Error(), 1)
		}
		list, err = logs.GetByClientID(client.ID)
	} else {
		list, err = logs.GetByDateRange(from, to)
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	list = filterWindow(list, from, to)

	type bucket struct {
		hours float64
		value float64
	}
	byProject := map[int64]*bucket{}
	byCategory := map[string]*bucket{}
	rateCache := map[int64]float64{}
	total := bucket{}

	for _, log := range list {
		rate, ok := rateCache[log.ProjectID]
		if !ok {
			project, perr := projects.GetByID(log.ProjectID)
			if perr != nil {
				return cli.Exit(perr.Error(), 1)
			}
			rate = project.HourlyRate
			rateCache[log.ProjectID] = rate
		}
		value := 0.0
		if log.Billable {
			value = models.Round2(log.Hours * rate)
		}

		if byProject[log.ProjectID] == nil {
			byProject[log.ProjectID] = &bucket{}
		}
		byProject[log.ProjectID].hours += log.Hours
		byProject[log.ProjectID].value += value

		category := log.Category
		if category == "" {
			category = "General"
		}
		if byCategory[category] == nil {
			byCategory[category] = &bucket{}
		}
		byCategory[category].hours += log.Hours
		byCategory[category].value += value

		total.hours += log.Hours
		total.value += value
	}

	if total.hours == 0 {
		fmt.Printf("No work logged between %s and %s.\n", from.Format(dateFlagLayout), to.Format(dateFlagLayout))
		return nil
	}

	fmt.Printf("Work summary %s to %s\n\n", from.Format(dateFlagLayout), to.Format(dateFlagLayout))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tHOURS\tVALUE")
	projectIDs := make([]int64, 0, len(byProject))
	for id := range byProject {
		projectIDs = append(projectIDs, id)
	}
	sort.Slice(projectIDs, func(i, j int) bool { return projectIDs[i] < projectIDs[j] })
	for _, id := range projectIDs {
		b := byProject[id]
		name := strconv.FormatInt(id, 10)
		if p, err := projects.GetByID(id); err == nil {
			name = p.Name
		}
		fmt.Fprintf(w, "%s\t%.2f\t$%.2f\n", name, b.hours, b.value)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CATEGORY\tHOURS\tVALUE")
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		b := byCategory[cat]
		fmt.Fprintf(w, "%s\t%.2f\t$%.2f\n", cat, b.hours, b.value)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "TOTAL\t%.2f\t$%.2f\n", total.hours, total.value)
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
