package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/repository"
)

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "manage clients",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "add a new client",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "contact"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "phone"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "notes"},
				},
				Action: clientAdd,
			},
			{
				Name:   "list",
				Usage:  "list all clients",
				Action: clientList,
			},
			{
				Name:      "get",
				Usage:     "show one client by id or name",
				ArgsUsage: "<id|name>",
				Action:    clientGet,
			},
			{
				Name:      "update",
				Usage:     "update client fields",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "contact"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "phone"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "notes"},
				},
				Action: clientUpdate,
			},
			{
				Name:      "delete",
				Usage:     "delete a client and all its projects",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}},
				},
				Action: clientDelete,
			},
		},
	}
}

func clientAdd(c *cli.Context) error {
	env := getEnv(c)
	repo := repository.NewClientRepository(env.db)

	client, err := repo.Create(&models.CreateClientRequest{
		Name:        c.String("name"),
		ContactName: c.String("contact"),
		Email:       c.String("email"),
		Phone:       c.String("phone"),
		Address:     c.String("address"),
		Notes:       c.String("notes"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Created client %d: %s\n", client.ID, client.Name)
	return nil
}

func clientList(c *cli.Context) error {
	env := getEnv(c)
	repo := repository.NewClientRepository(env.db)

	clients, err := repo.GetAll()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(clients) == 0 {
		fmt.Println("No clients yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONTACT\tEMAIL")
	for _, client := range clients {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", client.ID, client.Name, client.ContactName, client.Email)
	}
	return w.Flush()
}

// resolveClient accepts either a numeric id or a client name.
func resolveClient(repo *repository.ClientRepository, ref string) (*models.Client, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return repo.GetByID(id)
	}
	return repo.GetByName(ref)
}

func clientGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: client get <id|name>", 1)
	}
	env := getEnv(c)
	repo := repository.NewClientRepository(env.db)

	client, err := resolveClient(repo, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Client %d\n", client.ID)
	fmt.Printf("  Name:    %s\n", client.Name)
	if client.ContactName != "" {
		fmt.Printf("  Contact: %s\n", client.ContactName)
	}
	if client.Email != "" {
		fmt.Printf("  Email:   %s\n", client.Email)
	}
	if client.Phone != "" {
		fmt.Printf("  Phone:   %s\n", client.Phone)
	}
	if client.Address != "" {
		fmt.Printf("  Address: %s\n", client.Address)
	}
	if client.Notes != "" {
		fmt.Printf("  Notes:   %s\n", client.Notes)
	}
	return nil
}

func clientUpdate(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: client update <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("client id must be a number", 1)
	}

	update := &models.UpdateClientRequest{}
	if c.IsSet("name") {
		v := c.String("name")
		update.Name = &v
	}
	if c.IsSet("contact") {
		v := c.String("contact")
		update.ContactName = &v
	}
	if c.IsSet("email") {
		v := c.String("email")
		update.Email = &v
	}
	if c.IsSet("phone") {
		v := c.String("phone")
		update.Phone = &v
	}
	if c.IsSet("address") {
		v := c.String("address")
		update.Address = &v
	}
	if c.IsSet("notes") {
		v := c.String("notes")
		update.Notes = &v
	}

	env := getEnv(c)
	repo := repository.NewClientRepository(env.db)
	client, err := repo.Update(id, update)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Updated client %d: %s\n", client.ID, client.Name)
	return nil
}

func clientDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: client delete <id>", 1)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("client id must be a number", 1)
	}
	if !c.Bool("force") {
		return cli.Exit("deleting a client removes its projects and work logs; re-run with --force", 1)
	}

	env := getEnv(c)
	repo := repository.NewClientRepository(env.db)
	if err := repo.Delete(id); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Deleted client %d\n", id)
	return nil
}
