package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/database"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/taskbinding"
)

// BindingsCommand returns the command for inspecting and creating task bindings
func BindingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "bindings",
		Usage: "Manage conversation to Deck card bindings",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all task bindings",
				Action: runBindingsList,
			},
			{
				Name:  "add",
				Usage: "Bind a Talk conversation to a Deck card",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Usage: "Talk conversation token", Required: true},
					&cli.IntFlag{Name: "board", Usage: "Deck board ID", Required: true},
					&cli.IntFlag{Name: "stack", Usage: "Deck stack ID the card is in", Required: true},
					&cli.IntFlag{Name: "card", Usage: "Deck card ID", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Card title", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Card description"},
				},
				Action: runBindingsAdd,
			},
		},
	}
}

func openBindings(c *cli.Context) (*taskbinding.Store, func() error, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	db, dialect, err := database.Open(c.Context, database.ResolveURL(cfg.Tasks.DatabaseURL))
	if err != nil {
		return nil, nil, err
	}
	store := taskbinding.NewStore(db, dialect)
	if err := store.Migrate(c.Context); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate task bindings: %w", err)
	}
	return store, db.Close, nil
}

func runBindingsList(c *cli.Context) error {
	store, closeDB, err := openBindings(c)
	if err != nil {
		return err
	}
	defer closeDB()

	return printBindings(c.Context, os.Stdout, store)
}

func printBindings(ctx context.Context, w io.Writer, store *taskbinding.Store) error {
	bindings, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(bindings) == 0 {
		fmt.Fprintln(w, "No task bindings")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tBOARD\tSTACK\tCARD\tSTATUS\tCREATED\tTITLE")
	for _, b := range bindings {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			b.Token, b.BoardID, b.StackID, b.CardID, b.Status,
			b.CreatedAt.UTC().Format("2006-01-02 15:04"), b.CardTitle)
	}
	return tw.Flush()
}

func runBindingsAdd(c *cli.Context) error {
	store, closeDB, err := openBindings(c)
	if err != nil {
		return err
	}
	defer closeDB()

	b := taskbinding.TaskBinding{
		Token:           c.String("token"),
		BoardID:         c.Int("board"),
		StackID:         c.Int("stack"),
		CardID:          c.Int("card"),
		CardTitle:       c.String("title"),
		CardDescription: c.String("description"),
		Status:          taskbinding.StatusActive,
	}
	if err := store.Upsert(c.Context, b); err != nil {
		return err
	}

	fmt.Printf("Bound conversation %s to card %d (%s)\n", b.Token, b.CardID, b.CardTitle)
	return nil
}
