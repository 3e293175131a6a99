package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/storefront/pkg/storage"
	"github.com/urfave/cli/v3"
)

// HistoryCommand creates the history command
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show or maintain the recent selections shown as seed results",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of entries to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Delete every entry",
			},
			&cli.IntFlag{
				Name:  "prune",
				Usage: "Keep only the newest N entries",
			},
			&cli.BoolFlag{
				Name:  "optimize",
				Usage: "Checkpoint the WAL and vacuum the database",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runHistory(ctx, os.Stdout, c.String("config"), historyOptions{
				limit:    c.Int("limit"),
				clear:    c.Bool("clear"),
				prune:    c.Int("prune"),
				optimize: c.Bool("optimize"),
			})
		},
	}
}

type historyOptions struct {
	limit    int
	clear    bool
	prune    int
	optimize bool
}

func runHistory(ctx context.Context, w io.Writer, configPath string, opts historyOptions) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	history, err := storage.OpenHistoryIn(cfg.StorageDir)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer func() {
		if err := history.Close(); err != nil {
			fmt.Fprintf(w, "Warning: failed to close history: %v\n", err)
		}
	}()

	switch {
	case opts.clear:
		if err := history.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "History cleared")
	case opts.prune > 0:
		removed, err := history.Prune(ctx, opts.prune)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Removed %d entries\n", removed)
	}

	if opts.optimize {
		if err := history.WALCheckpoint(); err != nil {
			return fmt.Errorf("checkpointing WAL: %w", err)
		}
		if err := history.Vacuum(); err != nil {
			return fmt.Errorf("vacuuming: %w", err)
		}
		fmt.Fprintln(w, "History database optimized")
	}

	if opts.clear || opts.prune > 0 || opts.optimize {
		return nil
	}

	entries, err := history.Recent(ctx, opts.limit)
	if err != nil {
		return err
	}
	fmt.Fprint(w, formatHistory(entries))
	return nil
}
