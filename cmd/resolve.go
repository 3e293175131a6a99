package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/search"
	"github.com/rubiojr/storefront/pkg/storage"
	"github.com/urfave/cli/v3"
)

// ResolveCommand creates the resolve command
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve free text into the storefront page it points to",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "record",
				Usage: "Record the selection in the search history",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return fmt.Errorf("text to resolve is required")
			}
			return resolveText(ctx, os.Stdout, c.String("config"), text, c.Bool("record"))
		},
	}
}

// resolveText resolves text like a submitted search box and writes the
// target to w.
func resolveText(ctx context.Context, w io.Writer, configPath, text string, record bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	sel := navigate.Selection{Kind: navigate.KindSuggestion, Text: text}
	target, err := newNavigator(cfg).Resolve(ctx, sel)
	if errors.Is(err, search.ErrUnsupportedIntent) {
		fmt.Fprint(w, formatNotice(navigate.NoticeUnsupported))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprint(w, formatTarget(text, target))

	if !record {
		return nil
	}
	history, err := storage.OpenHistoryIn(cfg.StorageDir)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer history.Close()
	return history.Record(ctx, storage.NewEntry(sel, target))
}
