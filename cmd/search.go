package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rubiojr/storefront/pkg/api"
	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/search"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Query the autocomplete backend and print categorized results",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query (defaults to the positional arguments)",
			},
			&cli.StringFlag{
				Name:  "community",
				Usage: "Community filter (overrides the configured one)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the categorized result as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := c.String("query")
			if query == "" {
				query = strings.Join(c.Args().Slice(), " ")
			}
			return searchQuery(ctx, os.Stdout, c.String("config"), query, c.String("community"), c.Bool("json"))
		},
	}
}

// searchQuery runs a single autocomplete lookup and writes the result to w.
// Like the dropdown, nothing is listed when the primary category is empty.
func searchQuery(ctx context.Context, w io.Writer, configPath, query, community string, asJSON bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	source, err := newSource(cfg)
	if err != nil {
		return err
	}

	q := search.Query{Text: query, Community: cfg.Community}
	if community != "" {
		q.Community = community
	}

	raw, err := source.Autocomplete(ctx, q)
	if err != nil {
		return fmt.Errorf("searching %q: %w", query, err)
	}

	result := categorize.Categorize(raw, api.LimitsOf(cfg))
	if result.Count(api.PrimaryOf(cfg)) == 0 {
		result = categorize.Result{}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprint(w, formatResults(query, result))
	return nil
}
