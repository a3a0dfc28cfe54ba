// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-registry/internal/discovery"
	"github.com/pdiddy/arxiv-registry/internal/querycache"
	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query> | --plan <file>",
	Short: "Search arXiv, answering repeated queries from the registry",
	Long: `Search looks the query up in the registry first. Queries that differ only
in case, spacing or the order of AND-ed clauses share one cache entry, as
long as --max-results, --start, --sort-by and --sort-order also match. On a
miss, or with --force-refresh, arXiv is queried, every returned work is stored
(merging into any earlier metadata) and the result list is recorded.

The query uses arXiv syntax, e.g. 'ti:"world models" AND au:ha'.

With --plan, every query of a YAML plan file runs as one discovery pass with
up to --parallel searches in flight; --save writes a YAML report of the pass.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Bool("force-refresh", false, "ignore the cached result and query arXiv again")
	addSearchParamFlags(searchCmd.Flags())
	searchCmd.Flags().Duration("ttl", 0, "lifetime of a newly recorded result; 0 never expires")
	searchCmd.Flags().Int("print", 10, "number of works to list (0 lists none, -1 lists all)")
	searchCmd.Flags().Bool("json", false, "output the result as JSON")
	searchCmd.Flags().String("plan", "", "YAML file listing the queries of a discovery pass")
	searchCmd.Flags().Int("parallel", 2, "searches in flight during a --plan pass")
	searchCmd.Flags().String("save", "", "write the --plan pass report to this YAML file")

	rootCmd.AddCommand(searchCmd)
}

// searchOutput is the --json shape of a search.
type searchOutput struct {
	discovery.Result
	Items []types.Item `json:"items"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	planPath, _ := cmd.Flags().GetString("plan")
	if planPath == "" && len(args) == 0 {
		return fmt.Errorf("provide a query or --plan")
	}
	if planPath != "" && len(args) > 0 {
		return fmt.Errorf("use either a query or --plan, not both")
	}
	query := strings.Join(args, " ")
	force, _ := cmd.Flags().GetBool("force-refresh")
	limit, _ := cmd.Flags().GetInt("print")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := searchConfig(cmd, viper.GetViper())
	params := searchParams(cfg)
	if err := params.Validate(); err != nil {
		return err
	}

	store, _, err := openRegistry(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	cache := querycache.New(store, querycache.Options{TTL: cfg.TTL, Logger: logger})
	d := discovery.New(cache, store, newArxivClient(cfg.HTTPConfig, viper.GetViper(), store),
		discovery.Config{Params: params, Concurrency: cfg.Concurrency}, logger)

	if planPath != "" {
		return runPlan(cmd, d, planPath)
	}

	res, err := d.Search(ctx, query, force)
	if err != nil {
		return err
	}

	ids := res.Record.ItemIDs
	if limit >= 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	items := make([]types.Item, 0, len(ids))
	for _, id := range ids {
		item, err := store.GetItem(ctx, id)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(searchOutput{Result: res, Items: items})
	}
	return printSearch(ctx, cmd.OutOrStdout(), store, res, items)
}

func runPlan(cmd *cobra.Command, d *discovery.Discoverer, path string) error {
	plan, err := discovery.ReadPlan(path)
	if err != nil {
		return err
	}
	parallel, _ := cmd.Flags().GetInt("parallel")
	report := d.RunPlan(cmd.Context(), plan, parallel, cmd.OutOrStdout())

	if savePath, _ := cmd.Flags().GetString("save"); savePath != "" {
		if err := discovery.WriteReport(savePath, report); err != nil {
			return err
		}
	}
	return report.Err()
}

func printSearch(ctx context.Context, w io.Writer, store *registry.Store, res discovery.Result, items []types.Item) error {
	rec := res.Record
	source := "cached"
	if res.Fetched {
		source = "fetched from arXiv"
	}
	fmt.Fprintf(w, "Query: %s\n", rec.CanonicalQuery)
	fmt.Fprintf(w, "%d work(s), %s, recorded %s", len(rec.ItemIDs), source, rec.CreatedAt.Local().Format(time.DateTime))
	if rec.TTL > 0 {
		fmt.Fprintf(w, ", expires %s", rec.CreatedAt.Add(rec.TTL).Local().Format(time.DateTime))
	}
	fmt.Fprintln(w)

	if len(items) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-18s  %-22s  %-4s  %s\n", "ID", "Key", "Year", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, item := range items {
		key := "-"
		ck, err := store.GetExportedKey(ctx, item.ExternalID)
		switch {
		case err == nil:
			key = ck.Key
		case !errors.Is(err, registry.ErrNotFound):
			return err
		}
		year := "-"
		if item.Metadata.Year != nil {
			year = fmt.Sprint(*item.Metadata.Year)
		}
		fmt.Fprintf(w, "%-18s  %-22s  %-4s  %s\n", item.ExternalID, key, year, truncate(types.Deref(item.Metadata.Title), 60))
	}
	if n := len(rec.ItemIDs) - len(items); n > 0 {
		fmt.Fprintf(w, "... %d more (use --print -1 to list all)\n", n)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
