// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-registry/internal/citekey"
	"github.com/pdiddy/arxiv-registry/internal/export"
	"github.com/pdiddy/arxiv-registry/internal/querycache"
)

var exportCmd = &cobra.Command{
	Use:   "export-bibtex [ids...]",
	Short: "Render BibTeX entries and merge them into a .bib file",
	Long: `Export-bibtex assigns a citation key to each work that has none yet,
renders a BibTeX entry from the work's current metadata and appends it to the
--out-bib file. A work already present in the file under the same key is
skipped. A different work under the same key is reported as a conflict and
the file is left untouched.

Without --out-bib the entries are printed to stdout. --search adds every work
of a cached search, in result order; pass the paging and sort flags the
search was run with. Each work is processed independently;
the command fails if any of them failed.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("out-bib", "", "bibliography file to merge entries into")
	exportCmd.Flags().String("search", "", "also export every work of this cached search")
	exportCmd.Flags().String("entry-type", "", "force the entry type: article, inproceedings, misc")
	exportCmd.Flags().String("escape", "", "text escaping: latex or none (default latex)")
	addSearchParamFlags(exportCmd.Flags())

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	outBib, _ := cmd.Flags().GetString("out-bib")
	searchQuery, _ := cmd.Flags().GetString("search")
	if len(args) == 0 && searchQuery == "" {
		return fmt.Errorf("provide one or more arXiv ids or --search")
	}

	cfg, err := exportConfig(cmd, viper.GetViper())
	if err != nil {
		return err
	}
	ids, err := normalizeIDs(args)
	if err != nil {
		return err
	}

	store, _, err := openRegistry(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if searchQuery != "" {
		cache := querycache.New(store, querycache.Options{Logger: logger})
		params := searchParams(searchConfig(cmd, viper.GetViper()))
		rec, err := cache.Lookup(ctx, searchQuery, querycache.LookupOptions{Params: params})
		if err != nil {
			return fmt.Errorf("no cached result for %q (run search first): %w", searchQuery, err)
		}
		ids = append(ids, rec.ItemIDs...)
	}

	exporter := export.New(store, citekey.NewResolver(store, logger), logger)
	var summary export.BatchSummary
	if outBib == "" {
		summary = exporter.RenderBatch(ctx, ids, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	} else {
		summary = exporter.ExportBatch(ctx, ids, outBib, cfg, cmd.OutOrStdout())
	}
	return summary.Err()
}
