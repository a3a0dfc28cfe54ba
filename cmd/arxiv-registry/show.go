// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-registry/internal/bibliography"
	"github.com/pdiddy/arxiv-registry/internal/citekey"
	"github.com/pdiddy/arxiv-registry/internal/discovery"
	"github.com/pdiddy/arxiv-registry/internal/querycache"
	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the stored metadata of a work",
	Long: `Show prints what the registry holds for one work: its metadata, its
citation key if one was assigned, its lifecycle state and any identity links.
Use --fetch-missing to pull the work from arXiv when it is not stored yet, and
--ensure-key to assign its citation key when it has none.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().String("format", "json", "output format: json, yaml or csl")
	showCmd.Flags().Bool("fetch-missing", false, "fetch the work from arXiv if the registry does not hold it")
	showCmd.Flags().Bool("ensure-key", false, "assign a citation key if the work has none")

	rootCmd.AddCommand(showCmd)
}

// itemView is what show prints.
type itemView struct {
	types.Item `yaml:",inline"`

	CitationKey *types.CitationKey   `json:"citation_key,omitempty" yaml:"citation_key,omitempty"`
	State       types.LifecycleState `json:"state" yaml:"state"`
	Links       []string             `json:"links,omitempty" yaml:"links,omitempty"`
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")
	fetchMissing, _ := cmd.Flags().GetBool("fetch-missing")
	ensureKey, _ := cmd.Flags().GetBool("ensure-key")
	switch format {
	case "json", "yaml", "csl":
	default:
		return fmt.Errorf("unknown format %q (want json, yaml or csl)", format)
	}

	ids, err := normalizeIDs(args)
	if err != nil {
		return err
	}
	id := ids[0]

	store, _, err := openRegistry(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	item, err := store.GetItem(ctx, id)
	if errors.Is(err, registry.ErrNotFound) && fetchMissing {
		cfg := searchConfig(cmd, viper.GetViper())
		d := discovery.New(querycache.New(store, querycache.Options{Logger: logger}), store,
			newArxivClient(cfg.HTTPConfig, viper.GetViper(), store), discovery.Config{}, logger)
		if _, err := d.Fetch(ctx, args[0]); err != nil {
			return err
		}
		item, err = store.GetItem(ctx, id)
	}
	if err != nil {
		return err
	}
	if ensureKey {
		if _, err := citekey.NewResolver(store, logger).ResolveKey(ctx, id); err != nil {
			return err
		}
	}

	view, err := describe(ctx, store, item)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "csl":
		key := id
		if view.CitationKey != nil {
			key = view.CitationKey.Key
		}
		return bibliography.WriteCSL(w, []bibliography.CSLItem{bibliography.ToCSL(item, key)})
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
}

func describe(ctx context.Context, store *registry.Store, item types.Item) (itemView, error) {
	view := itemView{Item: item}

	ck, err := store.GetExportedKey(ctx, item.ExternalID)
	switch {
	case err == nil:
		view.CitationKey = &ck
	case !errors.Is(err, registry.ErrNotFound):
		return view, err
	}

	if view.State, err = store.Lifecycle(ctx, item.ExternalID); err != nil {
		return view, err
	}
	if view.Links, err = store.Links(ctx, item.ExternalID); err != nil {
		return view, err
	}
	return view, nil
}
