// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the arxiv-registry CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-registry/internal/logging"
	"github.com/pdiddy/arxiv-registry/internal/querycache"
	"github.com/pdiddy/arxiv-registry/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds values loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	// logger carries diagnostics to stderr; command output goes to stdout.
	logger = logging.Discard()
)

// rootCmd is the base command for the arxiv-registry CLI.
var rootCmd = &cobra.Command{
	Use:   "arxiv-registry",
	Short: "Local registry of arXiv searches, works and citation keys",
	Long: `arxiv-registry keeps a local SQLite registry of arXiv discovery results.
Searches are cached under a canonical form of the query, every returned work
is stored by its arXiv id, and each work receives a stable citation key the
first time it is exported to BibTeX.

Subcommands: init, search, show, export-bibtex, link, stats, version.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = viper.GetString("log.level")
		}
		l, err := logging.New(os.Stderr, level)
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			logger.Debug("loaded secrets", "names", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./arxiv-registry.yaml or ~/.config/arxiv-registry/arxiv-registry.yaml)")
	rootCmd.PersistentFlags().String("db", "", "registry database file (overrides --project-dir)")
	rootCmd.PersistentFlags().String("project-dir", "", "project directory; the registry lives in <dir>/notes/")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default warn)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("arxiv-registry")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "arxiv-registry"))
		}
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("ARXIV_REGISTRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.ttl", time.Duration(0))
	v.SetDefault("search.max_results", querycache.DefaultMaxResults)
	v.SetDefault("search.sort_by", querycache.DefaultSortBy)
	v.SetDefault("search.sort_order", querycache.DefaultSortOrder)
	v.SetDefault("search.concurrency", 4)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_retries", 5)
	v.SetDefault("bibtex.escape", "latex")
	v.SetDefault("log.level", logging.DefaultLevel)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
