// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the registry database",
	Long: `Init creates the registry database if it does not exist and applies any
pending schema migrations. Migrations only add tables and columns, so running
init again, or with a newer release, never drops recorded history.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	store, path, err := openRegistry(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	recorded, err := store.SchemaVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registry ready: %s (schema version %s)\n", path, recorded)
	return nil
}
