// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts of the registry",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "output counts as JSON")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	store, path, err := openRegistry(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "Registry:      %s\n", path)
	fmt.Fprintf(w, "Works:         %d\n", st.Items)
	fmt.Fprintf(w, "Searches:      %d (%d runs)\n", st.Searches, st.SearchRuns)
	fmt.Fprintf(w, "Keys:          %d\n", st.Keys)
	fmt.Fprintf(w, "Exported keys: %d\n", st.Exported)
	fmt.Fprintf(w, "Fetches:       %d\n", st.Fetches)
	return nil
}
