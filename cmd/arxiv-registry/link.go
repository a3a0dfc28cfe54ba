// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link <id> <other-id>",
	Short: "Record that two stored works are the same publication",
	Long: `Link records an explicit identity link between two stored works, for
example a preprint and its later re-submission. Both works keep their own
metadata and citation keys; the link is shown by the show command.`,
	Args: cobra.ExactArgs(2),
	RunE: runLink,
}

func init() {
	linkCmd.Flags().String("note", "", "free-text reason for the link")

	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	ids, err := normalizeIDs(args)
	if err != nil {
		return err
	}
	note, _ := cmd.Flags().GetString("note")

	store, _, err := openRegistry(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.LinkIdentities(cmd.Context(), ids[0], ids[1], note); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Linked %s <-> %s\n", ids[0], ids[1])
	return nil
}
