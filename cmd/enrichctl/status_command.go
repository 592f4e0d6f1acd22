package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var userID, target string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Count a user's records missing artwork or genres",
		RunE: func(cmd *cobra.Command, args []string) error {
			enrichment, err := ctx.enrichment(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			counts, err := enrichment.Status(cmd.Context(), userID, target)
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, counts)
			}

			rows := [][]string{
				{"albums", strconv.Itoa(counts.Albums.Total), strconv.Itoa(counts.Albums.MissingImage), strconv.Itoa(counts.Albums.MissingGenre)},
				{"tracks", strconv.Itoa(counts.Tracks.Total), strconv.Itoa(counts.Tracks.MissingImage), strconv.Itoa(counts.Tracks.MissingGenre)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Target", "Total", "Missing image", "Missing genre"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Owner of the records")
	cmd.Flags().StringVar(&target, "target", "both", "albums, tracks or both")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
