package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load user albums and tracks from a JSON file",
		Long: `Load user albums and tracks into the record store.

The file holds {"albums": [...], "tracks": [...]}. Records without an id
get one; records with an existing id are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, err := ctx.library(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := library.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d albums and %d tracks\n", result.Albums, result.Tracks)
			return nil
		},
	}
}
