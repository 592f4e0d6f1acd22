package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
)

// execute runs enrichctl with args and shuts down whatever the command
// opened, whether or not it succeeded.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd, cc := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, cc.close())
}

func newRootCommand() (*cobra.Command, *commandContext) {
	var flags globalFlags

	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "enrichctl",
		Short:         "Run enrichment and manage the shared metadata cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.dataPath, "data-path", "", "Directory for database files")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Path to .env file")
	pf.StringVar(&flags.cacheBackend, "cache-backend", "", "Cache backend: sqlite or badger")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flags.json, "json", false, "Print results as JSON")

	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))

	return rootCmd, ctx
}
