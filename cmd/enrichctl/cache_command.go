package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/listenupapp/enrichd/internal/domain"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the shared metadata cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheSearchCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache totals and the most hit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.cache(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			stats, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Records:    %d\n", stats.Total)
			fmt.Fprintf(out, "With image: %d\n", stats.WithImage)
			fmt.Fprintf(out, "With genre: %d\n", stats.WithGenre)
			fmt.Fprintf(out, "With both:  %d\n", stats.WithBoth)
			fmt.Fprintf(out, "Total hits: %d\n", stats.TotalHits)
			if len(stats.Top) == 0 {
				return nil
			}
			fmt.Fprintln(out, "Most hit:")
			printRecords(out, stats.Top)
			return nil
		},
	}
}

func newCacheSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find cached records by name or artist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.cache(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			records, err := cache.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cached records match")
				return nil
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stale, rarely hit cache records",
		Long: `Delete cache records created more than --days ago that were hit fewer
than ` + strconv.Itoa(domain.PruneMinHits) + ` times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.cache(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			deleted, err := cache.Prune(cmd.Context(), days)
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, map[string]int{"deleted": deleted})
			}
			if deleted == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cache records pruned")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d cache records\n", deleted)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Age threshold in days (default 90)")
	return cmd
}

func printRecords(out io.Writer, records []domain.CacheRecord) {
	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		lastHit := "never"
		if !r.LastHitAt.IsZero() {
			lastHit = r.LastHitAt.Local().Format(stampLayout)
		}
		rows = append(rows, []string{
			r.DisplayName,
			r.DisplayArtist,
			r.YearKey,
			mark(r.ImageURL != "", r.ImageSource),
			mark(r.GenreTags != "", r.GenreSource),
			strconv.Itoa(r.HitCount),
			lastHit,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Name", "Artist", "Year", "Image", "Genres", "Hits", "Last hit"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func mark(ok bool, source string) string {
	if !ok {
		return "-"
	}
	if source == "" {
		return "yes"
	}
	return source
}
