package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/enrich"
	"github.com/listenupapp/enrichd/internal/service"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var req service.RunRequest
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich a user's records now",
		Long: `Fill missing artwork and genres for a user's records, consulting the
shared cache first and the configured sources after it. Progress is
printed to stderr as each item finishes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			enrichment, err := ctx.enrichment(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var sinks service.SinkFactory
			if !quiet {
				sinks = func(kind domain.Kind) enrich.ProgressSink {
					return &progressPrinter{out: cmd.ErrOrStderr(), kind: kind}
				}
			}

			summaries, err := enrichment.Run(cmd.Context(), req, sinks)
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, summaries)
			}
			printSummaries(cmd.OutOrStdout(), summaries)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.UserID, "user", "", "Owner of the records")
	f.StringVar(&req.Kind, "kind", "both", "image, genre or both")
	f.StringVar(&req.Target, "target", "both", "albums, tracks or both")
	f.StringSliceVar(&req.IDs, "id", nil, "Restrict the run to these record ids")
	f.IntVar(&req.Concurrency, "concurrency", 0, "Items processed at once (default from config)")
	f.BoolVar(&req.Force, "force", false, "Bypass the cache lookup and refresh cached values")
	f.BoolVarP(&quiet, "quiet", "q", false, "Do not print per-item progress")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// progressPrinter writes one line per finished item.
type progressPrinter struct {
	out  io.Writer
	kind domain.Kind
}

func (p *progressPrinter) Start(total int) {
	fmt.Fprintf(p.out, "%s: %d items\n", p.kind, total)
}

func (p *progressPrinter) Progress(pr domain.Progress) {
	line := fmt.Sprintf("  [%d/%d] %s: %s", pr.Current, pr.Total, pr.Label, pr.Outcome.Status)
	switch {
	case pr.Outcome.Error != "":
		line += " (" + pr.Outcome.Error + ")"
	case pr.Outcome.Source != "":
		line += " via " + pr.Outcome.Source
	}
	fmt.Fprintln(p.out, line)
}

func (p *progressPrinter) Complete(*domain.BatchSummary) {}
func (p *progressPrinter) Close() {}

func printSummaries(out io.Writer, summaries []*domain.BatchSummary) {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			string(s.Kind),
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Succeeded),
			strconv.Itoa(s.CacheHits),
			strconv.Itoa(s.NotFound),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Cascaded),
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Kind", "Total", "Succeeded", "Cache hits", "Not found", "Failed", "Skipped", "Cascaded", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}
