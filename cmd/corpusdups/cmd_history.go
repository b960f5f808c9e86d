package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"corpus_dups/internal/db"
	"corpus_dups/internal/report"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs, or the results of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.History.Enabled {
				return errors.New("run history is disabled (history.enabled is false)")
			}
			if runID != "" {
				summaries, err := db.RunSummaries(a.cfg.History.Path, runID)
				if err != nil {
					return err
				}
				return report.RenderTable(a.out, summaries, a.cfg.Order())
			}
			return a.listRuns(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list (0 lists all)")
	cmd.Flags().StringVar(&runID, "run", "", "print the corpus results recorded for this run id")
	return cmd
}

func (a *app) listRuns(limit int) error {
	runs, err := db.ListRuns(a.cfg.History.Path, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(a.out, "No runs recorded yet")
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		exact := "yes"
		if !r.MasterExact {
			exact = "no"
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strings.TrimSpace(humanize.RelTime(r.StartedAt, r.FinishedAt, "", "")),
			humanize.Comma(int64(r.Corpora)),
			strings.Join(r.CachedCorpora, ", "),
			fmt.Sprintf("%.4f", report.Percent(r.MasterRatio)),
			exact,
		})
	}
	return report.RenderGrid(a.out,
		[]string{"Run", "Started", "Took", "Corpora", "Cached", "Master dups (%)", "Exact"},
		rows)
}
