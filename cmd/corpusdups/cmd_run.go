package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"corpus_dups/internal/aggregate"
	"corpus_dups/internal/config"
	"corpus_dups/internal/corpus"
	"corpus_dups/internal/db"
	"corpus_dups/internal/metrics"
	"corpus_dups/internal/poolstore"
	"corpus_dups/internal/report"
)

type runOptions struct {
	only     []string
	workers  int
	minWords int
}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	cmd.Flags().StringSliceVar(&o.only, "only", nil, "count only these configured corpora")
	cmd.Flags().IntVar(&o.workers, "workers", 1, "texts counted concurrently (0 uses every CPU)")
	cmd.Flags().IntVar(&o.minWords, "min-words", 3, "drop sentences with fewer words (0 keeps all)")
}

func (a *app) runCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Count duplicated sentences in every configured corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCommand(cmd, o)
		},
	}
	addRunFlags(cmd, &o)
	return cmd
}

func (a *app) runCommand(cmd *cobra.Command, o runOptions) error {
	cfg, err := a.cfg.Select(o.only)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = o.workers
	}
	if cmd.Flags().Changed("min-words") {
		cfg.MinWords = o.minWords
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return a.run(cmd.Context(), cfg)
}

func (a *app) run(ctx context.Context, cfg config.Config) error {
	cache, err := report.LoadCache(cfg.CachePath)
	if err != nil {
		return err
	}

	var pools aggregate.PoolStore
	if cfg.PoolStore.Enabled {
		store, err := poolstore.Open(poolstore.Config{Path: cfg.PoolStore.Path, Logger: a.log})
		if err != nil {
			return err
		}
		defer store.Close()
		pools = store
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	recorder := metrics.NewRecorder()
	agg := aggregate.New(aggregate.Options{
		Normalizer: cfg.Normalizer(),
		Workers:    workers,
		Logger:     a.log,
		Observer:   recorder,
	})

	runID := db.NewRunID()
	started := time.Now()
	a.log.Info("Run started", "stage", "BOOT",
		"run_id", runID,
		"corpora", cfg.Order(),
		"cached", len(cache),
		"min_words", cfg.MinWords,
		"workers", workers)

	res, err := agg.Run(ctx, aggregate.Plan{
		Corpora: cfg.Order(),
		Open: func(name string) (corpus.Source, error) {
			spec, ok := cfg.Spec(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s is not configured", corpus.ErrNotFound, name)
			}
			return corpus.Open(spec, cfg.DataDir)
		},
		Cache: cache,
		Pools: pools,
		OnCorpus: func(res aggregate.CorpusResult, summaries map[string]aggregate.Summary) error {
			if err := report.SaveCache(cfg.CachePath, report.Cache(summaries)); err != nil {
				return err
			}
			a.log.Debug("Cache updated", "stage", "REPORT", "corpus", res.Name, "path", cfg.CachePath)
			return nil
		},
	})
	if err != nil {
		return err
	}
	finished := time.Now()

	out := report.Cache(res.Summaries)
	if err := report.SaveCache(cfg.CachePath, out); err != nil {
		return err
	}
	if err := report.WriteXLSX(cfg.XLSXPath, out, a.cfg.Order()); err != nil {
		return err
	}
	a.log.Info("Reports written", "stage", "REPORT", "cache", cfg.CachePath, "xlsx", cfg.XLSXPath)

	if cfg.History.Enabled {
		if err := db.PersistRun(cfg.History.Path, runID, started, finished, res); err != nil {
			return err
		}
		a.log.Info("Run recorded", "stage", "HISTORY", "run_id", runID, "path", cfg.History.Path)
	}
	if _, err := a.archive.PersistRunSnapshot(runID, "run", res); err != nil {
		a.log.Warn("Run snapshot not written", "stage", "HISTORY", "error", err)
	}
	if cfg.Metrics.Textfile != "" {
		recorder.RunDone(res)
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}

	a.log.Info("Run complete", "stage", "BOOT", "run_id", runID, "duration", finished.Sub(started).Round(time.Millisecond))
	return report.RenderTable(a.out, out, a.cfg.Order())
}
