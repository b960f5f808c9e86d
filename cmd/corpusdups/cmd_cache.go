package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"corpus_dups/internal/aggregate"
	"corpus_dups/internal/poolstore"
	"corpus_dups/internal/report"
)

func (a *app) showCmd() *cobra.Command {
	var pools bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pools {
				return a.showPools(cmd)
			}
			cache, err := report.LoadCache(a.cfg.CachePath)
			if err != nil {
				return err
			}
			if len(cache) == 0 {
				_, err := fmt.Fprintf(a.out, "No cached results in %s\n", a.cfg.CachePath)
				return err
			}
			return report.RenderTable(a.out, cache, a.cfg.Order())
		},
	}
	cmd.Flags().BoolVar(&pools, "pools", false, "list the corpus pools kept in the pool store")
	return cmd
}

func (a *app) showPools(cmd *cobra.Command) error {
	if !a.cfg.PoolStore.Enabled {
		return errors.New("the pool store is disabled; set pool_store.enabled in config.yaml")
	}
	store, err := poolstore.Open(poolstore.Config{Path: a.cfg.PoolStore.Path, Logger: a.log})
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.Corpora(cmd.Context())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		_, err := fmt.Fprintf(a.out, "No pools stored in %s\n", a.cfg.PoolStore.Path)
		return err
	}
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		pool, _, err := store.LoadPool(cmd.Context(), name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{name, strconv.Itoa(pool.Total()), strconv.Itoa(len(pool))})
	}
	return report.RenderGrid(a.out, []string{"Corpus", "Sentences", "Distinct"}, rows)
}

func (a *app) clearCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [corpus...]",
		Short: "Remove corpora from the cache so the next run counts them again",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case all && len(args) > 0:
				return errors.New("give corpus names or --all, not both")
			case all:
				return a.clearAll()
			case len(args) == 0:
				return errors.New("name at least one corpus, or pass --all")
			default:
				return a.clear(cmd, args)
			}
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete the whole cache file")
	return cmd
}

func (a *app) clearAll() error {
	if err := os.Remove(a.cfg.CachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache: %w", err)
	}
	a.log.Info("Cache removed", "stage", "REPORT", "path", a.cfg.CachePath)
	return nil
}

func (a *app) clear(cmd *cobra.Command, names []string) error {
	cache, err := report.LoadCache(a.cfg.CachePath)
	if err != nil {
		return err
	}
	removed := cache.Remove(names...)
	if len(removed) == 0 {
		a.log.Warn("Nothing to clear", "stage", "REPORT", "corpora", names)
		return nil
	}
	// Totals no longer matches the remaining entries; the next run rebuilds it.
	cache.Remove(aggregate.TotalsKey)
	if err := report.SaveCache(a.cfg.CachePath, cache); err != nil {
		return err
	}

	if a.cfg.PoolStore.Enabled {
		store, err := poolstore.Open(poolstore.Config{Path: a.cfg.PoolStore.Path, Logger: a.log})
		if err != nil {
			return err
		}
		defer store.Close()
		for _, name := range removed {
			if err := store.Delete(cmd.Context(), name); err != nil {
				return err
			}
		}
	}
	a.log.Info("Corpora cleared", "stage", "REPORT", "corpora", removed)
	return nil
}
