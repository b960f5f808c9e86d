package report

import (
	"math"
	"slices"

	"corpus_dups/internal/aggregate"
)

var Columns = []string{
	"Number of Texts",
	"Texts with dups",
	"Max dups per text",
	"Avg dups per text",
	"Number of sentences",
	"Avg dups per corpus",
	"Avg dups per text (%)",
	"Avg dups per corpus (%)",
}

type Row struct {
	Corpus  string
	Summary aggregate.Summary
}

// PercentPerText and PercentPerCorpus are the derived percentage columns.
func (r Row) PercentPerText() float64   { return Percent(r.Summary.AvgDupsPerText) }
func (r Row) PercentPerCorpus() float64 { return Percent(r.Summary.AvgDupsPerCorpus) }

// Percent converts a ratio to a percentage rounded to 4 decimals.
func Percent(ratio float64) float64 {
	return math.Round(ratio*100*1e4) / 1e4
}

// Rows orders the cache for display: corpora in the given order first, then
// any other cached corpora alphabetically, then Totals.
func Rows(c Cache, order []string) []Row {
	seen := map[string]bool{aggregate.TotalsKey: true}
	rows := make([]Row, 0, len(c))
	for _, name := range order {
		if s, ok := c[name]; ok && !seen[name] {
			rows = append(rows, Row{Corpus: name, Summary: s})
			seen[name] = true
		}
	}
	rest := make([]string, 0)
	for name := range c {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	for _, name := range rest {
		rows = append(rows, Row{Corpus: name, Summary: c[name]})
	}
	if s, ok := c[aggregate.TotalsKey]; ok {
		rows = append(rows, Row{Corpus: aggregate.TotalsKey, Summary: s})
	}
	return rows
}
