package aggregate

import (
	"maps"
	"slices"

	"corpus_dups/internal/dupcount"
)

// TotalsKey is the cache entry holding the cross-corpus aggregate.
const TotalsKey = "Totals"

// Summary is the persisted per-corpus record. The JSON names are the column
// headers of the report and must not change.
type Summary struct {
	NumTexts         int     `json:"Number of Texts"`
	TextsWithDups    int     `json:"Texts with dups"`
	MaxDupsPerText   float64 `json:"Max dups per text"`
	AvgDupsPerText   float64 `json:"Avg dups per text"`
	NumSentences     int     `json:"Number of sentences"`
	AvgDupsPerCorpus float64 `json:"Avg dups per corpus"`
}

// Summarize builds a corpus summary from the per-text ratios and the pooled
// sentences of the corpus. Max and mean are taken over the texts that have
// any duplication and fall back to 0 when there are none.
func Summarize(ratios []float64, pool dupcount.Tally) Summary {
	withDups := make([]float64, 0, len(ratios))
	for _, r := range ratios {
		if r > 0 {
			withDups = append(withDups, r)
		}
	}
	return Summary{
		NumTexts:         len(ratios),
		TextsWithDups:    len(withDups),
		MaxDupsPerText:   maxOrZero(withDups),
		AvgDupsPerText:   meanOrZero(withDups),
		NumSentences:     pool.Total(),
		AvgDupsPerCorpus: pool.Ratio(),
	}
}

// Totals combines every corpus summary except an existing Totals entry.
// Counts are summed, the max ratio is the largest corpus max, the per-text
// average is the mean of corpus averages, and the corpus-level ratio is
// recomputed over the master pool.
func Totals(summaries map[string]Summary, master dupcount.Tally) Summary {
	names := CorpusNames(summaries)
	maxes := make([]float64, 0, len(names))
	avgs := make([]float64, 0, len(names))
	var out Summary
	for _, name := range names {
		s := summaries[name]
		out.NumTexts += s.NumTexts
		out.TextsWithDups += s.TextsWithDups
		out.NumSentences += s.NumSentences
		maxes = append(maxes, s.MaxDupsPerText)
		avgs = append(avgs, s.AvgDupsPerText)
	}
	out.MaxDupsPerText = maxOrZero(maxes)
	out.AvgDupsPerText = meanOrZero(avgs)
	out.AvgDupsPerCorpus = master.Ratio()
	return out
}

// CorpusNames returns the sorted names of all entries other than Totals.
func CorpusNames(summaries map[string]Summary) []string {
	names := slices.Collect(maps.Keys(summaries))
	names = slices.DeleteFunc(names, func(n string) bool { return n == TotalsKey })
	slices.Sort(names)
	return names
}

func maxOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Max(values)
}

func meanOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
