package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"corpus_dups/internal/corpus"
	"corpus_dups/internal/dupcount"
	"corpus_dups/internal/normalize"
	"corpus_dups/internal/pipeline"
)

// topRepeated bounds the repeated sentences logged per corpus.
const topRepeated = 5

type State string

const (
	StateNotStarted State = "not started"
	StateInProgress State = "in progress"
	StateComplete   State = "complete"
	StateCached     State = "cached"
)

// TextRatio is the duplication ratio of a single text.
type TextRatio struct {
	TextID    string
	Ratio     float64
	Sentences int
}

type CorpusResult struct {
	Name       string
	State      State
	Summary    Summary
	TextRatios []TextRatio
	// Pool holds the normalized sentences of the whole corpus. Run releases
	// it once the corpus has been merged into the master pool.
	Pool     dupcount.Tally
	Duration time.Duration
}

// Observer receives progress callbacks. TextDone may be called from several
// goroutines at once.
type Observer interface {
	TextDone(corpusName string, sentences int)
	CorpusDone(corpusName string, s Summary, d time.Duration)
}

// PoolStore persists corpus pools between runs so that cached corpora can
// still contribute to the master ratio.
type PoolStore interface {
	LoadPool(ctx context.Context, corpusName string) (dupcount.Tally, bool, error)
	SavePool(ctx context.Context, corpusName string, pool dupcount.Tally) error
}

// Opener builds the Source for a corpus name. It is only called for corpora
// that are not cached.
type Opener func(name string) (corpus.Source, error)

type Options struct {
	Normalizer normalize.Normalizer
	Workers    int
	Logger     *slog.Logger
	Observer   Observer
}

type Aggregator struct {
	norm     normalize.Normalizer
	workers  int
	log      *slog.Logger
	observer Observer
}

func New(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Aggregator{
		norm:     opts.Normalizer,
		workers:  workers,
		log:      logger,
		observer: opts.Observer,
	}
}

type textResult struct {
	ratio TextRatio
	pool  dupcount.Tally
}

// Corpus reads every text of src, computes per-text ratios and returns the
// completed corpus result with its pooled sentences.
func (a *Aggregator) Corpus(ctx context.Context, name string, src corpus.Source) (CorpusResult, error) {
	started := time.Now()
	res := CorpusResult{Name: name, State: StateInProgress}

	ids, err := src.Texts(ctx)
	if err != nil {
		return res, fmt.Errorf("list texts: %w", err)
	}
	a.log.Info("Counting duplicates", "stage", "CORPUS", "corpus", name, "texts", len(ids))

	step := max(len(ids)/10, 1)
	texts, err := pipeline.Run(ctx, len(ids), a.workers, func(ctx context.Context, i int) (textResult, error) {
		sents, err := src.Sentences(ctx, ids[i])
		if err != nil {
			return textResult{}, fmt.Errorf("text %s: %w", ids[i], err)
		}
		pool := dupcount.Count(a.norm.Keys(sents))
		ratio := TextRatio{TextID: ids[i], Ratio: pool.Ratio(), Sentences: pool.Total()}
		if a.observer != nil {
			a.observer.TextDone(name, ratio.Sentences)
		}
		a.log.Debug("Text counted", "stage", "TEXT", "corpus", name, "text", ids[i], "sentences", ratio.Sentences, "ratio", ratio.Ratio)
		if (i+1)%step == 0 {
			a.log.Info("Progress", "stage", "CORPUS", "corpus", name, "done", i+1, "total", len(ids))
		}
		return textResult{ratio: ratio, pool: pool}, nil
	})
	if err != nil {
		return res, err
	}

	res.Pool = dupcount.Tally{}
	res.TextRatios = make([]TextRatio, 0, len(texts))
	ratios := make([]float64, 0, len(texts))
	for _, t := range texts {
		res.Pool.Merge(t.pool)
		res.TextRatios = append(res.TextRatios, t.ratio)
		ratios = append(ratios, t.ratio.Ratio)
	}
	res.Summary = Summarize(ratios, res.Pool)
	res.State = StateComplete
	if a.log.Enabled(ctx, slog.LevelDebug) {
		if top := res.Pool.Duplicated(); len(top) > 0 {
			a.log.Debug("Most repeated sentences", "stage", "CORPUS", "corpus", name,
				"sentences", top[:min(len(top), topRepeated)])
		}
	}
	res.Duration = time.Since(started)

	if a.observer != nil {
		a.observer.CorpusDone(name, res.Summary, res.Duration)
	}
	a.log.Info("Corpus complete", "stage", "CORPUS", "corpus", name,
		"texts", res.Summary.NumTexts,
		"texts_with_dups", res.Summary.TextsWithDups,
		"sentences", res.Summary.NumSentences,
		"corpus_ratio", res.Summary.AvgDupsPerCorpus,
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

type Plan struct {
	Corpora []string
	Open    Opener
	// Cache holds summaries from earlier runs. It is not modified.
	Cache map[string]Summary
	Pools PoolStore
	// OnCorpus runs after each freshly computed corpus, with the summaries
	// accumulated so far. Returning an error aborts the run.
	OnCorpus func(res CorpusResult, summaries map[string]Summary) error
}

type RunResult struct {
	Corpora   []CorpusResult
	Summaries map[string]Summary
	Totals    Summary
	// MasterExact is false when some summarized corpus did not contribute its
	// sentences to the master pool; Totals' corpus ratio then undercounts
	// cross-corpus duplicates.
	MasterExact     bool
	Missing         []string
	MasterSentences int
}

// Run processes the plan in order, skipping corpora present in the cache,
// and finishes with the Totals entry computed over the master pool.
func (a *Aggregator) Run(ctx context.Context, plan Plan) (RunResult, error) {
	summaries := maps.Clone(plan.Cache)
	if summaries == nil {
		summaries = map[string]Summary{}
	}
	delete(summaries, TotalsKey)

	out := RunResult{Corpora: make([]CorpusResult, 0, len(plan.Corpora))}
	master := dupcount.Tally{}
	pooled := map[string]bool{}

	for _, name := range plan.Corpora {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if s, ok := summaries[name]; ok {
			a.log.Info("Corpus cached, skipping", "stage", "CORPUS", "corpus", name)
			out.Corpora = append(out.Corpora, CorpusResult{Name: name, State: StateCached, Summary: s})
			continue
		}

		src, err := plan.Open(name)
		if err != nil {
			return out, fmt.Errorf("corpus %s: %w", name, err)
		}
		res, err := a.Corpus(ctx, name, src)
		if err != nil {
			return out, fmt.Errorf("corpus %s: %w", name, err)
		}
		summaries[name] = res.Summary
		master.Merge(res.Pool)
		pooled[name] = true

		if plan.Pools != nil {
			if err := plan.Pools.SavePool(ctx, name, res.Pool); err != nil {
				return out, fmt.Errorf("corpus %s: save pool: %w", name, err)
			}
		}
		res.Pool = nil
		out.Corpora = append(out.Corpora, res)

		if plan.OnCorpus != nil {
			if err := plan.OnCorpus(res, maps.Clone(summaries)); err != nil {
				return out, fmt.Errorf("corpus %s: %w", name, err)
			}
		}
	}

	for _, name := range CorpusNames(summaries) {
		if pooled[name] {
			continue
		}
		if plan.Pools != nil {
			pool, ok, err := plan.Pools.LoadPool(ctx, name)
			if err != nil {
				return out, fmt.Errorf("corpus %s: load pool: %w", name, err)
			}
			if ok {
				master.Merge(pool)
				pooled[name] = true
				a.log.Info("Restored pooled sentences", "stage", "TOTALS", "corpus", name, "sentences", pool.Total())
				continue
			}
		}
		out.Missing = append(out.Missing, name)
	}

	out.Totals = Totals(summaries, master)
	summaries[TotalsKey] = out.Totals
	out.Summaries = summaries
	out.MasterExact = len(out.Missing) == 0
	out.MasterSentences = master.Total()

	if !out.MasterExact {
		a.log.Warn("Totals corpus ratio excludes corpora whose sentences were not pooled in this run",
			"stage", "TOTALS", "missing", out.Missing)
	}
	a.log.Info("Totals computed", "stage", "TOTALS",
		"texts", out.Totals.NumTexts,
		"sentences", out.Totals.NumSentences,
		"master_sentences", out.MasterSentences,
		"master_ratio", out.Totals.AvgDupsPerCorpus)
	return out, nil
}
