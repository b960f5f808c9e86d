package aggregate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpus_dups/internal/corpus"
	"corpus_dups/internal/dupcount"
	"corpus_dups/internal/normalize"
)

func toks(sentences ...string) [][]string {
	out := make([][]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, strings.Fields(s))
	}
	return out
}

func opener(sources map[string]corpus.Source) Opener {
	return func(name string) (corpus.Source, error) {
		src, ok := sources[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", corpus.ErrNotFound, name)
		}
		return src, nil
	}
}

func TestCorpusSingleTextScenario(t *testing.T) {
	agg := New(Options{Normalizer: normalize.New(2, normalize.FormNone)})
	src := corpus.Static{
		"t1": toks("The Cat Sat.", "the cat sat", "A dog ran."),
	}

	res, err := agg.Corpus(context.Background(), "tiny", src)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	require.Len(t, res.TextRatios, 1)
	assert.InDelta(t, 2.0/3.0, res.TextRatios[0].Ratio, 1e-12)
	assert.Equal(t, Summary{
		NumTexts:         1,
		TextsWithDups:    1,
		MaxDupsPerText:   res.TextRatios[0].Ratio,
		AvgDupsPerText:   res.TextRatios[0].Ratio,
		NumSentences:     3,
		AvgDupsPerCorpus: res.TextRatios[0].Ratio,
	}, res.Summary)
}

func TestCorpusLogsMostRepeatedSentences(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	agg := New(Options{Normalizer: normalize.New(0, normalize.FormNone), Logger: logger})
	src := corpus.Static{
		"t1": toks("a dog ran", "the cat sat", "a dog ran", "a dog ran"),
		"t2": toks("the cat sat", "birds sing"),
	}

	_, err := agg.Corpus(context.Background(), "tiny", src)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "Most repeated sentences")
	assert.Contains(t, out, "corpus=tiny")
	line := out[strings.Index(out, "Most repeated sentences"):]
	line = line[:strings.IndexByte(line, '\n')]
	assert.Less(t, strings.Index(line, "a dog ran"), strings.Index(line, "the cat sat"))
	assert.NotContains(t, line, "birds sing")
}

func TestCorpusSkipsRepeatedListWithoutDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	agg := New(Options{Normalizer: normalize.New(0, normalize.FormNone), Logger: logger})

	_, err := agg.Corpus(context.Background(), "tiny", corpus.Static{"t1": toks("x y", "x y")})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Most repeated sentences")
}

func TestCorpusLevelRatioUsesPooledSentences(t *testing.T) {
	agg := New(Options{Normalizer: normalize.New(0, normalize.FormNone)})
	src := corpus.Static{
		"a": toks("shared sentence here", "only in a"),
		"b": toks("shared sentence here", "only in b", "only in b"),
		"c": toks("unique one", "unique two"),
	}

	res, err := agg.Corpus(context.Background(), "c1", src)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Summary.NumTexts)
	assert.Equal(t, 1, res.Summary.TextsWithDups, "only text b repeats within itself")
	assert.InDelta(t, 2.0/3.0, res.Summary.MaxDupsPerText, 1e-12)
	assert.InDelta(t, 2.0/3.0, res.Summary.AvgDupsPerText, 1e-12)
	assert.Equal(t, 7, res.Summary.NumSentences)
	assert.InDelta(t, 4.0/7.0, res.Summary.AvgDupsPerCorpus, 1e-12)
}

func TestCorpusWordCountFilterAppliesToPool(t *testing.T) {
	agg := New(Options{Normalizer: normalize.New(3, normalize.FormNone)})
	src := corpus.Static{
		"t": toks("too short", "too short", "long enough sentence"),
	}
	res, err := agg.Corpus(context.Background(), "f", src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.NumSentences)
	assert.Equal(t, 0.0, res.Summary.AvgDupsPerCorpus)
	assert.Equal(t, 0, res.Summary.TextsWithDups)
}

func TestCorpusWithoutDuplicationDefaultsToZero(t *testing.T) {
	agg := New(Options{})
	res, err := agg.Corpus(context.Background(), "empty", corpus.Static{})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, res.Summary)
}

func TestCorpusWorkersGiveSameResult(t *testing.T) {
	src := corpus.Static{}
	for i := range 40 {
		src[fmt.Sprintf("t%02d", i)] = toks(
			fmt.Sprintf("sentence number %d", i%7),
			fmt.Sprintf("sentence number %d", i%3),
			"the same everywhere",
		)
	}
	seq, err := New(Options{Workers: 1}).Corpus(context.Background(), "c", src)
	require.NoError(t, err)
	par, err := New(Options{Workers: 8}).Corpus(context.Background(), "c", src)
	require.NoError(t, err)

	assert.Equal(t, seq.Summary, par.Summary)
	assert.Equal(t, seq.TextRatios, par.TextRatios)
}

type failingSource struct{ corpus.Static }

func (failingSource) Sentences(context.Context, string) ([][]string, error) {
	return nil, errors.New("disk on fire")
}

func TestCorpusPropagatesReadErrors(t *testing.T) {
	agg := New(Options{})
	_, err := agg.Corpus(context.Background(), "bad", failingSource{corpus.Static{"x": nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestRunSkipsCachedCorpus(t *testing.T) {
	cached := Summary{
		NumTexts:         500,
		TextsWithDups:    123,
		MaxDupsPerText:   0.1234567890123,
		AvgDupsPerText:   0.0314159265358979,
		NumSentences:     57340,
		AvgDupsPerCorpus: 0.02718281828,
	}
	agg := New(Options{Normalizer: normalize.New(0, normalize.FormNone)})
	res, err := agg.Run(context.Background(), Plan{
		Corpora: []string{"brown", "webtext"},
		Open:    opener(map[string]corpus.Source{"webtext": corpus.Static{"w": toks("hi there")}}),
		Cache:   map[string]Summary{"brown": cached},
	})
	require.NoError(t, err)

	require.Len(t, res.Corpora, 2)
	assert.Equal(t, StateCached, res.Corpora[0].State)
	assert.Equal(t, cached, res.Summaries["brown"], "cached summary must be reused untouched")
	assert.Equal(t, StateComplete, res.Corpora[1].State)

	assert.False(t, res.MasterExact)
	assert.Equal(t, []string{"brown"}, res.Missing)
	assert.Equal(t, cached.NumTexts+1, res.Totals.NumTexts)
	assert.Equal(t, res.Totals, res.Summaries[TotalsKey])
}

func TestRunPoolsAcrossCorpora(t *testing.T) {
	agg := New(Options{Normalizer: normalize.New(3, normalize.FormNone)})
	res, err := agg.Run(context.Background(), Plan{
		Corpora: []string{"first", "second"},
		Open: opener(map[string]corpus.Source{
			"first":  corpus.Static{"a": toks("hello world test", "something else entirely")},
			"second": corpus.Static{"b": toks("hello world test", "yet another line")},
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Summaries["first"].AvgDupsPerCorpus)
	assert.Equal(t, 0.0, res.Summaries["second"].AvgDupsPerCorpus)
	assert.True(t, res.MasterExact)
	assert.Equal(t, 4, res.MasterSentences)
	assert.InDelta(t, 0.5, res.Totals.AvgDupsPerCorpus, 1e-12)
	assert.Equal(t, 4, res.Totals.NumSentences)
}

func TestRunIgnoresStaleTotals(t *testing.T) {
	agg := New(Options{})
	res, err := agg.Run(context.Background(), Plan{
		Corpora: []string{"a"},
		Open:    opener(map[string]corpus.Source{"a": corpus.Static{"t": toks("x y z", "x y z")}}),
		Cache:   map[string]Summary{TotalsKey: {NumTexts: 999}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Totals.NumTexts)
	assert.Equal(t, 1.0, res.Totals.AvgDupsPerCorpus)
}

func TestRunMissingCorpusIsFatal(t *testing.T) {
	agg := New(Options{})
	_, err := agg.Run(context.Background(), Plan{
		Corpora: []string{"bnc"},
		Open:    opener(nil),
	})
	require.ErrorIs(t, err, corpus.ErrNotFound)
	assert.Contains(t, err.Error(), "corpus bnc")
}

func TestRunCallsOnCorpusIncrementally(t *testing.T) {
	agg := New(Options{})
	var seen []int
	_, err := agg.Run(context.Background(), Plan{
		Corpora: []string{"a", "b"},
		Open: opener(map[string]corpus.Source{
			"a": corpus.Static{"t": toks("one")},
			"b": corpus.Static{"t": toks("two")},
		}),
		OnCorpus: func(res CorpusResult, summaries map[string]Summary) error {
			assert.Nil(t, res.Pool)
			seen = append(seen, len(summaries))
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

type memPools struct {
	mu    sync.Mutex
	pools map[string]dupcount.Tally
}

func (m *memPools) LoadPool(_ context.Context, name string) (dupcount.Tally, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[name]
	return maps.Clone(p), ok, nil
}

func (m *memPools) SavePool(_ context.Context, name string, pool dupcount.Tally) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[name] = maps.Clone(pool)
	return nil
}

func TestRunRestoresCachedPools(t *testing.T) {
	store := &memPools{pools: map[string]dupcount.Tally{}}
	sources := map[string]corpus.Source{
		"first":  corpus.Static{"a": toks("hello world test", "something else entirely")},
		"second": corpus.Static{"b": toks("hello world test", "yet another line")},
	}
	agg := New(Options{})

	firstRun, err := agg.Run(context.Background(), Plan{Corpora: []string{"first"}, Open: opener(sources), Pools: store})
	require.NoError(t, err)

	second, err := agg.Run(context.Background(), Plan{
		Corpora: []string{"first", "second"},
		Open:    opener(sources),
		Cache:   firstRun.Summaries,
		Pools:   store,
	})
	require.NoError(t, err)
	assert.True(t, second.MasterExact)
	assert.Empty(t, second.Missing)
	assert.InDelta(t, 0.5, second.Totals.AvgDupsPerCorpus, 1e-12)
}

func TestTotals(t *testing.T) {
	summaries := map[string]Summary{
		"a":       {NumTexts: 2, TextsWithDups: 1, MaxDupsPerText: 0.5, AvgDupsPerText: 0.5, NumSentences: 10},
		"b":       {NumTexts: 3, TextsWithDups: 2, MaxDupsPerText: 0.25, AvgDupsPerText: 0.2, NumSentences: 5},
		TotalsKey: {NumTexts: 1000},
	}
	got := Totals(summaries, dupcount.Count([]string{"x", "x", "y"}))
	assert.Equal(t, 5, got.NumTexts)
	assert.Equal(t, 3, got.TextsWithDups)
	assert.Equal(t, 15, got.NumSentences)
	assert.Equal(t, 0.5, got.MaxDupsPerText)
	assert.InDelta(t, 0.35, got.AvgDupsPerText, 1e-12)
	assert.InDelta(t, 2.0/3.0, got.AvgDupsPerCorpus, 1e-12)
}

func TestRatiosStayInUnitInterval(t *testing.T) {
	agg := New(Options{})
	res, err := agg.Corpus(context.Background(), "r", corpus.Static{
		"a": toks("x", "x", "x"),
		"b": toks("y", "z"),
		"c": nil,
	})
	require.NoError(t, err)
	for _, tr := range res.TextRatios {
		assert.False(t, math.IsNaN(tr.Ratio))
		assert.GreaterOrEqual(t, tr.Ratio, 0.0)
		assert.LessOrEqual(t, tr.Ratio, 1.0)
	}
	assert.Equal(t, 1.0, res.Summary.MaxDupsPerText)
}

type countingObserver struct {
	mu      sync.Mutex
	texts   int
	corpora int
}

func (c *countingObserver) TextDone(string, int) {
	c.mu.Lock()
	c.texts++
	c.mu.Unlock()
}

func (c *countingObserver) CorpusDone(string, Summary, time.Duration) {
	c.mu.Lock()
	c.corpora++
	c.mu.Unlock()
}

func TestObserverIsNotified(t *testing.T) {
	obs := &countingObserver{}
	agg := New(Options{Workers: 4, Observer: obs})
	_, err := agg.Corpus(context.Background(), "o", corpus.Static{"a": nil, "b": nil, "c": nil})
	require.NoError(t, err)
	assert.Equal(t, 3, obs.texts)
	assert.Equal(t, 1, obs.corpora)
}
