// Package metrics records run statistics in a private Prometheus registry and
// exports them as a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"corpus_dups/internal/aggregate"
)

type Recorder struct {
	registry *prometheus.Registry

	texts       *prometheus.CounterVec
	sentences   *prometheus.CounterVec
	duration    *prometheus.GaugeVec
	corpusRatio *prometheus.GaugeVec
	masterRatio prometheus.Gauge
	masterExact prometheus.Gauge
}

var _ aggregate.Observer = (*Recorder)(nil)

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		texts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corpusdups_texts_total",
			Help: "Texts counted, by corpus.",
		}, []string{"corpus"}),
		sentences: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corpusdups_sentences_total",
			Help: "Sentences read, by corpus.",
		}, []string{"corpus"}),
		duration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corpusdups_corpus_duration_seconds",
			Help: "Wall time spent counting a corpus.",
		}, []string{"corpus"}),
		corpusRatio: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corpusdups_corpus_dup_ratio",
			Help: "Share of a corpus's sentences that occur more than once in that corpus.",
		}, []string{"corpus"}),
		masterRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "corpusdups_master_dup_ratio",
			Help: "Share of all pooled sentences that occur more than once across corpora.",
		}),
		masterExact: factory.NewGauge(prometheus.GaugeOpts{
			Name: "corpusdups_master_exact",
			Help: "1 when every summarized corpus contributed to the master pool.",
		}),
	}
}

func (r *Recorder) TextDone(corpusName string, sentences int) {
	r.texts.WithLabelValues(corpusName).Inc()
	r.sentences.WithLabelValues(corpusName).Add(float64(sentences))
}

func (r *Recorder) CorpusDone(corpusName string, s aggregate.Summary, d time.Duration) {
	r.duration.WithLabelValues(corpusName).Set(d.Seconds())
	r.corpusRatio.WithLabelValues(corpusName).Set(s.AvgDupsPerCorpus)
}

// RunDone records the cross-corpus outcome of a run.
func (r *Recorder) RunDone(res aggregate.RunResult) {
	r.masterRatio.Set(res.Totals.AvgDupsPerCorpus)
	if res.MasterExact {
		r.masterExact.Set(1)
	} else {
		r.masterExact.Set(0)
	}
}

// WriteTextfile atomically writes the current values to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
