package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"corpus_dups/internal/aggregate"
)

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StateTotals marks the Totals row of a run in corpus_summaries.
const StateTotals = "totals"

type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	MasterExact   bool
	CachedCorpora []string
	// MasterRatio is the Totals corpus-level ratio, 0 when the run stored no
	// Totals row.
	MasterRatio float64
	Corpora     int
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// PersistRun stores one finished run with its corpus summaries and the
// per-text ratios of every freshly counted corpus.
func PersistRun(dbPath, runID string, startedAt, finishedAt time.Time, res aggregate.RunResult) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	var cached []string
	for _, c := range res.Corpora {
		if c.State == aggregate.StateCached {
			cached = append(cached, c.Name)
		}
	}
	cachedJSON, err := json.Marshal(nonNil(cached))
	if err != nil {
		return fmt.Errorf("marshal cached corpora: %w", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs(id, started_at, finished_at, master_exact, cached_corpora) VALUES(?,?,?,?,?)`,
		runID,
		startedAt.UTC().Format(timeLayout),
		finishedAt.UTC().Format(timeLayout),
		res.MasterExact,
		string(cachedJSON),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	states := map[string]string{}
	for _, c := range res.Corpora {
		states[c.Name] = string(c.State)
	}
	summaryStmt, err := tx.Prepare(`INSERT INTO corpus_summaries(
        run_id, corpus, num_texts, texts_with_dups, max_dups_per_text,
        avg_dups_per_text, num_sentences, avg_dups_per_corpus, state
    ) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare summary insert: %w", err)
	}
	defer summaryStmt.Close()

	for name, s := range res.Summaries {
		state, ok := states[name]
		switch {
		case name == aggregate.TotalsKey:
			state = StateTotals
		case !ok:
			state = string(aggregate.StateCached)
		}
		if _, err := summaryStmt.Exec(runID, name, s.NumTexts, s.TextsWithDups, s.MaxDupsPerText,
			s.AvgDupsPerText, s.NumSentences, s.AvgDupsPerCorpus, state); err != nil {
			return fmt.Errorf("insert summary %s: %w", name, err)
		}
	}

	ratioStmt, err := tx.Prepare(`INSERT INTO text_ratios(run_id, corpus, text_id, ratio, sentences) VALUES(?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare ratio insert: %w", err)
	}
	defer ratioStmt.Close()

	for _, c := range res.Corpora {
		for _, r := range c.TextRatios {
			if _, err := ratioStmt.Exec(runID, c.Name, r.TextID, r.Ratio, r.Sentences); err != nil {
				return fmt.Errorf("insert text ratio %s/%s: %w", c.Name, r.TextID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func ListRuns(dbPath string, limit int) ([]Run, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if limit <= 0 {
		limit = -1
	}
	rows, err := conn.Query(`
        SELECT r.id, r.started_at, r.finished_at, r.master_exact, r.cached_corpora,
               COALESCE(t.avg_dups_per_corpus, 0),
               (SELECT COUNT(*) FROM corpus_summaries c WHERE c.run_id = r.id AND c.state != ?)
        FROM runs r
        LEFT JOIN corpus_summaries t ON t.run_id = r.id AND t.state = ?
        ORDER BY r.started_at DESC
        LIMIT ?`, StateTotals, StateTotals, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
			cachedJSON        string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.MasterExact, &cachedJSON,
			&run.MasterRatio, &run.Corpora); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		if err := json.Unmarshal([]byte(cachedJSON), &run.CachedCorpora); err != nil {
			return nil, fmt.Errorf("decode cached corpora: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// RunSummaries returns the summaries recorded for a run, Totals included.
func RunSummaries(dbPath, runID string) (map[string]aggregate.Summary, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.Query(`
        SELECT corpus, num_texts, texts_with_dups, max_dups_per_text,
               avg_dups_per_text, num_sentences, avg_dups_per_corpus
        FROM corpus_summaries WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	out := map[string]aggregate.Summary{}
	for rows.Next() {
		var (
			name string
			s    aggregate.Summary
		)
		if err := rows.Scan(&name, &s.NumTexts, &s.TextsWithDups, &s.MaxDupsPerText,
			&s.AvgDupsPerText, &s.NumSentences, &s.AvgDupsPerCorpus); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out[name] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, sql.ErrNoRows)
	}
	return out, nil
}

func countRows(dbPath, table string) (int, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	row := conn.QueryRow(`SELECT COUNT(*) FROM ` + table)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan count: %w", err)
	}
	return count, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
