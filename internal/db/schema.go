package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    master_exact INTEGER NOT NULL,
    cached_corpora TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS corpus_summaries (
    run_id TEXT NOT NULL REFERENCES runs(id),
    corpus TEXT NOT NULL,
    num_texts INTEGER NOT NULL,
    texts_with_dups INTEGER NOT NULL,
    max_dups_per_text REAL NOT NULL,
    avg_dups_per_text REAL NOT NULL,
    num_sentences INTEGER NOT NULL,
    avg_dups_per_corpus REAL NOT NULL,
    state TEXT NOT NULL,
    PRIMARY KEY (run_id, corpus)
);

CREATE TABLE IF NOT EXISTS text_ratios (
    run_id TEXT NOT NULL REFERENCES runs(id),
    corpus TEXT NOT NULL,
    text_id TEXT NOT NULL,
    ratio REAL NOT NULL,
    sentences INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_text_ratios_run ON text_ratios(run_id, corpus);
`

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(SchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
