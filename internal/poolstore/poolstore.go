// Package poolstore keeps the pooled sentences of each corpus in BadgerDB so
// that corpora skipped as cached can still join the cross-corpus master pool.
//
// Layout:
//
//	meta\x00<corpus>             -> total occurrences (uvarint)
//	pool\x00<corpus>\x00<key>    -> occurrences of key (uvarint)
package poolstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"corpus_dups/internal/dupcount"
)

const sep = "\x00"

type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// Logger receives BadgerDB's own log output. Nil disables it.
	Logger *slog.Logger
}

type Store struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "stage", "POOL")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "stage", "POOL")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "stage", "POOL")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "stage", "POOL")
}

func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("pool store path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create pool store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open pool store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func metaKey(corpusName string) []byte {
	return []byte("meta" + sep + corpusName)
}

func poolPrefix(corpusName string) []byte {
	return []byte("pool" + sep + corpusName + sep)
}

// SavePool replaces the stored pool of a corpus.
func (s *Store) SavePool(ctx context.Context, corpusName string, pool dupcount.Tally) error {
	if err := s.Delete(ctx, corpusName); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	prefix := poolPrefix(corpusName)
	for key, n := range pool {
		if err := ctx.Err(); err != nil {
			return err
		}
		k := append(slices.Clip(prefix), key...)
		if err := wb.Set(k, binary.AppendUvarint(nil, uint64(n))); err != nil {
			return fmt.Errorf("stage pool entry: %w", err)
		}
	}
	if err := wb.Set(metaKey(corpusName), binary.AppendUvarint(nil, uint64(pool.Total()))); err != nil {
		return fmt.Errorf("stage pool meta: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush pool %s: %w", corpusName, err)
	}
	return nil
}

// LoadPool returns the stored pool of a corpus and whether one was saved.
func (s *Store) LoadPool(ctx context.Context, corpusName string) (dupcount.Tally, bool, error) {
	pool := dupcount.Tally{}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(corpusName)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true

		prefix := poolPrefix(corpusName)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(bytes.TrimPrefix(item.Key(), prefix))
			err := item.Value(func(v []byte) error {
				n, size := binary.Uvarint(v)
				if size <= 0 {
					return fmt.Errorf("corrupt count for %q", key)
				}
				pool[key] = int(n)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("load pool %s: %w", corpusName, err)
	}
	if !found {
		return nil, false, nil
	}
	return pool, true, nil
}

// Delete removes the stored pool of a corpus, if any.
func (s *Store) Delete(ctx context.Context, corpusName string) error {
	keys := [][]byte{metaKey(corpusName)}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: poolPrefix(corpusName)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan pool %s: %w", corpusName, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("stage pool delete: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("delete pool %s: %w", corpusName, err)
	}
	return nil
}

// Corpora lists the corpora that have a stored pool.
func (s *Store) Corpora(ctx context.Context) ([]string, error) {
	var names []string
	prefix := []byte("meta" + sep)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			names = append(names, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	return names, nil
}
