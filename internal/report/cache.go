package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"corpus_dups/internal/aggregate"
)

// Cache is the persisted mapping from corpus name to summary. A corpus that
// is present is never recomputed.
type Cache map[string]aggregate.Summary

// LoadCache reads the JSON cache at path. A missing file is an empty cache.
func LoadCache(path string) (Cache, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Cache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Cache{}, nil
	}
	var c Cache
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", path, err)
	}
	if c == nil {
		c = Cache{}
	}
	return c, nil
}

// SaveCache writes the cache as 4-space indented JSON with sorted keys,
// replacing the previous file atomically.
func SaveCache(path string, c Cache) error {
	if c == nil {
		c = Cache{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Remove deletes the named entries and reports which ones existed.
func (c Cache) Remove(names ...string) []string {
	var removed []string
	for _, n := range names {
		if _, ok := c[n]; ok {
			delete(c, n)
			removed = append(removed, n)
		}
	}
	return removed
}

func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}
