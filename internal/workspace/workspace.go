package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const BaseDirName = "CorpusDups"

const (
	ConfigFile  = "corpusdups.yaml"
	CacheFile   = "corpus_counts.json"
	XLSXFile    = "corpus_counts.xlsx"
	HistoryFile = "history.db"
	MetricsFile = "corpusdups.prom"
)

func EnsureDefault() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return EnsureAt(filepath.Join(home, BaseDirName))
}

func EnsureAt(base string) (string, error) {
	paths := []string{
		filepath.Join(base, "configs"),
		filepath.Join(base, "logs", "runs"),
		filepath.Join(base, "metrics"),
		filepath.Join(base, "pools"),
	}

	for _, p := range paths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", p, err)
		}
	}
	return base, nil
}

func ConfigPath(root string) string  { return filepath.Join(root, "configs", ConfigFile) }
func CachePath(root string) string   { return filepath.Join(root, CacheFile) }
func XLSXPath(root string) string    { return filepath.Join(root, XLSXFile) }
func HistoryPath(root string) string { return filepath.Join(root, HistoryFile) }
func PoolDir(root string) string     { return filepath.Join(root, "pools") }
func MetricsPath(root string) string { return filepath.Join(root, "metrics", MetricsFile) }

// DataDir is the default corpus data directory, laid out like nltk_data.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "nltk_data"
	}
	return filepath.Join(home, "nltk_data")
}
