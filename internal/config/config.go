// Package config loads the YAML run configuration, applies environment
// overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"corpus_dups/internal/aggregate"
	"corpus_dups/internal/corpus"
	"corpus_dups/internal/normalize"
	"corpus_dups/internal/workspace"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	DataDir     string        `yaml:"data_dir" validate:"required"`
	CachePath   string        `yaml:"cache_path" validate:"required"`
	XLSXPath    string        `yaml:"xlsx_path" validate:"required"`
	MinWords    int           `yaml:"min_words" validate:"gte=0"`
	UnicodeForm string        `yaml:"unicode_form" validate:"omitempty,oneof=none nfc nfkc"`
	Workers     int           `yaml:"workers" validate:"gte=0"`
	LogLevel    string        `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Corpora     []corpus.Spec `yaml:"corpora" validate:"required,min=1,dive"`
	PoolStore   PoolStore     `yaml:"pool_store"`
	Metrics     Metrics       `yaml:"metrics"`
	History     History       `yaml:"history"`
}

// PoolStore keeps corpus pools in BadgerDB so cached corpora still count
// toward the cross-corpus ratio.
type PoolStore struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

type Metrics struct {
	// Textfile is the Prometheus textfile written after a run. Empty
	// disables it.
	Textfile string `yaml:"textfile"`
}

type History struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// DefaultCorpora is the corpus list counted when none is configured.
func DefaultCorpora() []corpus.Spec {
	return []corpus.Spec{
		{Name: "brown", Kind: corpus.KindTagged},
		{Name: "gutenberg", Kind: corpus.KindPlaintext},
		{Name: "movie_reviews", Kind: corpus.KindLines},
		{Name: "webtext", Kind: corpus.KindPlaintext},
		{Name: "inaugural", Kind: corpus.KindPlaintext},
		{Name: "state_union", Kind: corpus.KindPlaintext},
		{Name: "bnc", Kind: corpus.KindBNC, Root: "corpora/bnc/download/Texts/"},
		{Name: "childes", Kind: corpus.KindCHILDES, Root: "corpora/CHILDES/data-xml/Eng-NA-xml/"},
	}
}

func Default(workspaceRoot string) Config {
	return Config{
		DataDir:     workspace.DataDir(),
		CachePath:   workspace.CachePath(workspaceRoot),
		XLSXPath:    workspace.XLSXPath(workspaceRoot),
		MinWords:    3,
		UnicodeForm: string(normalize.FormNone),
		Workers:     1,
		LogLevel:    "info",
		Corpora:     DefaultCorpora(),
		PoolStore: PoolStore{
			Enabled: false,
			Path:    workspace.PoolDir(workspaceRoot),
		},
		Metrics: Metrics{Textfile: workspace.MetricsPath(workspaceRoot)},
		History: History{Enabled: true, Path: workspace.HistoryPath(workspaceRoot)},
	}
}

// Load reads the config at path, creating it with defaults on first run, then
// applies environment overrides and validates it.
func Load(path, workspaceRoot string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path, workspaceRoot); err != nil {
			return Config{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, workspaceRoot)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, so omitted keys keep their default
// values.
func Parse(data []byte, workspaceRoot string) (Config, error) {
	cfg := Default(workspaceRoot)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func createDefault(path, workspaceRoot string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default(workspaceRoot))
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from CORPUSDUPS_* variables.
func ApplyEnv(cfg *Config) {
	cfg.DataDir = getenv("CORPUSDUPS_DATA_DIR", cfg.DataDir)
	cfg.MinWords = getenvInt("CORPUSDUPS_MIN_WORDS", cfg.MinWords)
	cfg.Workers = getenvInt("CORPUSDUPS_WORKERS", cfg.Workers)
	cfg.LogLevel = getenv("CORPUSDUPS_LOG_LEVEL", cfg.LogLevel)
	cfg.PoolStore.Enabled = getenvBool("CORPUSDUPS_POOL_STORE", cfg.PoolStore.Enabled)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[string]bool, len(c.Corpora))
	for _, spec := range c.Corpora {
		if spec.Name == aggregate.TotalsKey {
			return fmt.Errorf("%w: corpus name %q is reserved", ErrInvalid, aggregate.TotalsKey)
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: duplicate corpus %q", ErrInvalid, spec.Name)
		}
		seen[spec.Name] = true
	}
	if _, err := normalize.ParseForm(c.UnicodeForm); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Normalizer builds the sentence normalizer described by the config.
func (c Config) Normalizer() normalize.Normalizer {
	form, err := normalize.ParseForm(c.UnicodeForm)
	if err != nil {
		form = normalize.FormNone
	}
	return normalize.New(c.MinWords, form)
}

// Order returns the configured corpus names in order.
func (c Config) Order() []string {
	names := make([]string, 0, len(c.Corpora))
	for _, spec := range c.Corpora {
		names = append(names, spec.Name)
	}
	return names
}

// Select narrows the corpus list to names, keeping configured order.
func (c Config) Select(names []string) (Config, error) {
	if len(names) == 0 {
		return c, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var picked []corpus.Spec
	for _, spec := range c.Corpora {
		if want[spec.Name] {
			picked = append(picked, spec)
			delete(want, spec.Name)
		}
	}
	for n := range want {
		return Config{}, fmt.Errorf("%w: corpus %q is not configured", ErrInvalid, n)
	}
	c.Corpora = picked
	return c, nil
}

// Spec returns the configured corpus called name.
func (c Config) Spec(name string) (corpus.Spec, bool) {
	for _, spec := range c.Corpora {
		if spec.Name == name {
			return spec, true
		}
	}
	return corpus.Spec{}, false
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getenv(key, ""))
	if err != nil {
		return def
	}
	return v
}

// WorkspaceRoot returns CORPUSDUPS_WORKSPACE, or "" when unset.
func WorkspaceRoot() string {
	return getenv("CORPUSDUPS_WORKSPACE", "")
}
