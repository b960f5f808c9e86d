package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

var (
	ErrNotFound    = errors.New("corpus data not found")
	ErrUnknownKind = errors.New("unknown corpus kind")
	ErrUnknownText = errors.New("unknown text id")
)

// Source enumerates the texts of one corpus and yields the tokenized
// sentences of each text.
type Source interface {
	Texts(ctx context.Context) ([]string, error)
	Sentences(ctx context.Context, textID string) ([][]string, error)
}

type Kind string

const (
	KindPlaintext Kind = "plaintext"
	KindTagged    Kind = "tagged"
	KindLines     Kind = "lines"
	KindBNC       Kind = "bnc"
	KindCHILDES   Kind = "childes"
	KindDocuments Kind = "documents"
)

var defaultFileIDs = map[Kind]string{
	KindPlaintext: `.*\.txt`,
	KindTagged:    `c[a-z]\d{2}`,
	KindLines:     `.*\.txt`,
	KindBNC:       `[A-K]/\w*/\w*\.xml`,
	KindCHILDES:   `.*.xml`,
	KindDocuments: `.*`,
}

// Spec selects and configures a Source.
type Spec struct {
	Name     string   `yaml:"name" validate:"required"`
	Kind     Kind     `yaml:"kind" validate:"required,oneof=plaintext tagged lines bnc childes documents"`
	Root     string   `yaml:"root,omitempty"`
	FileIDs  string   `yaml:"fileids,omitempty"`
	Speakers []string `yaml:"speakers,omitempty"`
}

// Open resolves the corpus root against dataDir and builds the Source for
// spec.Kind. A missing root yields ErrNotFound.
func Open(spec Spec, dataDir string) (Source, error) {
	root := ResolveRoot(spec, dataDir)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s at %s", ErrNotFound, spec.Name, root)
	}

	pattern := spec.FileIDs
	if strings.TrimSpace(pattern) == "" {
		pattern = defaultFileIDs[spec.Kind]
	}
	files, err := newFileSet(root, pattern)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", spec.Name, err)
	}

	switch spec.Kind {
	case KindPlaintext:
		return &plaintextSource{files: files}, nil
	case KindTagged:
		return &taggedSource{files: files}, nil
	case KindLines:
		return &linesSource{files: files}, nil
	case KindBNC:
		return &bncSource{files: files}, nil
	case KindCHILDES:
		return &childesSource{files: files, speakers: speakerSet(spec.Speakers)}, nil
	case KindDocuments:
		return &documentSource{files: files}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}

// ResolveRoot mirrors the nltk_data layout: an empty root means
// <dataDir>/corpora/<name>, a relative root is joined to dataDir.
func ResolveRoot(spec Spec, dataDir string) string {
	root := strings.TrimSpace(spec.Root)
	if root == "" {
		return filepath.Join(dataDir, "corpora", spec.Name)
	}
	if filepath.IsAbs(root) {
		return filepath.Clean(root)
	}
	return filepath.Join(dataDir, root)
}

type fileSet struct {
	root    string
	pattern *regexp.Regexp
}

func newFileSet(root, pattern string) (fileSet, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return fileSet{}, fmt.Errorf("compile fileids %q: %w", pattern, err)
	}
	return fileSet{root: root, pattern: re}, nil
}

// list walks the root and returns the matching ids, relative and slash
// separated, in lexical order.
func (f fileSet) list(ctx context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if f.pattern.MatchString(rel) {
			ids = append(ids, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.root, err)
	}
	slices.Sort(ids)
	return ids, nil
}

func (f fileSet) path(id string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnknownText, id)
	}
	if !f.pattern.MatchString(filepath.ToSlash(clean)) {
		return "", fmt.Errorf("%w: %s", ErrUnknownText, id)
	}
	return filepath.Join(f.root, clean), nil
}

func (f fileSet) read(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.path(id)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return raw, nil
}

func speakerSet(speakers []string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, s := range speakers {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || s == "ALL" {
			return nil
		}
		out[s] = struct{}{}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Static is an in-memory Source keyed by text id.
type Static map[string][][]string

func (s Static) Texts(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s Static) Sentences(_ context.Context, textID string) ([][]string, error) {
	sents, ok := s[textID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownText, textID)
	}
	return sents, nil
}
