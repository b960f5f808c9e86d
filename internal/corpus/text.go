package corpus

import (
	"bufio"
	"bytes"
	"context"
	"strings"

	"corpus_dups/internal/ingest"
	"corpus_dups/internal/sentence"
)

type plaintextSource struct{ files fileSet }

func (s *plaintextSource) Texts(ctx context.Context) ([]string, error) {
	return s.files.list(ctx)
}

func (s *plaintextSource) Sentences(ctx context.Context, id string) ([][]string, error) {
	raw, err := s.files.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return sentence.Sentences(string(raw)), nil
}

// taggedSource reads Brown-style files: one sentence per line, tokens written
// as word/TAG.
type taggedSource struct{ files fileSet }

func (s *taggedSource) Texts(ctx context.Context) ([]string, error) {
	return s.files.list(ctx)
}

func (s *taggedSource) Sentences(ctx context.Context, id string) ([][]string, error) {
	raw, err := s.files.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return eachLine(raw, func(fields []string) []string {
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			out = append(out, stripTag(f))
		}
		return out
	})
}

type linesSource struct{ files fileSet }

func (s *linesSource) Texts(ctx context.Context) ([]string, error) {
	return s.files.list(ctx)
}

func (s *linesSource) Sentences(ctx context.Context, id string) ([][]string, error) {
	raw, err := s.files.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return eachLine(raw, func(fields []string) []string { return fields })
}

type documentSource struct{ files fileSet }

func (s *documentSource) Texts(ctx context.Context) ([]string, error) {
	ids, err := s.files.list(ctx)
	if err != nil {
		return nil, err
	}
	out := ids[:0]
	for _, id := range ids {
		if ingest.Supported(id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *documentSource) Sentences(ctx context.Context, id string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.files.path(id)
	if err != nil {
		return nil, err
	}
	doc, err := ingest.ParseFile(s.files.root, path)
	if err != nil {
		return nil, err
	}
	return sentence.Sentences(doc.Text), nil
}

func eachLine(raw []byte, tokens func(fields []string) []string) ([][]string, error) {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var out [][]string
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		out = append(out, tokens(fields))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func stripTag(tok string) string {
	i := strings.LastIndex(tok, "/")
	if i <= 0 {
		return tok
	}
	return tok[:i]
}
