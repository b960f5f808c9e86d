package corpus

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// bncSource reads British National Corpus XML. Every <s> element is one
// sentence made of its <w> (word) and <c> (punctuation) children.
type bncSource struct{ files fileSet }

func (s *bncSource) Texts(ctx context.Context) ([]string, error) {
	return s.files.list(ctx)
}

func (s *bncSource) Sentences(ctx context.Context, id string) ([][]string, error) {
	raw, err := s.files.read(ctx, id)
	if err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false

	var (
		out     [][]string
		current []string
		inSent  bool
		tokenEl int
		buf     strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "s":
				inSent = true
				current = nil
			case "w", "c":
				if inSent {
					tokenEl++
					buf.Reset()
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "w", "c":
				if inSent && tokenEl > 0 {
					tokenEl--
					if word := strings.TrimSpace(buf.String()); word != "" {
						current = append(current, word)
					}
					buf.Reset()
				}
			case "s":
				if len(current) > 0 {
					out = append(out, current)
				}
				inSent = false
				current = nil
			}
		case xml.CharData:
			if inSent && tokenEl > 0 {
				buf.Write(t)
			}
		}
	}
	return out, nil
}

// childesSource reads CHILDES TalkBank XML. Each <u> utterance is one
// sentence. Every <w> in it, nested ones inside <replacement> included,
// contributes the text that precedes its first child element.
type childesSource struct {
	files    fileSet
	speakers map[string]struct{}
}

func (s *childesSource) Texts(ctx context.Context) ([]string, error) {
	return s.files.list(ctx)
}

func (s *childesSource) Sentences(ctx context.Context, id string) ([][]string, error) {
	raw, err := s.files.read(ctx, id)
	if err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false

	var (
		out         [][]string
		current     []string
		inUtterance bool
		keep        bool
		open        []int
		collecting  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			collecting = false
			switch t.Name.Local {
			case "u":
				inUtterance = true
				keep = s.wantSpeaker(attr(t, "who"))
				current = nil
				open = open[:0]
			case "w":
				if inUtterance {
					current = append(current, "")
					open = append(open, len(current)-1)
					collecting = true
				}
			}
		case xml.EndElement:
			collecting = false
			switch t.Name.Local {
			case "w":
				if len(open) > 0 {
					open = open[:len(open)-1]
				}
			case "u":
				if keep {
					if words := trimWords(current); len(words) > 0 {
						out = append(out, words)
					}
				}
				inUtterance = false
				current = nil
			}
		case xml.CharData:
			if collecting && len(open) > 0 {
				current[open[len(open)-1]] += string(t)
			}
		}
	}
	return out, nil
}

func trimWords(words []string) []string {
	out := words[:0]
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func (s *childesSource) wantSpeaker(who string) bool {
	if s.speakers == nil {
		return true
	}
	_, ok := s.speakers[strings.ToUpper(who)]
	return ok
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
