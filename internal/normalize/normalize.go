package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

type UnicodeForm string

const (
	FormNone UnicodeForm = "none"
	FormNFC  UnicodeForm = "nfc"
	FormNFKC UnicodeForm = "nfkc"
)

// Punctuation is the ASCII punctuation set plus the full-width comma and the
// ideographic full stop.
const Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" + "，。"

var punctSet = func() map[rune]struct{} {
	out := make(map[rune]struct{}, len(Punctuation))
	for _, r := range Punctuation {
		out[r] = struct{}{}
	}
	return out
}()

// Normalizer turns a token sequence into the canonical key used for
// duplicate counting. A zero MinWords keeps every sentence.
type Normalizer struct {
	MinWords int
	Form     UnicodeForm
}

func New(minWords int, form UnicodeForm) Normalizer {
	if minWords < 0 {
		minWords = 0
	}
	if form == "" {
		form = FormNone
	}
	return Normalizer{MinWords: minWords, Form: form}
}

func ParseForm(raw string) (UnicodeForm, error) {
	switch UnicodeForm(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormNone:
		return FormNone, nil
	case FormNFC:
		return FormNFC, nil
	case FormNFKC:
		return FormNFKC, nil
	default:
		return "", fmt.Errorf("unknown unicode form %q", raw)
	}
}

// Key returns the normalized sentence key, or ok=false when the sentence has
// fewer than MinWords words after normalization.
func (n Normalizer) Key(tokens []string) (key string, ok bool) {
	key = n.Apply(strings.Join(tokens, " "))
	if n.MinWords > 0 && WordCount(key) < n.MinWords {
		return "", false
	}
	return key, true
}

// Keys normalizes every sentence and drops the filtered ones.
func (n Normalizer) Keys(sentences [][]string) []string {
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if key, ok := n.Key(s); ok {
			out = append(out, key)
		}
	}
	return out
}

func (n Normalizer) Apply(s string) string {
	switch n.Form {
	case FormNFC:
		s = norm.NFC.String(s)
	case FormNFKC:
		s = norm.NFKC.String(s)
	}
	s = strings.Map(dropPunct, s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func WordCount(key string) int {
	return len(strings.Fields(key))
}

func dropPunct(r rune) rune {
	if _, ok := punctSet[r]; ok {
		return -1
	}
	return r
}
