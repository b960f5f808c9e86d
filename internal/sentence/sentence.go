package sentence

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token alternatives, tried in order: digit groups (1.5, 10,000, 3:30),
// dotted initialisms (U.S., p.m., e.g.), words with inner apostrophes, and
// runs of punctuation.
var tokenPattern = regexp.MustCompile(
	`\p{N}+(?:[.,:]\p{N}+)+` +
		`|\p{L}(?:\.\p{L})+\.?` +
		`|[\p{L}\p{M}\p{N}_]+(?:['’][\p{L}\p{M}\p{N}_]+)*` +
		`|[^\p{L}\p{M}\p{N}_\s\p{Z}]+`)

var terminator = regexp.MustCompile(`^[.!?]+["'”’)\]]*$|^[。！？]+$`)
var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// A period after one of these does not end a sentence.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "st": {}, "jr": {}, "sr": {},
	"prof": {}, "gen": {}, "col": {}, "capt": {}, "lt": {}, "rev": {},
	"vs": {}, "etc": {}, "vol": {}, "fig": {}, "mt": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {},
	"aug": {}, "sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// Tokenize splits text into word and punctuation tokens.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Sentences segments plaintext into tokenized sentences. Paragraph breaks
// always close the current sentence.
func Sentences(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out [][]string
	for _, para := range paragraphBreak.Split(text, -1) {
		spans := tokenPattern.FindAllStringIndex(para, -1)
		if len(spans) == 0 {
			continue
		}
		tokens := make([]string, len(spans))
		for i, sp := range spans {
			tokens[i] = para[sp[0]:sp[1]]
		}

		start := 0
		for i := range tokens {
			if !endsSentence(para, tokens, spans, i) {
				continue
			}
			out = append(out, tokens[start:i+1])
			start = i + 1
		}
		if start < len(tokens) {
			out = append(out, tokens[start:])
		}
	}
	return out
}

// endsSentence reports whether token i closes a sentence. ASCII terminators
// only count when followed by whitespace or the end of the paragraph, and a
// period after a known abbreviation never does unless nothing follows it.
func endsSentence(para string, tokens []string, spans [][]int, i int) bool {
	tok := tokens[i]
	if !terminator.MatchString(tok) {
		return false
	}
	if tok[0] != '.' && tok[0] != '!' && tok[0] != '?' {
		return true
	}
	last := i+1 == len(tokens)
	if !last {
		next, _ := utf8.DecodeRuneInString(para[spans[i][1]:])
		if !unicode.IsSpace(next) {
			return false
		}
	}
	if tok == "." && i > 0 && isAbbreviation(tokens[i-1]) && !last {
		return false
	}
	return true
}

func isAbbreviation(tok string) bool {
	_, ok := abbreviations[strings.ToLower(tok)]
	return ok
}
