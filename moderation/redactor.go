// Package moderation masks configured sensitive terms in respondent input
// before it reaches the generation provider. The transcript keeps the
// original text; only the provider-bound copy is redacted.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Redactor matches a normalized view of the input against an Aho-Corasick
// automaton and masks the matched spans in the original runes, so spacing
// and punctuation around a match survive redaction.
type Redactor struct {
	matcher     *goahocorasick.Machine
	maskChar    rune
	log         *slog.Logger
	hasPatterns bool
}

// runeMapping links each normalized rune back to its original position.
type runeMapping struct {
	normalized []rune
	origIdx    []int
}

// NewRedactor builds the automaton from a normalized copy of the term list.
// An empty term list yields a pass-through redactor.
func NewRedactor(terms []string, maskChar rune, log *slog.Logger) (*Redactor, error) {
	r := &Redactor{maskChar: maskChar, log: log}
	if len(terms) == 0 {
		return r, nil
	}

	patterns := make([][]rune, len(terms))
	for i, term := range terms {
		patterns[i] = normalizeRunes([]rune(term))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	r.matcher = m
	r.hasPatterns = true
	return r, nil
}

// Redact masks every configured term in the input, tolerating case changes,
// leet substitutions and injected punctuation between letters.
func (r *Redactor) Redact(original string) string {
	if !r.hasPatterns {
		return original
	}

	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original
	}

	spans := r.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			origRunes[i] = r.maskChar
		}
	}
	r.log.Debug("Redacted provider-bound input", "matches", len(spans))
	return string(origRunes)
}

// normalize lowers and simplifies the input while tracking original rune
// positions so matches can be mapped back for masking.
func normalize(input string) runeMapping {
	origRunes := []rune(input)
	mapping := runeMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet substitutions back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
