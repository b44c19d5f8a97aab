package usecases

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"tenantbot/internal/entities"
)

// phraseMatcher matches a phrase as a whole word. Word boundaries are
// checked against Unicode letters and digits, since regexp's \b is ASCII only.
type phraseMatcher struct {
	re *regexp.Regexp
}

func newPhraseMatcher(phrase string, caseSensitive bool) (*phraseMatcher, error) {
	pattern := regexp.QuoteMeta(phrase)
	if !caseSensitive {
		pattern = `(?i)` + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &phraseMatcher{re: re}, nil
}

// replace rewrites every whole-word match and returns how many there were.
func (m *phraseMatcher) replace(text, replacement string) (string, int) {
	var b strings.Builder
	n, last, pos := 0, 0, 0
	for pos < len(text) {
		loc := m.re.FindStringIndex(text[pos:])
		if loc == nil || loc[0] == loc[1] {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if isWordBoundary(text, start) && isWordBoundary(text, end) {
			b.WriteString(text[last:start])
			b.WriteString(replacement)
			last, pos = end, end
			n++
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + size
	}
	if n == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), n
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isWordBoundary reports whether byte offset i sits between a word rune and
// a non-word rune. Text edges count as non-word.
func isWordBoundary(text string, i int) bool {
	var before, after bool
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

// FilterResult is the outcome of one redaction stage.
type FilterResult struct {
	Text    string
	Matches int
	Penalty int
}

func (r FilterResult) Changed() bool { return r.Matches > 0 }

// ApplyBadwords replaces whole-word matches with the fixed marker. The
// penalty is the sum of rule penalty times occurrences.
func ApplyBadwords(text string, rules []entities.BadwordRule) FilterResult {
	res := FilterResult{Text: text}
	for _, rule := range rules {
		if strings.TrimSpace(rule.Phrase) == "" {
			continue
		}
		m, err := newPhraseMatcher(rule.Phrase, rule.CaseSensitive)
		if err != nil {
			continue
		}
		var n int
		res.Text, n = m.replace(res.Text, entities.RedactionMarker)
		res.Matches += n
		res.Penalty += n * rule.Penalty
	}
	return res
}

// ApplyRedactions works like ApplyBadwords with per-rule replacement text.
func ApplyRedactions(text string, rules []entities.RedactionRule) FilterResult {
	res := FilterResult{Text: text}
	for _, rule := range rules {
		if strings.TrimSpace(rule.Original) == "" {
			continue
		}
		m, err := newPhraseMatcher(rule.Original, rule.CaseSensitive)
		if err != nil {
			continue
		}
		var n int
		res.Text, n = m.replace(res.Text, rule.Replacement)
		res.Matches += n
		res.Penalty += n * rule.Penalty
	}
	return res
}

// IsWhitelisted reports whether the whole trimmed text equals a phrase.
func IsWhitelisted(text string, phrases []entities.WhitelistPhrase) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, p := range phrases {
		phrase := strings.TrimSpace(p.Phrase)
		if phrase == "" {
			continue
		}
		if p.CaseSensitive {
			if trimmed == phrase {
				return true
			}
		} else if strings.EqualFold(trimmed, phrase) {
			return true
		}
	}
	return false
}
