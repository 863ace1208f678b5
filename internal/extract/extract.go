// Package extract pulls structured fields out of free-form model output.
// Model completions are expected to contain XML-like tags, but never reliably:
// every function here degrades to a documented default instead of failing, so
// a malformed response downgrades the answer rather than aborting the query.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/openrounds/rounds/pkg/models"
)

// DefaultApproach is returned when a response states no analytical approach.
const DefaultApproach = "general health data analysis"

// DefaultConfidence is assumed when a specialist reports no confidence value.
const DefaultConfidence = 0.75

// Tag returns the inner content of the first <name>...</name> pair in text.
// The match is case-insensitive and tolerates attributes on the opening tag.
// The second return value reports whether the tag was found.
func Tag(text, name string) (string, bool) {
	re := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(name) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(name) + `>`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// TagOr returns the tag's content, or fallback if the tag is absent or empty.
func TagOr(text, name, fallback string) string {
	if content, ok := Tag(text, name); ok && content != "" {
		return content
	}
	return fallback
}

// AllTags returns the inner content of every <name>...</name> pair, in order.
func AllTags(text, name string) []string {
	re := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(name) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(name) + `>`)
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// Complexity extracts a <complexity> classification from text. A missing or
// unrecognized value yields fallback; the orchestrator passes standard, the
// trace extractor passes simple.
func Complexity(text string, fallback models.QueryComplexity) models.QueryComplexity {
	content, ok := Tag(text, "complexity")
	if !ok {
		return fallback
	}
	// Models sometimes pad the tag with prose; take the first recognized word.
	for _, word := range strings.Fields(content) {
		if c, valid := models.ParseComplexity(strings.Trim(word, ".,;:")); valid {
			return c
		}
	}
	return fallback
}

// Approach extracts the <approach> statement, defaulting to DefaultApproach.
func Approach(text string) string {
	return TagOr(text, "approach", DefaultApproach)
}

// Confidence extracts a confidence score from the <confidence> tag: the first
// float token found inside, clamped to [0,1]. Values written as percentages
// (e.g. "85%") are scaled down. Missing tags yield DefaultConfidence.
func Confidence(text string) float64 {
	content, ok := Tag(text, "confidence")
	if !ok {
		return DefaultConfidence
	}

	for _, tok := range strings.Fields(content) {
		trimmed := strings.Trim(tok, ".,;:()")
		percent := strings.HasSuffix(trimmed, "%")
		trimmed = strings.TrimSuffix(trimmed, "%")
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			continue
		}
		if percent || v > 1 {
			v /= 100
		}
		return clamp01(v)
	}
	return DefaultConfidence
}

// List extracts an ordered list from a tag whose content is one item per line
// or dash-prefixed bullets. Empty lines are dropped.
func List(text, name string) []string {
	content, ok := Tag(text, name)
	if !ok {
		return nil
	}
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = trimOrdinal(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// trimOrdinal strips a leading "1." / "2)" style ordinal from a list item.
func trimOrdinal(line string) string {
	re := regexp.MustCompile(`^\d+[.)]\s+`)
	return re.ReplaceAllString(line, "")
}

// FirstJSONObject returns the first balanced top-level JSON object found in
// text, tolerating leading and trailing prose. Returns false if no balanced
// object exists. String contents are scanned with escape awareness so braces
// inside values do not break the balance count.
func FirstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
