// Package sanitize normalises user-supplied text before it is stored or parsed.
package sanitize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"github.com/and161185/grocerly/internal/errs"
)

var strict = bluemonday.StrictPolicy()

// Text strips all markup and returns NFC-normalised text with HTML entities
// left escaped by the policy decoded back and runs of spaces collapsed per line.
func Text(s string) string {
	s = strict.Sanitize(s)
	s = unescape(s)
	s = norm.NFC.String(s)

	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.Join(strings.Fields(ln), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Name cleans a single-line name and enforces 1..limit runes.
func Name(field, s string, limit int) (string, error) {
	s = strings.ReplaceAll(Text(s), "\n", " ")
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return "", fmt.Errorf("%w: empty %s", errs.ErrValidation, field)
	}
	if n > limit {
		return "", fmt.Errorf("%w: %s too long (%d > %d)", errs.ErrValidation, field, n, limit)
	}
	return s, nil
}

// Optional cleans an optional field; an empty result maps to nil.
func Optional(field string, s *string, limit int) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.ReplaceAll(Text(*s), "\n", " ")
	if v == "" {
		return nil, nil
	}
	if n := utf8.RuneCountInString(v); n > limit {
		return nil, fmt.Errorf("%w: %s too long (%d > %d)", errs.ErrValidation, field, n, limit)
	}
	return &v, nil
}

var entities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#34;", `"`,
	"&#39;", "'",
	"&quot;", `"`,
	"&nbsp;", " ",
)

func unescape(s string) string { return entities.Replace(s) }
