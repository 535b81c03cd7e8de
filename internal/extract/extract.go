// Package extract turns free text into grocery item candidates.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Candidate is one item found in text.
type Candidate struct {
	Name     string
	Category *string
	Original string // the trimmed source line
	Quantity string // leading amount and unit, e.g. "2 lb"; empty if none
}

const (
	minName        = 2
	maxName        = 100
	maxHeaderCaps  = 15
	maxHeaderWords = 3
)

var (
	markers = []*regexp.Regexp{
		regexp.MustCompile(`^\d+[.)]\s*`),
		regexp.MustCompile(`^[-*•]\s*`),
		regexp.MustCompile(`^\[\s*\]\s*`),
		regexp.MustCompile(`^\(\s*\)\s*`),
	}
	// \b keeps "2 grapes" from losing its first letter to the "g" unit.
	quantity = regexp.MustCompile(`(?i)^\d+\s*(?:lbs|lb|oz|kg|g|bags?|cans?|bottles?|boxes?|packs?)?\b\s*`)

	headerWords = []string{"grocery", "list", "shopping", "store", "items", "total", "date"}
	voiceSep    = regexp.MustCompile(`[,;]`)
)

type category struct {
	name     string
	keywords []string
}

// Order matters: the first matching category wins.
var categories = []category{
	{"produce", []string{"apple", "banana", "orange", "lettuce", "tomato", "potato", "onion", "carrot", "broccoli", "spinach"}},
	{"dairy", []string{"milk", "cheese", "yogurt", "butter", "cream", "eggs"}},
	{"meat", []string{"chicken", "beef", "pork", "fish", "turkey", "lamb", "bacon", "sausage"}},
	{"bakery", []string{"bread", "bagel", "muffin", "croissant", "buns", "rolls"}},
	{"pantry", []string{"rice", "pasta", "flour", "sugar", "salt", "pepper", "oil", "sauce", "cereal"}},
	{"beverages", []string{"coffee", "tea", "juice", "soda", "water", "beer", "wine"}},
	{"snacks", []string{"chips", "crackers", "cookies", "candy", "nuts", "popcorn"}},
	{"frozen", []string{"ice cream", "frozen pizza", "frozen vegetables", "frozen fruit"}},
	{"cleaning", []string{"soap", "detergent", "bleach", "sponge", "paper towels", "toilet paper"}},
}

// Items extracts at most one candidate per non-blank line.
func Items(text string) []Candidate {
	out := []Candidate{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, qty, ok := clean(line)
		if !ok {
			continue
		}
		out = append(out, Candidate{Name: name, Category: Category(name), Original: line, Quantity: qty})
	}
	return out
}

// Voice splits a transcription like "apples, milk and cheese".
func Voice(text string) []Candidate {
	out := []Candidate{}
	text = strings.ReplaceAll(text, " and ", ", ")
	for _, part := range voiceSep.Split(text, -1) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) < minName {
			continue
		}
		out = append(out, Candidate{Name: part, Category: Category(part), Original: part})
	}
	return out
}

// Category returns the first category with a keyword contained in name.
func Category(name string) *string {
	lower := strings.ToLower(name)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				n := c.name
				return &n
			}
		}
	}
	return nil
}

func clean(line string) (name, qty string, ok bool) {
	for _, re := range markers {
		line = re.ReplaceAllString(line, "")
	}
	if loc := quantity.FindStringIndex(line); loc != nil {
		qty = strings.TrimSpace(line[:loc[1]])
		line = line[loc[1]:]
	}
	line = strings.TrimSpace(line)

	n := utf8.RuneCountInString(line)
	if n < minName || n > maxName {
		return "", "", false
	}
	if n > maxHeaderCaps && allCaps(line) {
		return "", "", false
	}
	if len(strings.Fields(line)) <= maxHeaderWords {
		lower := strings.ToLower(line)
		for _, kw := range headerWords {
			if strings.Contains(lower, kw) {
				return "", "", false
			}
		}
	}
	return line, qty, true
}

// allCaps reports whether s has cased letters and none are lower case.
func allCaps(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
