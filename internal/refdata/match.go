package refdata

import (
	"regexp"
	"strings"
)

type Intent string

const IntentKitContents Intent = "kit_contents"

// intentPatterns is matched against lower-cased input.
var intentPatterns = map[Intent][]*regexp.Regexp{
	IntentKitContents: {
		regexp.MustCompile(`what(?:'| i)?s.*(in|inside|included).*kit`),
		regexp.MustCompile(`kit contents`),
		regexp.MustCompile(`what.*do i get`),
		regexp.MustCompile(`what.*included`),
	},
}

func Matches(intent Intent, text string) bool {
	s := strings.ToLower(text)
	for _, re := range intentPatterns[intent] {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func IsKitQuestion(text string) bool {
	return Matches(IntentKitContents, text)
}

const (
	maxExcerpts     = 3
	maxExcerptRunes = 400
)

var nonWord = regexp.MustCompile(`\W+`)

// FindRelevantExcerpts returns up to three section texts, in document order,
// that contain at least min(2, tokens) of the query's distinct tokens.
func FindRelevantExcerpts(query string, book *Book) []string {
	if book == nil || len(book.Sections) == 0 {
		return nil
	}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	need := 2
	if len(tokens) < need {
		need = len(tokens)
	}

	var out []string
	for _, sec := range book.Sections {
		hay := strings.ToLower(sec.Title + " " + sec.Text)
		hits := 0
		for _, t := range tokens {
			if strings.Contains(hay, t) {
				hits++
			}
		}
		if hits < need {
			continue
		}
		out = append(out, truncateRunes(sec.Text, maxExcerptRunes))
		if len(out) >= maxExcerpts {
			break
		}
	}
	return out
}

func tokenize(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range nonWord.Split(strings.ToLower(s), -1) {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
