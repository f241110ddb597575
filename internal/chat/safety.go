package chat

import (
	"regexp"
	"strings"
)

const redacted = "[removed]"

// personalData lists what is stripped from visitor text before it leaves the
// process. Matches are redacted and the request continues.
var personalData = map[string]*regexp.Regexp{
	"email":    regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`),
	"phone":    regexp.MustCompile(`(?:\+\d{1,3}[\s\-]?|\b0)(?:\d[\s\-()]?){8,11}\d`),
	"postcode": regexp.MustCompile(`(?i)\b[a-z]{1,2}\d[a-z\d]?\s*\d[a-z]{2}\b`),
}

// redactionOrder keeps redaction deterministic; email runs before phone so
// digits inside an address are not split.
var redactionOrder = []string{"email", "phone", "postcode"}

// Redact replaces personal data in s and reports which kinds were found.
func Redact(s string) (string, []string) {
	var found []string
	for _, kind := range redactionOrder {
		re := personalData[kind]
		if re.MatchString(s) {
			found = append(found, kind)
			s = re.ReplaceAllString(s, redacted)
		}
	}
	return s, found
}

var linkPattern = regexp.MustCompile(`https?://[^\s)\]>"']+`)

const linkRemoved = "[link removed]"

// PostProcess cleans a model reply: em dashes become commas and, when an
// allow-list is set, links outside it are removed.
func PostProcess(reply string, allowedLinks []string) string {
	reply = strings.ReplaceAll(reply, " — ", ", ")
	reply = strings.ReplaceAll(reply, "—", ", ")
	if len(allowedLinks) == 0 {
		return reply
	}
	return linkPattern.ReplaceAllStringFunc(reply, func(link string) string {
		for _, prefix := range allowedLinks {
			if strings.HasPrefix(link, prefix) {
				return link
			}
		}
		return linkRemoved
	})
}
