// Package sanitize cleans scraped free text before it is served.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags and decodes entities. Tags are stripped again
// after decoding to catch encoded markup.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, " ")
	result = html.UnescapeString(result)
	result = htmlTagRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// Text strips markup and collapses whitespace runs, including non-breaking
// spaces, into single spaces.
func Text(s string) string {
	return strings.Join(strings.FieldsFunc(StripHTML(s), unicode.IsSpace), " ")
}

// TextSlice sanitizes each element and drops the ones that end up empty.
func TextSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := Text(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
