package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes. Every user-supplied
// string the API stores is plain text rendered by the client.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML and surrounding whitespace. Entities that bluemonday
// escapes are unescaped again so "R&D" round-trips unchanged.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// TextSlice sanitizes each string in a slice, removing all HTML.
func TextSlice(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	sanitized := make([]string, len(inputs))
	for i, input := range inputs {
		sanitized[i] = Text(input)
	}
	return sanitized
}

// CommaList splits a comma-separated field ("Go, SQL ,,React") into
// sanitized, non-empty items.
func CommaList(input string) []string {
	items := []string{}
	for _, part := range strings.Split(input, ",") {
		if item := Text(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}
