package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// newTextSanitizer strips every tag. Text is stored as plain text, not HTML.
func newTextSanitizer() *bluemonday.Policy {
	return bluemonday.StrictPolicy()
}

// sanitizeText drops markup and undoes the entity escaping bluemonday applies to the remaining text,
// so apostrophes, ampersands and angle brackets are persisted as typed.
func sanitizeText(policy *bluemonday.Policy, raw string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(strings.TrimSpace(raw))))
}
