package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy strips all markup. Policies are safe for concurrent use.
var strictPolicy = bluemonday.StrictPolicy()

// maxDecodePasses bounds decoding of nested entity encodings.
const maxDecodePasses = 8

// SanitizeText removes any HTML from user-supplied free text and trims it.
// Entity-encoded markup, nested or not, is decoded before the policy runs
// so it cannot come back to life afterwards. Entities produced by the
// policy are decoded once more so plain text like "Tom & Jerry" survives;
// templates escape on output.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(decodeEntities(s))))
}

func decodeEntities(s string) string {
	for i := 0; i < maxDecodePasses; i++ {
		decoded := html.UnescapeString(s)
		if decoded == s {
			return s
		}
		s = decoded
	}
	return s
}
