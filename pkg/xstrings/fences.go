package xstrings

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z0-9_+-]*[ \t]*$\n?")

// StripCodeFences removes markdown code fence lines (```go, ```) that LLMs
// tend to wrap code in, and trims surrounding whitespace.
func StripCodeFences(s string) string {
	s = fenceRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
