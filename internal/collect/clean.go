package collect

import (
	"regexp"
	"strings"
)

// MinFragmentLen is the shortest cleaned fragment that is kept (exclusive)
const MinFragmentLen = 2

var nonAlnumSpace = regexp.MustCompile(`[^A-Za-z0-9 ]`)

// Clean strips every character outside [A-Za-z0-9 ], trims the result and
// reports whether it is long enough to keep.
func Clean(raw string) (string, bool) {
	cleaned := strings.TrimSpace(nonAlnumSpace.ReplaceAllString(strings.TrimSpace(raw), ""))
	if len(cleaned) <= MinFragmentLen {
		return "", false
	}
	return cleaned, true
}
