// Package sanitize cleans request-supplied strings before they are
// written to security logs.
package sanitize

import "strings"

// A crafted User-Agent can be arbitrarily long; the ring buffer holds
// thousands of entries, so each field is capped.
const maxLogFieldLen = 512

// LogString flattens CR/LF so a crafted header cannot forge extra log
// lines, then truncates to maxLogFieldLen bytes.
func LogString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
	if len(s) > maxLogFieldLen {
		s = s[:maxLogFieldLen]
	}
	return s
}
