// Package markup prepares chat message content for display.
package markup

import (
	"strings"
)

// Normalize trims every line, drops blank lines and trims the result.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(content string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
