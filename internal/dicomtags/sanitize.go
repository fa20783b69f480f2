package dicomtags

import (
	"strings"
)

// sanitize strips NUL bytes and collapses every run of characters outside
// [A-Za-z0-9.-] into a single underscore. Used for every path component
// derived from DICOM tag values.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
			inRun = false
		} else if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}
	return b.String()
}
