package dicomtags

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ageMultipliers maps a DICOM Age String (AS) suffix to the number of
// days it represents. Order matters only for readability; lookup is by
// key.
var ageMultipliers = map[byte]float64{
	'D': 1,
	'W': 7,
	'M': 30.44,
	'Y': 365.24,
}

// parsePatientAge parses a DICOM AS-VR value such as "030Y", "020D",
// "2W" or "5M" into a day count. It returns an error if the suffix is
// unrecognized or the numeric prefix does not parse, in which case the
// caller should record a BadTag and leave the field null rather than
// reject the instance.
func parsePatientAge(raw string) (int32, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty patient age")
	}
	suffix := s[len(s)-1]
	mult, ok := ageMultipliers[suffix]
	if !ok {
		return 0, fmt.Errorf("unrecognized age suffix %q in %q", suffix, raw)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 32)
	if err != nil {
		return 0, fmt.Errorf("parse age prefix %q: %w", s[:len(s)-1], err)
	}
	return int32(math.Round(n * mult)), nil
}
