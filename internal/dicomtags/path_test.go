package dicomtags

import (
	"strings"
	"testing"
)

func TestSanitizeCollapsesRunsOfDisallowedCharacters(t *testing.T) {
	cases := map[string]string{
		"a  b":       "a_b",
		"a.-b":       "a.-b",
		"a***b":      "a_b",
		"a\x00\x00b": "ab",
		"":           "",
	}
	for in, want := range cases {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPathPlaceholdersMissingSeriesAndInstanceNumber(t *testing.T) {
	path := BuildPath(
		"ChRIS",
		"PAT001", "", "",
		"", "", "20240115",
		OptionalNumber{Present: false}, "", "1.2.3.4.2",
		OptionalNumber{Present: false}, "1.2.3.4.3",
	)
	if !strings.Contains(path, "/SeriesNumber-") {
		t.Fatalf("expected a literal SeriesNumber placeholder segment, got %q", path)
	}
	if !strings.Contains(path, "InstanceNumber-") {
		t.Fatalf("expected a literal InstanceNumber placeholder segment, got %q", path)
	}
}

func TestBuildPathUsesZeroPaddedNumbersWhenPresent(t *testing.T) {
	path := BuildPath(
		"ChRIS",
		"PAT001", "", "",
		"", "", "20240115",
		OptionalNumber{Value: 3, Present: true}, "", "1.2.3.4.2",
		OptionalNumber{Value: 7, Present: true}, "1.2.3.4.3",
	)
	if !strings.Contains(path, "/00003-") {
		t.Fatalf("expected a zero-padded SeriesNumber segment, got %q", path)
	}
	if !strings.Contains(path, "0007-") {
		t.Fatalf("expected a zero-padded InstanceNumber segment, got %q", path)
	}
}
