package domain

import (
	"errors"
	"testing"
)

func TestNewAssociationIDIsUniqueAndNonZero(t *testing.T) {
	a, err := NewAssociationID()
	if err != nil {
		t.Fatalf("NewAssociationID: %v", err)
	}
	b, err := NewAssociationID()
	if err != nil {
		t.Fatalf("NewAssociationID: %v", err)
	}
	if a.String() == (AssociationID{}).String() {
		t.Fatalf("expected a non-zero association id")
	}
	if a.String() == b.String() {
		t.Fatalf("expected two generated association ids to differ")
	}
}

func TestSeriesKeyString(t *testing.T) {
	assoc, err := NewAssociationID()
	if err != nil {
		t.Fatalf("NewAssociationID: %v", err)
	}
	k := SeriesKey{SeriesInstanceUID: "1.2.3", PacsName: "ChRIS", Association: assoc}
	want := "ChRIS/1.2.3/" + assoc.String()
	if got := k.String(); got != want {
		t.Fatalf("SeriesKey.String() = %q, want %q", got, want)
	}
}

func TestDicomInfoSeriesPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"SERVICES/PACS/ChRIS/1.2/1.2.3/1.2.3.4.dcm", "SERVICES/PACS/ChRIS/1.2/1.2.3"},
		{"no-slashes.dcm", "no-slashes.dcm"},
		{"/abs/only/one.dcm", "/abs/only"},
	}
	for _, c := range cases {
		info := DicomInfo{Path: c.path}
		if got := info.SeriesPath(); got != c.want {
			t.Errorf("SeriesPath(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestSeriesEventInstanceAndFinishVariants(t *testing.T) {
	inst := Instance[string, int]("hello")
	if inst.IsFinish() {
		t.Fatalf("Instance-constructed event reported IsFinish() true")
	}
	v, ok := inst.AsInstance()
	if !ok || v != "hello" {
		t.Fatalf("AsInstance() = (%q, %v), want (\"hello\", true)", v, ok)
	}
	if _, ok := inst.AsFinish(); ok {
		t.Fatalf("AsFinish() on an Instance event reported ok=true")
	}

	fin := Finish[string, int](42)
	if !fin.IsFinish() {
		t.Fatalf("Finish-constructed event reported IsFinish() false")
	}
	fv, ok := fin.AsFinish()
	if !ok || fv != 42 {
		t.Fatalf("AsFinish() = (%d, %v), want (42, true)", fv, ok)
	}
	if _, ok := fin.AsInstance(); ok {
		t.Fatalf("AsInstance() on a Finish event reported ok=true")
	}
}

func TestPendingInstanceAwait(t *testing.T) {
	ch := make(chan InstanceResult, 1)
	ch <- InstanceResult{Info: DicomInfo{PatientID: "PAT1"}}
	p := PendingInstance{Result: ch}

	result := p.Await()
	if result.Info.PatientID != "PAT1" {
		t.Fatalf("Await() = %+v, want PatientID PAT1", result)
	}
}

func TestRequiredTagErrorMessage(t *testing.T) {
	err := &RequiredTagError{Missing: []string{"PatientID", "StudyInstanceUID"}}
	msg := err.Error()
	if msg == "" {
		t.Fatalf("expected a non-empty error message")
	}
}

func TestStorageErrorWraps(t *testing.T) {
	cause := errors.New("disk full")
	err := &StorageError{Path: "/data/x.dcm", Op: "write", Err: cause}

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if err.Error() == "" {
		t.Fatalf("expected a non-empty error message")
	}
}
