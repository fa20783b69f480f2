package seriestracker

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/otcheredev/oxidicom-go/internal/storage"
)

// encodeImplicitElement appends one Implicit VR Little Endian element
// (tag group/element, 4-byte length, value) to buf - the wire format a
// C-STORE-RQ's data PDVs actually carry, which is what tracker.go's
// dicom.Parse(..., dicom.SkipMetadataReadOnNewParserInit()) call expects
// in the absence of a Part 10 file meta header.
func encodeImplicitElement(buf *bytes.Buffer, group, element uint16, value string) {
	if len(value)%2 != 0 {
		value += " "
	}
	binary.Write(buf, binary.LittleEndian, group)
	binary.Write(buf, binary.LittleEndian, element)
	binary.Write(buf, binary.LittleEndian, uint32(len(value)))
	buf.WriteString(value)
}

func rawInstance(t *testing.T, seriesUID, sopUID string) *domain.IncomingInstance {
	t.Helper()
	var buf bytes.Buffer
	encodeImplicitElement(&buf, 0x0008, 0x0020, "20240115")    // StudyDate
	encodeImplicitElement(&buf, 0x0008, 0x0018, sopUID)        // SOPInstanceUID
	encodeImplicitElement(&buf, 0x0010, 0x0020, "PAT001")      // PatientID
	encodeImplicitElement(&buf, 0x0020, 0x000D, "1.2.3.4.1")   // StudyInstanceUID
	encodeImplicitElement(&buf, 0x0020, 0x000E, seriesUID)     // SeriesInstanceUID

	return &domain.IncomingInstance{
		SOPClassUID:    "1.2.840.10008.5.1.4.1.1.7",
		SOPInstanceUID: sopUID,
		PacsName:       "ChRIS",
		RawDataset:     buf.Bytes(),
	}
}

func rawInstanceMissingPatientID(t *testing.T, seriesUID, sopUID string) *domain.IncomingInstance {
	t.Helper()
	var buf bytes.Buffer
	encodeImplicitElement(&buf, 0x0008, 0x0020, "20240115")  // StudyDate
	encodeImplicitElement(&buf, 0x0008, 0x0018, sopUID)      // SOPInstanceUID
	encodeImplicitElement(&buf, 0x0020, 0x000D, "1.2.3.4.1") // StudyInstanceUID
	encodeImplicitElement(&buf, 0x0020, 0x000E, seriesUID)   // SeriesInstanceUID

	return &domain.IncomingInstance{
		SOPClassUID:    "1.2.840.10008.5.1.4.1.1.7",
		SOPInstanceUID: sopUID,
		PacsName:       "ChRIS",
		RawDataset:     buf.Bytes(),
	}
}

func TestTrackerEmitsInstanceThenFinish(t *testing.T) {
	pool := storage.NewPool(t.TempDir(), 2)
	out := make(chan Message, 8)
	tr := New(pool, out, nil)

	events := make(chan domain.AssociationEvent, 4)
	done := make(chan struct{})
	go func() { tr.Run(events); close(done) }()

	assocID, err := domain.NewAssociationID()
	if err != nil {
		t.Fatalf("NewAssociationID: %v", err)
	}

	events <- domain.AssociationEvent{ID: assocID, Kind: domain.EventStart, CalledAE: "ChRIS"}
	events <- domain.AssociationEvent{ID: assocID, Kind: domain.EventInstance, Dataset: rawInstance(t, "1.2.3.4.2", "1.2.3.4.3")}
	events <- domain.AssociationEvent{ID: assocID, Kind: domain.EventFinish, OK: true}

	var sawInstance, sawFinish bool
	for i := 0; i < 2; i++ {
		select {
		case msg := <-out:
			if _, ok := msg.Event.AsInstance(); ok {
				sawInstance = true
			} else if msg.Event.IsFinish() {
				sawFinish = true
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tracker output %d", i)
		}
	}
	if !sawInstance || !sawFinish {
		t.Fatalf("expected both an instance and a finish message, got instance=%v finish=%v", sawInstance, sawFinish)
	}

	close(events)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return once events was closed")
	}
}

func TestTrackerEmitsExactlyOneErrorNotificationForRejectedInstance(t *testing.T) {
	pool := storage.NewPool(t.TempDir(), 2)
	out := make(chan Message, 4)
	tr := New(pool, out, nil)

	events := make(chan domain.AssociationEvent, 2)
	done := make(chan struct{})
	go func() { tr.Run(events); close(done) }()

	assocID, err := domain.NewAssociationID()
	if err != nil {
		t.Fatalf("NewAssociationID: %v", err)
	}

	events <- domain.AssociationEvent{ID: assocID, Kind: domain.EventStart, CalledAE: "ChRIS"}
	events <- domain.AssociationEvent{ID: assocID, Kind: domain.EventInstance, Dataset: rawInstanceMissingPatientID(t, "1.2.3.4.2", "1.2.3.4.3")}
	close(events)

	select {
	case msg := <-out:
		inst, ok := msg.Event.AsInstance()
		if !ok {
			t.Fatalf("expected an Instance-variant error notification, got %+v", msg)
		}
		result := inst.Await()
		if result.Err == nil {
			t.Fatalf("expected the notification to carry the rejection error")
		}
		if msg.Key.SeriesInstanceUID != "1.2.3.4.2" {
			t.Fatalf("expected the notification addressed to the instance's own SeriesInstanceUID, got %q", msg.Key.SeriesInstanceUID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the rejection's error notification")
	}

	select {
	case msg := <-out:
		t.Fatalf("expected exactly one notification for a rejected instance, got an extra: %+v", msg)
	case <-done:
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTrackerEmitsUnknownSeriesKeyWhenSeriesInstanceUIDMissing(t *testing.T) {
	pool := storage.NewPool(t.TempDir(), 2)
	out := make(chan Message, 4)
	tr := New(pool, out, nil)

	events := make(chan domain.AssociationEvent, 2)
	done := make(chan struct{})
	go func() { tr.Run(events); close(done) }()

	assocID, err := domain.NewAssociationID()
	if err != nil {
		t.Fatalf("NewAssociationID: %v", err)
	}

	var buf bytes.Buffer
	encodeImplicitElement(&buf, 0x0008, 0x0018, "1.2.3.4.3") // SOPInstanceUID only
	incoming := &domain.IncomingInstance{
		SOPClassUID:    "1.2.840.10008.5.1.4.1.1.7",
		SOPInstanceUID: "1.2.3.4.3",
		PacsName:       "ChRIS",
		RawDataset:     buf.Bytes(),
	}

	events <- domain.AssociationEvent{ID: assocID, Kind: domain.EventStart, CalledAE: "ChRIS"}
	events <- domain.AssociationEvent{ID: assocID, Kind: domain.EventInstance, Dataset: incoming}
	close(events)

	select {
	case msg := <-out:
		if msg.Key.SeriesInstanceUID != "UNKNOWN" {
			t.Fatalf("expected a best-effort SeriesKey defaulting the UID to UNKNOWN, got %q", msg.Key.SeriesInstanceUID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the rejection's error notification")
	}
	<-done
}

func TestTrackerDropsInstanceEventForUnknownAssociation(t *testing.T) {
	pool := storage.NewPool(t.TempDir(), 2)
	out := make(chan Message, 1)
	tr := New(pool, out, nil)

	events := make(chan domain.AssociationEvent, 1)
	done := make(chan struct{})
	go func() { tr.Run(events); close(done) }()

	unknownID, err := domain.NewAssociationID()
	if err != nil {
		t.Fatalf("NewAssociationID: %v", err)
	}
	events <- domain.AssociationEvent{ID: unknownID, Kind: domain.EventInstance, Dataset: rawInstance(t, "1.2.3.4.2", "1.2.3.4.3")}
	close(events)

	select {
	case msg := <-out:
		t.Fatalf("expected no output for an instance event on an unknown association, got %+v", msg)
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
}
