package messenger

import (
	"errors"
	"testing"

	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/otcheredev/oxidicom-go/internal/progress"
	"github.com/otcheredev/oxidicom-go/internal/registration"
)

func testSeriesKey() domain.SeriesKey {
	return domain.SeriesKey{
		SeriesInstanceUID: "1.2.826.0.1.3680043.8.498.21847029020195636742803265118738348008",
		PacsName:          "MESNGRTEST",
	}
}

func TestCountInstanceFirst(t *testing.T) {
	m := New(nil, nil, nil, nil)
	series := testSeriesKey()

	params := m.countInstance(series, domain.InstanceResult{})

	if params.Priority != progress.PriorityRequired {
		t.Fatalf("expected the first instance of a series to be Required priority, got %v", params.Priority)
	}
	if params.Message.Kind != progress.KindNdicom || params.Message.Ndicom != 1 {
		t.Fatalf("expected ndicom=1, got %+v", params.Message)
	}
	if m.counts[series] != 1 {
		t.Fatalf("expected count to be tracked as 1, got %d", m.counts[series])
	}
}

func TestCountInstanceMiddle(t *testing.T) {
	m := New(nil, nil, nil, nil)
	series := testSeriesKey()
	m.counts[series] = 41

	params := m.countInstance(series, domain.InstanceResult{})

	if params.Priority != progress.PriorityOptional {
		t.Fatalf("expected a non-first instance to be Optional priority, got %v", params.Priority)
	}
	if params.Message.Ndicom != 42 {
		t.Fatalf("expected ndicom=42, got %d", params.Message.Ndicom)
	}
	if m.counts[series] != 42 {
		t.Fatalf("expected count to advance to 42, got %d", m.counts[series])
	}
}

func TestCountInstanceError(t *testing.T) {
	m := New(nil, nil, nil, nil)
	series := testSeriesKey()

	params := m.countInstance(series, domain.InstanceResult{Err: errors.New("pretend error")})

	if params.Priority != progress.PriorityRequired {
		t.Fatalf("expected error messages to always be Required priority, got %v", params.Priority)
	}
	if params.Message.Kind != progress.KindError {
		t.Fatalf("expected an error message, got %+v", params.Message)
	}
	if _, tracked := m.counts[series]; tracked {
		t.Fatalf("an erroring instance should not create a count entry")
	}
}

func TestHandleFinish(t *testing.T) {
	tx := make(chan progress.PublishParams, 8)
	txReg := make(chan registration.Params, 1)
	m := New(tx, txReg, nil, nil)
	series := testSeriesKey()
	m.counts[series] = 42

	info := domain.DicomInfo{SeriesInstanceUID: series.SeriesInstanceUID, PacsName: series.PacsName}
	m.handle(In{Key: series, Event: domain.Finish[domain.InstanceResult, domain.DicomInfo](info)})

	if _, stillTracked := m.counts[series]; stillTracked {
		t.Fatalf("expected count entry to be removed once the series finishes")
	}

	ndicomMsg := <-tx
	if ndicomMsg.Priority != progress.PriorityRequired || ndicomMsg.Message.Kind != progress.KindNdicom || ndicomMsg.Message.Ndicom != 42 {
		t.Fatalf("expected a Required ndicom=42 message first, got %+v", ndicomMsg)
	}
	doneMsg := <-tx
	if doneMsg.Priority != progress.PriorityLast || doneMsg.Message.Kind != progress.KindDone {
		t.Fatalf("expected a Last done message second, got %+v", doneMsg)
	}

	regParams := <-txReg
	if regParams.Ndicom != 42 {
		t.Fatalf("expected registration params to carry ndicom=42, got %d", regParams.Ndicom)
	}
}
