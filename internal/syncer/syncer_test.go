package syncer

import (
	"testing"
	"time"

	"github.com/otcheredev/oxidicom-go/internal/domain"
)

// delayedInstance is a minimal Awaitable[string] whose resolution can be
// held open on a channel, so tests can assert Finish waits for it.
type delayedInstance struct {
	ready chan string
}

func (d delayedInstance) Await() string { return <-d.ready }

func TestRunFlushesFinishAfterAllInstances(t *testing.T) {
	in := make(chan Envelope[delayedInstance, string])
	out := make(chan Envelope[string, string], 8)
	go Run[delayedInstance, string, string](in, out)

	key := domain.SeriesKey{SeriesInstanceUID: "1.2.3", PacsName: "ChRIS"}

	first := delayedInstance{ready: make(chan string, 1)}
	second := delayedInstance{ready: make(chan string, 1)}
	in <- Envelope[delayedInstance, string]{Key: key, Event: domain.Instance[delayedInstance, string](first)}
	in <- Envelope[delayedInstance, string]{Key: key, Event: domain.Instance[delayedInstance, string](second)}
	in <- Envelope[delayedInstance, string]{Key: key, Event: domain.Finish[delayedInstance, string]("done")}

	select {
	case ev := <-out:
		t.Fatalf("expected no output before either instance resolves, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	first.ready <- "a"
	second.ready <- "b"

	got := map[string]bool{}
	var sawFinish bool
	for i := 0; i < 3; i++ {
		select {
		case ev := <-out:
			if ev.Event.IsFinish() {
				sawFinish = true
				if v, _ := ev.Event.AsFinish(); v != "done" {
					t.Fatalf("expected finish payload 'done', got %q", v)
				}
				continue
			}
			if sawFinish {
				t.Fatalf("instance event delivered after finish event")
			}
			v, _ := ev.Event.AsInstance()
			got[v] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for output %d", i)
		}
	}
	if !got["a"] || !got["b"] || !sawFinish {
		t.Fatalf("expected both instances and a finish event, got instances=%v finish=%v", got, sawFinish)
	}

	close(in)
	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected out to be closed once in is closed and all flushes complete")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for out to close")
	}
}

func TestRunIndependentSeriesKeysDoNotBlockEachOther(t *testing.T) {
	in := make(chan Envelope[delayedInstance, string])
	out := make(chan Envelope[string, string], 8)
	go Run[delayedInstance, string, string](in, out)

	keyA := domain.SeriesKey{SeriesInstanceUID: "a", PacsName: "ChRIS"}
	keyB := domain.SeriesKey{SeriesInstanceUID: "b", PacsName: "ChRIS"}

	blocked := delayedInstance{ready: make(chan string)}
	in <- Envelope[delayedInstance, string]{Key: keyA, Event: domain.Instance[delayedInstance, string](blocked)}
	in <- Envelope[delayedInstance, string]{Key: keyB, Event: domain.Finish[delayedInstance, string]("b-done")}

	select {
	case ev := <-out:
		if !ev.Event.IsFinish() {
			t.Fatalf("expected series B's finish to flush without waiting on series A")
		}
	case <-time.After(time.Second):
		t.Fatalf("series B's finish was blocked by series A's unresolved instance")
	}

	close(blocked.ready)
	close(in)
}
