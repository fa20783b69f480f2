package progress

import (
	"testing"
	"time"

	"github.com/otcheredev/oxidicom-go/internal/domain"
)

// TestPublisherNilConnIsANoOpSink exercises every priority through a
// Publisher with no NATS connection, matching spec.md's requirement that
// an unset nats_address disables progress notifications without making
// them an error.
func TestPublisherNilConnIsANoOpSink(t *testing.T) {
	p := NewPublisher(nil, "oxidicom", time.Millisecond, 0)
	key := domain.SeriesKey{SeriesInstanceUID: "1.2.3", PacsName: "ChRIS"}

	in := make(chan PublishParams, 3)
	in <- PublishParams{Message: Ndicom(key, 1), Priority: PriorityOptional}
	in <- PublishParams{Message: Ndicom(key, 2), Priority: PriorityRequired}
	in <- PublishParams{Message: Done(key), Priority: PriorityLast}
	close(in)

	done := make(chan struct{})
	go func() {
		p.Run(in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publisher.Run did not drain the channel")
	}
}
