// Package syncer guarantees that, for every series key, the Finish event
// reaches the messenger only after every Instance event enqueued for
// that key has resolved, while still forwarding each Instance downstream
// as soon as it resolves rather than buffering it until Finish. Grounded
// on original_source/src/series_synchronizer.rs's enqueue_and_insert,
// which spawns one task per instance that forwards its resolved value
// immediately and records its join handle, and its Finish handler, which
// spawns a single flush that awaits the recorded handles before
// forwarding Finish. A per-instance goroutine plus a per-series
// sync.WaitGroup plays the role the original gets from tokio task
// handles and a join-all.
package syncer

import (
	"sync"

	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/rs/zerolog/log"
)

// Awaitable is a pending result a caller can block on exactly once.
// domain.PendingInstance implements this over domain.InstanceResult.
type Awaitable[R any] interface {
	Await() R
}

// Envelope pairs a series key with one SeriesEvent flowing through the
// synchronizer.
type Envelope[T any, F any] struct {
	Key   domain.SeriesKey
	Event domain.SeriesEvent[T, F]
}

// Run consumes in until it is closed, forwarding every Instance event's
// resolved value to out as soon as it resolves, and forwarding each
// Finish event to out only after every Instance previously enqueued for
// that key has resolved and been forwarded. It closes out once every
// in-flight forwarder and flush has completed.
func Run[T Awaitable[R], R any, F any](in <-chan Envelope[T, F], out chan<- Envelope[R, F]) {
	inflight := make(map[domain.SeriesKey]*sync.WaitGroup)
	var outer sync.WaitGroup

	for msg := range in {
		if instance, ok := msg.Event.AsInstance(); ok {
			seriesWG, ok := inflight[msg.Key]
			if !ok {
				seriesWG = &sync.WaitGroup{}
				inflight[msg.Key] = seriesWG
			}
			seriesWG.Add(1)
			outer.Add(1)
			go forwardInstance(seriesWG, &outer, out, msg.Key, instance)
			continue
		}

		final, _ := msg.Event.AsFinish()
		seriesWG := inflight[msg.Key]
		delete(inflight, msg.Key)

		outer.Add(1)
		go flush(seriesWG, &outer, out, msg.Key, final)
	}

	outer.Wait()
	close(out)
}

// forwardInstance awaits one instance's pending result and forwards it
// downstream immediately, so progress streams live instead of batching
// until the series finishes.
func forwardInstance[T Awaitable[R], R any, F any](seriesWG, outer *sync.WaitGroup, out chan<- Envelope[R, F], key domain.SeriesKey, task T) {
	defer outer.Done()
	defer seriesWG.Done()
	resolved := task.Await()
	out <- Envelope[R, F]{Key: key, Event: domain.Instance[R, F](resolved)}
}

// flush waits only for the instance forwarders already spawned for key,
// then forwards Finish. seriesWG is nil when Finish arrives for a series
// with no enqueued instances.
func flush[R any, F any](seriesWG, outer *sync.WaitGroup, out chan<- Envelope[R, F], key domain.SeriesKey, final F) {
	defer outer.Done()
	if seriesWG != nil {
		seriesWG.Wait()
	}
	log.Debug().Str("series", key.String()).Msg("series finished, flushing")
	out <- Envelope[R, F]{Key: key, Event: domain.Finish[R, F](final)}
}
