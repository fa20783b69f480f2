// Package seriestracker runs the single goroutine that owns the
// association -> series state needed to guarantee a series Finish event
// is the last event sent for that series. It consumes AssociationEvents,
// extracts DICOM tags synchronously (so the guarantee holds with no
// locking), hands the actual file write off to a bounded storage pool,
// and forwards (SeriesKey, SeriesEvent) pairs downstream. Grounded on
// original_source/src/association_series_state_loop.rs: a plain,
// non-async loop over one channel is what the original relies on to make
// "Finish is always last" true without a mutex.
package seriestracker

import (
	"bytes"

	"github.com/otcheredev/oxidicom-go/internal/audit"
	"github.com/otcheredev/oxidicom-go/internal/dicomtags"
	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/otcheredev/oxidicom-go/internal/storage"
	"github.com/otcheredev/oxidicom-go/internal/syncer"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
)

// Message is one (SeriesKey, SeriesEvent) pair forwarded to the
// synchronizer. SeriesEvent here is instantiated over PendingInstance
// (Instance variant) and DicomInfo (Finish variant, already reduced to
// its series-level path).
type Message = syncer.Envelope[domain.PendingInstance, domain.DicomInfo]

type associationState struct {
	pacsName string
	series   map[domain.SeriesKey]domain.DicomInfo
}

// Tracker owns the inflight-associations map and drives the state loop.
type Tracker struct {
	pool  *storage.Pool
	out   chan<- Message
	audit *audit.Recorder
}

// New constructs a Tracker that writes instances through pool and
// forwards series events to out. recorder may be nil.
func New(pool *storage.Pool, out chan<- Message, recorder *audit.Recorder) *Tracker {
	return &Tracker{pool: pool, out: out, audit: recorder}
}

// Run consumes events until the channel is closed. It must run on its
// own goroutine and must be the only goroutine touching the inflight map;
// that single-ownership is what makes Finish-is-last-per-series true
// without synchronization.
func (t *Tracker) Run(events <-chan domain.AssociationEvent) {
	inflight := make(map[domain.AssociationID]*associationState)

	for ev := range events {
		switch ev.Kind {
		case domain.EventStart:
			inflight[ev.ID] = &associationState{
				pacsName: ev.CalledAE,
				series:   make(map[domain.SeriesKey]domain.DicomInfo),
			}
			if t.audit != nil {
				t.audit.AssociationStarted(ev.ID.String(), ev.CalledAE)
			}

		case domain.EventInstance:
			assoc, ok := inflight[ev.ID]
			if !ok {
				log.Error().Str("association", ev.ID.String()).Msg("instance event for unknown association")
				continue
			}
			t.receiveInstance(ev.ID, assoc, ev.Dataset)

		case domain.EventFinish:
			assoc, ok := inflight[ev.ID]
			if !ok {
				log.Error().Str("association", ev.ID.String()).Msg("finish event for unknown association")
				continue
			}
			delete(inflight, ev.ID)
			for key, info := range assoc.series {
				t.out <- Message{Key: key, Event: domain.Finish[domain.PendingInstance, domain.DicomInfo](info)}
			}
			if t.audit != nil {
				t.audit.AssociationFinished(ev.ID.String(), ev.OK)
			}
		}
	}
}

func (t *Tracker) receiveInstance(id domain.AssociationID, assoc *associationState, incoming *domain.IncomingInstance) {
	if incoming == nil {
		log.Error().Str("association", id.String()).Msg("instance event with no dataset")
		return
	}

	ds, err := dicom.Parse(bytes.NewReader(incoming.RawDataset), int64(len(incoming.RawDataset)), nil, dicom.SkipMetadataReadOnNewParserInit())
	if err != nil {
		log.Error().Err(err).Str("association", id.String()).Msg("failed to parse dataset")
		return
	}

	info, err := dicomtags.ExtractSeriesTags(&ds, incoming.PacsName)
	if err != nil {
		log.Error().Err(err).Str("association", id.String()).Msg("rejecting instance with missing required tags")
		t.emitRejection(id, incoming.PacsName, info.SeriesInstanceUID, err)
		return
	}
	reportBadTags(id, info)

	key := domain.SeriesKey{
		SeriesInstanceUID: info.SeriesInstanceUID,
		PacsName:          info.PacsName,
		Association:       id,
	}

	if _, seen := assoc.series[key]; !seen {
		seriesInfo := info
		seriesInfo.Path = info.SeriesPath()
		assoc.series[key] = seriesInfo
	}

	resultCh := t.pool.Submit(info, ds)
	t.out <- Message{
		Key: key,
		Event: domain.Instance[domain.PendingInstance, domain.DicomInfo](domain.PendingInstance{
			Key:    key,
			Result: resultCh,
		}),
	}
}

// unknownSeriesUID is the placeholder used when a rejected instance's
// own SeriesInstanceUID could not be read, so the error notification
// still has a SeriesKey to address.
const unknownSeriesUID = "UNKNOWN"

// emitRejection produces the exactly-one error notification a
// required-tag rejection owes the series, addressed to a best-effort
// SeriesKey: the instance's own SeriesInstanceUID when it was readable,
// or unknownSeriesUID otherwise. There is no Finish to follow it, since
// a rejected instance never joins a series this tracker can resolve.
func (t *Tracker) emitRejection(id domain.AssociationID, pacsName, seriesInstanceUID string, err error) {
	uid := seriesInstanceUID
	if uid == "" {
		uid = unknownSeriesUID
	}
	key := domain.SeriesKey{SeriesInstanceUID: uid, PacsName: pacsName, Association: id}

	resultCh := make(chan domain.InstanceResult, 1)
	resultCh <- domain.InstanceResult{Err: err}

	t.out <- Message{
		Key: key,
		Event: domain.Instance[domain.PendingInstance, domain.DicomInfo](domain.PendingInstance{
			Key:    key,
			Result: resultCh,
		}),
	}
}

func reportBadTags(id domain.AssociationID, info domain.DicomInfo) {
	if len(info.BadTags) == 0 {
		return
	}
	for _, bt := range info.BadTags {
		log.Warn().Str("association", id.String()).Str("path", info.Path).Str("tag", bt.Tag).Str("value", bt.Value).Err(bt.Err).Msg("bad tag value, field stored as null")
	}
}
