// Package messenger turns synchronized series events into the progress
// notifications and registration task parameters the rest of the
// pipeline publishes. Grounded on original_source/src/messenger.rs,
// including its four documented cases (first instance, middle instance,
// last instance, storage error) translated into this package's tests.
package messenger

import (
	"context"

	"github.com/otcheredev/oxidicom-go/internal/audit"
	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/otcheredev/oxidicom-go/internal/progress"
	"github.com/otcheredev/oxidicom-go/internal/registration"
	"github.com/otcheredev/oxidicom-go/internal/statuscache"
	"github.com/otcheredev/oxidicom-go/internal/syncer"
)

// In is the envelope type the messenger consumes: an instance's
// storage outcome, or a series' final DicomInfo.
type In = syncer.Envelope[domain.InstanceResult, domain.DicomInfo]

// Messenger tallies per-series instance counts and emits the
// corresponding LONK and registration messages.
type Messenger struct {
	tx     chan<- progress.PublishParams
	txReg  chan<- registration.Params
	status *statuscache.Store
	audit  *audit.Recorder
	counts map[domain.SeriesKey]uint32
}

// New constructs a Messenger that publishes LONK notifications to tx,
// registration tasks to txReg, and (if status or recorder are
// non-nil) progress snapshots and audit entries respectively.
func New(tx chan<- progress.PublishParams, txReg chan<- registration.Params, status *statuscache.Store, recorder *audit.Recorder) *Messenger {
	return &Messenger{tx: tx, txReg: txReg, status: status, audit: recorder, counts: make(map[domain.SeriesKey]uint32)}
}

// Run consumes in until it is closed, then closes both output channels.
func (m *Messenger) Run(in <-chan In) {
	defer close(m.tx)
	defer close(m.txReg)

	for envelope := range in {
		m.handle(envelope)
	}
}

func (m *Messenger) handle(envelope In) {
	if result, ok := envelope.Event.AsInstance(); ok {
		m.tx <- m.countInstance(envelope.Key, result)
		return
	}

	info, _ := envelope.Event.AsFinish()
	ndicom := m.counts[envelope.Key]
	delete(m.counts, envelope.Key)

	m.tx <- progress.PublishParams{
		Message:  progress.Ndicom(envelope.Key, ndicom),
		Priority: progress.PriorityRequired,
	}
	m.tx <- progress.PublishParams{
		Message:  progress.Done(envelope.Key),
		Priority: progress.PriorityLast,
	}
	m.txReg <- registration.Params{Info: info, Ndicom: ndicom}

	if m.audit != nil {
		m.audit.SeriesRegistered(envelope.Key.PacsName, envelope.Key.SeriesInstanceUID, ndicom)
	}

	if m.status != nil {
		m.status.PutSeries(context.Background(), statuscache.SeriesSnapshot{
			PacsName:          envelope.Key.PacsName,
			SeriesInstanceUID: envelope.Key.SeriesInstanceUID,
			Ndicom:            ndicom,
			Done:              true,
		})
	}
}

// countInstance updates the running count for series and produces the
// LONK message reporting it: Required priority for the series' first
// instance or any error, Optional for every instance after the first.
func (m *Messenger) countInstance(series domain.SeriesKey, result domain.InstanceResult) progress.PublishParams {
	if result.Err != nil {
		if m.audit != nil {
			m.audit.InstanceStoreFailed(series.PacsName, series.SeriesInstanceUID, result.Err)
		}
		return progress.PublishParams{
			Message:  progress.NdicomError(series, result.Err),
			Priority: progress.PriorityRequired,
		}
	}

	count, seen := m.counts[series]
	count++
	m.counts[series] = count

	priority := progress.PriorityOptional
	if !seen {
		priority = progress.PriorityRequired
	}
	if m.status != nil {
		m.status.PutSeries(context.Background(), statuscache.SeriesSnapshot{
			PacsName:          series.PacsName,
			SeriesInstanceUID: series.SeriesInstanceUID,
			Ndicom:            count,
		})
	}
	return progress.PublishParams{Message: progress.Ndicom(series, count), Priority: priority}
}
