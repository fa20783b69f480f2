package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Recorder writes Log entries best-effort: a failed audit write is
// logged and dropped rather than propagated, since losing an audit
// entry must never take down reception of a study in progress.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder wraps db. A nil db makes every record call a no-op, so
// the audit trail can be disabled without special-casing callers.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) record(entry Log) {
	if r.db == nil {
		return
	}
	entry.CreatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("action", entry.Action).Msg("failed to write audit log entry")
	}
}

// AssociationStarted records a new association.
func (r *Recorder) AssociationStarted(associationID, pacsName string) {
	r.record(Log{AssociationID: associationID, PacsName: pacsName, Action: ActionAssociationStart, Status: "success"})
}

// AssociationFinished records an association closing, ok reflecting
// whether it ended via a clean release rather than abort or error.
func (r *Recorder) AssociationFinished(associationID string, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	r.record(Log{AssociationID: associationID, Action: ActionAssociationFinish, Status: status})
}

// SeriesRegistered records a series finishing and being handed to the
// registration queue, along with its final instance count.
func (r *Recorder) SeriesRegistered(pacsName, seriesUID string, ndicom uint32) {
	r.record(Log{PacsName: pacsName, SeriesUID: seriesUID, Action: ActionSeriesRegistered, Status: "success", Ndicom: ndicom})
}

// InstanceStoreFailed records an instance that failed to write to
// disk, along with the error that caused the failure.
func (r *Recorder) InstanceStoreFailed(pacsName, seriesUID string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.record(Log{PacsName: pacsName, SeriesUID: seriesUID, Action: ActionInstanceStoreFail, Status: "failure", ErrorMessage: msg})
}
