// Package audit persists a best-effort record of association and
// series activity to Postgres via gorm, adapted from the teacher
// connector's internal/models/audit.go + internal/repository and
// internal/database packages. Unlike the teacher's multi-tenant audit
// log, oxidicomd runs as a single-tenant PACS receiver, so TenantID and
// UserID are dropped in favor of the fields this pipeline actually
// produces: which association, which series, and what happened.
package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Log is one audit entry: an association lifecycle transition, a
// series finishing, or an instance storage failure.
type Log struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AssociationID string   `gorm:"type:varchar(64);index" json:"association_id"`
	PacsName     string    `gorm:"type:varchar(128);index" json:"pacs_name"`
	SeriesUID    string    `gorm:"type:varchar(255);index" json:"series_instance_uid,omitempty"`
	Action       string    `gorm:"type:varchar(100);not null;index" json:"action"`
	Status       string    `gorm:"type:varchar(20);index" json:"status"` // success, failure
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	Ndicom       uint32    `json:"ndicom,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"timestamp"`
}

// TableName overrides the default pluralized table name.
func (Log) TableName() string {
	return "audit_logs"
}

// BeforeCreate assigns an ID when the caller hasn't set one.
func (l *Log) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Audit action names, kept as constants so Recorder call sites and
// query filters can't drift apart by typo.
const (
	ActionAssociationStart  = "association.start"
	ActionAssociationFinish = "association.finish"
	ActionSeriesRegistered  = "series.registered"
	ActionInstanceStoreFail = "instance.store_failed"
)
