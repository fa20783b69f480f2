package audit

import (
	"errors"
	"testing"
)

// TestRecorderNilDBIsANoOp pins the "audit is always optional" contract:
// every Recorder method must be safe to call with no database connected,
// since an unset AUDIT_DATABASE_HOST disables the audit trail rather than
// failing startup.
func TestRecorderNilDBIsANoOp(t *testing.T) {
	r := NewRecorder(nil)

	r.AssociationStarted("assoc-1", "ChRIS")
	r.AssociationFinished("assoc-1", true)
	r.SeriesRegistered("ChRIS", "1.2.3", 5)
	r.InstanceStoreFailed("ChRIS", "1.2.3", errors.New("disk full"))
}
