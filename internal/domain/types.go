// Package domain holds the types shared by every stage of the reception
// pipeline: the association/series data model and the event shapes that
// flow between stages.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssociationID identifies one DIMSE session for its lifetime. It is a
// UUIDv7, time-ordered and lexicographically sortable as its canonical
// hex string.
type AssociationID uuid.UUID

// NewAssociationID generates a fresh, time-ordered association id.
func NewAssociationID() (AssociationID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return AssociationID{}, fmt.Errorf("generate association id: %w", err)
	}
	return AssociationID(id), nil
}

func (id AssociationID) String() string {
	return uuid.UUID(id).String()
}

// PresentationContext binds a negotiated context id to the abstract and
// transfer syntax UIDs chosen for it.
type PresentationContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
}

// Association is the live state of one accepted DIMSE session.
type Association struct {
	ID              AssociationID
	CalledAET       string
	CallingAET      string
	PeerAddr        string
	PresentationCtx map[byte]PresentationContext
}

// SeriesKey uniquely identifies one series within one association. The
// association id is part of the key so two concurrent associations
// pushing the same SeriesInstanceUID remain distinguishable downstream.
type SeriesKey struct {
	SeriesInstanceUID string
	PacsName          string
	Association       AssociationID
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.PacsName, k.SeriesInstanceUID, k.Association)
}

// BadTag records an optional tag whose value could not be parsed; the
// field becomes null but the instance is still accepted.
type BadTag struct {
	Tag   string
	Value string
	Err   error
}

// DicomInfo is the normalized metadata lifted from a stored instance.
// Path holds the instance's file path, or the owning series directory
// once the series tracker has reduced it with SeriesPath.
type DicomInfo struct {
	PatientID         string
	StudyDate         time.Time
	StudyInstanceUID  string
	SeriesInstanceUID string
	PacsName          string
	Path              string

	PatientName       string
	PatientBirthDate  string
	PatientAge        *int32
	PatientSex        string
	AccessionNumber   string
	Modality          string
	ProtocolName      string
	StudyDescription  string
	SeriesDescription string

	BadTags []BadTag
}

// SeriesPath returns the directory containing this instance's file, i.e.
// Path with the trailing "/<instance-file>.dcm" component removed.
func (d DicomInfo) SeriesPath() string {
	for i := len(d.Path) - 1; i >= 0; i-- {
		if d.Path[i] == '/' {
			return d.Path[:i]
		}
	}
	return d.Path
}

// PendingInstance is a future-valued handle to a storage write, paired
// with the SeriesKey it belongs to. The channel between stages carries
// these so downstream stages can join them in completion order while the
// actual I/O runs on a bounded worker pool.
type PendingInstance struct {
	Key    SeriesKey
	Result <-chan InstanceResult
}

// InstanceResult is what a storage write resolves to: either the
// extracted DicomInfo for the file just written, or the error that
// prevented it.
type InstanceResult struct {
	Info DicomInfo
	Err  error
}

// Await blocks until the storage write behind p.Result completes. It
// satisfies syncer.Awaitable[InstanceResult].
func (p PendingInstance) Await() InstanceResult {
	return <-p.Result
}

// SeriesEvent is the tagged Instance/Finish variant flowing through the
// synchronizer and messenger. Finish is emitted exactly once per
// SeriesKey per association.
type SeriesEvent[T any, F any] struct {
	instance *T
	finish   *F
}

// Instance constructs an Instance-variant event.
func Instance[T any, F any](v T) SeriesEvent[T, F] {
	return SeriesEvent[T, F]{instance: &v}
}

// Finish constructs a Finish-variant event.
func Finish[T any, F any](v F) SeriesEvent[T, F] {
	return SeriesEvent[T, F]{finish: &v}
}

// IsFinish reports whether this is the Finish variant.
func (e SeriesEvent[T, F]) IsFinish() bool { return e.finish != nil }

// AsInstance returns the Instance payload and true, or the zero value and
// false if this is a Finish event.
func (e SeriesEvent[T, F]) AsInstance() (T, bool) {
	if e.instance == nil {
		var zero T
		return zero, false
	}
	return *e.instance, true
}

// AsFinish returns the Finish payload and true, or the zero value and
// false if this is an Instance event.
func (e SeriesEvent[T, F]) AsFinish() (F, bool) {
	if e.finish == nil {
		var zero F
		return zero, false
	}
	return *e.finish, true
}

// AssociationEvent is what the Association Handler emits per connection.
type AssociationEvent struct {
	ID       AssociationID
	Kind     AssociationEventKind
	CalledAE string
	Dataset  *IncomingInstance
	OK       bool
}

// AssociationEventKind tags the variant of an AssociationEvent.
type AssociationEventKind int

const (
	EventStart AssociationEventKind = iota
	EventInstance
	EventFinish
)

// IncomingInstance is the raw material the Series State Tracker needs to
// extract DicomInfo and write a file: the decoded dataset plus the
// transfer syntax it arrived in and the PACS name it was received for.
type IncomingInstance struct {
	SOPClassUID    string
	SOPInstanceUID string
	TransferSyntax string
	PacsName       string
	RawDataset     []byte
}

// RequiredTagError reports a DICOM object missing one of the tags
// mandatory for path derivation and registration.
type RequiredTagError struct {
	Missing []string
}

func (e *RequiredTagError) Error() string {
	return fmt.Sprintf("missing required tag(s): %v", e.Missing)
}

// StorageError reports a filesystem failure while writing an instance.
type StorageError struct {
	Path string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
