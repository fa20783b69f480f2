// Package registration publishes series-registration tasks to the CUBE
// celery worker over AMQP. Grounded on
// original_source/src/registration_task.rs (the exact kwargs CUBE's
// `pacsfiles.tasks.register_pacs_series` task expects, including
// PatientAge being in days) and celery_publisher.rs (one task per
// finished series), re-expressed as a hand-built Celery protocol v2
// envelope since no Go Celery client exists in the ecosystem - the same
// gap that makes this corpus's own UL framing hand-built.
package registration

import (
	"encoding/json"
	"time"

	"github.com/otcheredev/oxidicom-go/internal/domain"
)

// TaskName is the CUBE celery task this connector invokes.
const TaskName = "pacsfiles.tasks.register_pacs_series"

// kwargs mirrors register_pacs_series's Python signature field-for-field.
type kwargs struct {
	PatientID         string  `json:"PatientID"`
	StudyDate         string  `json:"StudyDate"`
	StudyInstanceUID  string  `json:"StudyInstanceUID"`
	SeriesInstanceUID string  `json:"SeriesInstanceUID"`
	PacsName          string  `json:"pacs_name"`
	Path              string  `json:"path"`
	Ndicom            uint32  `json:"ndicom"`
	PatientName       *string `json:"PatientName"`
	PatientBirthDate  *string `json:"PatientBirthDate"`
	PatientAge        *int32  `json:"PatientAge"`
	PatientSex        *string `json:"PatientSex"`
	AccessionNumber   *string `json:"AccessionNumber"`
	Modality          *string `json:"Modality"`
	ProtocolName      *string `json:"ProtocolName"`
	StudyDescription  *string `json:"StudyDescription"`
	SeriesDescription *string `json:"SeriesDescription"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// buildKwargs converts a finished series' DicomInfo and instance count
// into the task's keyword arguments.
func buildKwargs(info domain.DicomInfo, ndicom uint32) kwargs {
	return kwargs{
		PatientID:         info.PatientID,
		StudyDate:         info.StudyDate.Format("2006-01-02"),
		StudyInstanceUID:  info.StudyInstanceUID,
		SeriesInstanceUID: info.SeriesInstanceUID,
		PacsName:          info.PacsName,
		Path:              info.Path,
		Ndicom:            ndicom,
		PatientName:       optional(info.PatientName),
		PatientBirthDate:  optional(info.PatientBirthDate),
		PatientAge:        info.PatientAge,
		PatientSex:        optional(info.PatientSex),
		AccessionNumber:   optional(info.AccessionNumber),
		Modality:          optional(info.Modality),
		ProtocolName:      optional(info.ProtocolName),
		StudyDescription:  optional(info.StudyDescription),
		SeriesDescription: optional(info.SeriesDescription),
	}
}

// embed is the celery protocol v2 callbacks/errbacks/chain/chord trailer;
// this connector never chains tasks, so every field is null.
type embed struct {
	Callbacks any `json:"callbacks"`
	Errbacks  any `json:"errbacks"`
	Chain     any `json:"chain"`
	Chord     any `json:"chord"`
}

// Task is one encoded celery message: Body is the protocol v2 body
// array, Headers carries the routing/introspection metadata celery
// workers and monitoring tools expect.
type Task struct {
	ID      string
	Body    []byte
	Headers map[string]any
}

// BuildTask encodes a register_pacs_series invocation for the given
// finished series. id should be a fresh UUID string, used as both the
// celery task id and the AMQP correlation id.
func BuildTask(id string, info domain.DicomInfo, ndicom uint32) (Task, error) {
	kw := buildKwargs(info, ndicom)
	kwMap, err := toMap(kw)
	if err != nil {
		return Task{}, err
	}

	body, err := json.Marshal([]any{[]any{}, kwMap, embed{}})
	if err != nil {
		return Task{}, err
	}

	headers := map[string]any{
		"lang":        "py",
		"task":        TaskName,
		"id":          id,
		"root_id":     id,
		"parent_id":   nil,
		"group":       nil,
		"group_index": nil,
		"shadow":      nil,
		"eta":         nil,
		"expires":     nil,
		"retries":     0,
		"timelimit":   []any{nil, nil},
		"argsrepr":    "()",
		"kwargsrepr":  kwargsrepr(kw),
		"origin":      "oxidicom",
		"sent_at":     time.Now().UTC().Format(time.RFC3339),
	}

	return Task{ID: id, Body: body, Headers: headers}, nil
}

func toMap(kw kwargs) (map[string]any, error) {
	raw, err := json.Marshal(kw)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func kwargsrepr(kw kwargs) string {
	raw, err := json.Marshal(kw)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
