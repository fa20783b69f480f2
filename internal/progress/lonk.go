// Package progress implements the Light Oxidicom NotifiKations encoding
// and the rate-limited NATS publisher that delivers it. Grounded on
// original_source/src/lonk.rs (wire encoding and subject naming) and
// lonk_publisher.rs (priority-driven send/skip policy).
package progress

import (
	"strings"

	"github.com/otcheredev/oxidicom-go/internal/domain"
)

// LONK message-kind markers, per the Light Oxidicom NotifiKations spec.
const (
	messageNdicom byte = 0x01
	messageError  byte = 0x02
)

var doneMessage = []byte{0x00}

// Kind tags which variant a Message carries.
type Kind int

const (
	KindDone Kind = iota
	KindNdicom
	KindError
)

// Message is one LONK notification for a series.
type Message struct {
	Series domain.SeriesKey
	Kind   Kind
	Ndicom uint32
	Err    error
}

// Done builds a done-message Message.
func Done(series domain.SeriesKey) Message {
	return Message{Series: series, Kind: KindDone}
}

// Ndicom builds a progress-count Message.
func Ndicom(series domain.SeriesKey, count uint32) Message {
	return Message{Series: series, Kind: KindNdicom, Ndicom: count}
}

// NdicomError builds an error Message.
func NdicomError(series domain.SeriesKey, err error) Message {
	return Message{Series: series, Kind: KindError, Err: err}
}

// Encode serializes m to its LONK wire payload.
func Encode(m Message) []byte {
	switch m.Kind {
	case KindDone:
		return append([]byte(nil), doneMessage...)
	case KindNdicom:
		payload := make([]byte, 5)
		payload[0] = messageNdicom
		payload[1] = byte(m.Ndicom)
		payload[2] = byte(m.Ndicom >> 8)
		payload[3] = byte(m.Ndicom >> 16)
		payload[4] = byte(m.Ndicom >> 24)
		return payload
	case KindError:
		text := ""
		if m.Err != nil {
			text = m.Err.Error()
		}
		payload := make([]byte, 0, 1+len(text))
		payload = append(payload, messageError)
		payload = append(payload, []byte(text)...)
		return payload
	default:
		return nil
	}
}

var subjectReplacer = strings.NewReplacer(" ", "_", ".", "_", "*", "_", ">", "_", "\x00", "")

// SubjectOf derives the NATS subject a series' notifications publish to:
// "<rootSubject>.<pacs_name>.<SeriesInstanceUID>", each component
// sanitized per the NATS subject character rules.
func SubjectOf(rootSubject string, series domain.SeriesKey) string {
	return rootSubject + "." + subjectReplacer.Replace(series.PacsName) + "." + subjectReplacer.Replace(series.SeriesInstanceUID)
}
