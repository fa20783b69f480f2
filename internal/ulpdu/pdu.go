// Package ulpdu implements the DICOM Upper Layer protocol's PDU framing:
// reading and writing the seven PDU kinds over a TCP byte stream, and
// reassembling Presentation-Data-Value fragments into logical DIMSE
// messages. It mirrors the wire-level approach every example in this
// corpus that touches UL framing uses - hand-built byte encode/decode,
// since no third-party DICOM library in the ecosystem covers the UL
// transport (suyashkumar/dicom only models datasets, not the session
// layer).
package ulpdu

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PDU kinds, per DICOM PS3.8.
const (
	TypeAssociateRQ = 0x01
	TypeAssociateAC = 0x02
	TypeAssociateRJ = 0x03
	TypePDataTF     = 0x04
	TypeReleaseRQ   = 0x05
	TypeReleaseRP   = 0x06
	TypeAbort       = 0x07
)

// PDU is a raw, undecoded Protocol Data Unit: a one-byte type, a
// big-endian length, and that many bytes of type-specific payload.
type PDU struct {
	Type byte
	Data []byte
}

// FramingError wraps any condition that makes the byte stream
// unrecoverable: a truncated PDU, an unknown PDU type, or (in strict
// mode) an over-length PDU. The association handler responds to a
// FramingError by sending A-ABORT and tearing the association down.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string { return "ulpdu: " + e.Reason }

// ReadPDU reads one complete PDU from r. When strict is true, a PDU
// whose declared length exceeds maxLen is rejected with a FramingError;
// when false, it is read and accepted anyway (tolerance for
// non-compliant peers), matching spec.md's strict-mode toggle.
func ReadPDU(r io.Reader, maxLen uint32, strict bool) (*PDU, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FramingError{Reason: fmt.Sprintf("read PDU header: %v", err)}
	}

	pduType := header[0]
	if pduType < TypeAssociateRQ || pduType > TypeAbort {
		return nil, &FramingError{Reason: fmt.Sprintf("unknown PDU type 0x%02x", pduType)}
	}
	length := binary.BigEndian.Uint32(header[2:6])
	if strict && maxLen > 0 && length > maxLen {
		return nil, &FramingError{Reason: fmt.Sprintf("PDU length %d exceeds max %d", length, maxLen)}
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, &FramingError{Reason: fmt.Sprintf("read PDU body: %v", err)}
	}

	return &PDU{Type: pduType, Data: data}, nil
}

// WritePDU writes a complete PDU to w.
func WritePDU(w io.Writer, pdu *PDU) error {
	header := make([]byte, 6)
	header[0] = pdu.Type
	header[1] = 0x00
	binary.BigEndian.PutUint32(header[2:6], uint32(len(pdu.Data)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write PDU header: %w", err)
	}
	if _, err := w.Write(pdu.Data); err != nil {
		return fmt.Errorf("write PDU body: %w", err)
	}
	return nil
}

// WriteAbort writes an A-ABORT PDU with the given source/reason codes.
// The body is two reserved bytes followed by source and reason, per
// PS3.8.
func WriteAbort(w io.Writer, source, reason byte) error {
	data := []byte{0x00, 0x00, source, reason}
	return WritePDU(w, &PDU{Type: TypeAbort, Data: data})
}

// WriteReleaseRP writes an A-RELEASE-RP PDU.
func WriteReleaseRP(w io.Writer) error {
	return WritePDU(w, &PDU{Type: TypeReleaseRP, Data: []byte{0x00, 0x00, 0x00, 0x00}})
}
