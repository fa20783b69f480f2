package scp

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/otcheredev/oxidicom-go/internal/ulpdu"
)

// DIMSE command fields, per DICOM PS3.7 Annex E.
const (
	tagGroupLength               = 0x0000
	elemAffectedSOPClassUID      = 0x0002
	elemCommandField             = 0x0100
	elemMessageID                = 0x0110
	elemMessageIDBeingRespondedTo = 0x0120
	elemCommandDataSetType       = 0x0800
	elemAffectedSOPInstanceUID   = 0x1000
	elemStatus                   = 0x0900
)

const (
	CommandFieldCEchoRQ   uint16 = 0x0030
	CommandFieldCEchoRSP  uint16 = 0x8030
	CommandFieldCStoreRQ  uint16 = 0x0001
	CommandFieldCStoreRSP uint16 = 0x8001
)

const (
	StatusSuccess uint16 = 0x0000
)

// CommandDataSetType encodes whether a command is followed by a data
// set PDV: 0x0101 means no data set, anything else means one follows.
const commandDataSetTypeNull uint16 = 0x0101

// VerificationSOPClass re-exports ulpdu's Verification SOP Class UID so
// command encoding/decoding code and tests don't need to import ulpdu
// just for this one constant.
const VerificationSOPClass = ulpdu.VerificationSOPClass

// commandElement is a decoded (group=0000) command-set element: a tag
// plus its raw Implicit-VR-LE value bytes.
type commandElement struct {
	elem  uint16
	value []byte
}

// commandElements is a lookup of group-0000 command elements by tag.
type commandElements map[uint16]commandElement

// parseCommandSet decodes a flat Implicit VR Little Endian command
// data set (always Implicit VR LE regardless of the negotiated transfer
// syntax, per DICOM PS3.7 §6.3.1) into a lookup by element tag within
// group 0000.
func parseCommandSet(raw []byte) (commandElements, error) {
	elems := make(commandElements)
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		var group, elem uint16
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &group); err != nil {
			return nil, fmt.Errorf("read tag group: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &elem); err != nil {
			return nil, fmt.Errorf("read tag element: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("read value length: %w", err)
		}
		value := make([]byte, length)
		if length > 0 {
			if _, err := r.Read(value); err != nil {
				return nil, fmt.Errorf("read value: %w", err)
			}
		}
		if group == tagGroupLength {
			elems[elem] = commandElement{elem: elem, value: value}
		}
	}
	return elems, nil
}

func (elems commandElements) getString(tag uint16) string {
	e, ok := elems[tag]
	if !ok {
		return ""
	}
	return string(bytes.TrimRight(e.value, "\x00 "))
}

func (elems commandElements) getUint16(tag uint16) uint16 {
	e, ok := elems[tag]
	if !ok || len(e.value) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(e.value)
}

// decodedCommand is the subset of command-set fields the association
// handler needs from an incoming C-ECHO-RQ or C-STORE-RQ.
type decodedCommand struct {
	CommandField           uint16
	MessageID              uint16
	AffectedSOPClassUID    string
	AffectedSOPInstanceUID string
	HasDataSet             bool
}

func decodeCommand(raw []byte) (*decodedCommand, error) {
	elems, err := parseCommandSet(raw)
	if err != nil {
		return nil, err
	}
	return &decodedCommand{
		CommandField:           elems.getUint16(elemCommandField),
		MessageID:              elems.getUint16(elemMessageID),
		AffectedSOPClassUID:    elems.getString(elemAffectedSOPClassUID),
		AffectedSOPInstanceUID: elems.getString(elemAffectedSOPInstanceUID),
		HasDataSet:             elems.getUint16(elemCommandDataSetType) != commandDataSetTypeNull,
	}, nil
}

// encodeElement appends one Implicit VR LE element (tag + 4-byte
// length + value, even-padded) to buf.
func encodeElement(buf *bytes.Buffer, elem uint16, value []byte) {
	if len(value)%2 != 0 {
		value = append(value, 0x00)
	}
	binary.Write(buf, binary.LittleEndian, uint16(tagGroupLength))
	binary.Write(buf, binary.LittleEndian, elem)
	binary.Write(buf, binary.LittleEndian, uint32(len(value)))
	buf.Write(value)
}

func encodeUID(buf *bytes.Buffer, elem uint16, uid string) {
	v := []byte(uid)
	if len(v)%2 != 0 {
		v = append(v, 0x00)
	}
	encodeElement(buf, elem, v)
}

func encodeUint16(buf *bytes.Buffer, elem uint16, v uint16) {
	value := make([]byte, 2)
	binary.LittleEndian.PutUint16(value, v)
	encodeElement(buf, elem, value)
}

// buildResponseCommand encodes a C-ECHO-RSP or C-STORE-RSP command set,
// including the group-length element that must precede the rest.
func buildResponseCommand(commandField uint16, affectedSOPClassUID string, messageID uint16, affectedSOPInstanceUID string, status uint16) []byte {
	var body bytes.Buffer
	encodeUID(&body, elemAffectedSOPClassUID, affectedSOPClassUID)
	encodeUint16(&body, elemCommandField, commandField)
	encodeUint16(&body, elemMessageIDBeingRespondedTo, messageID)
	encodeUint16(&body, elemCommandDataSetType, commandDataSetTypeNull)
	if affectedSOPInstanceUID != "" {
		encodeUID(&body, elemAffectedSOPInstanceUID, affectedSOPInstanceUID)
	}
	encodeUint16(&body, elemStatus, status)

	var out bytes.Buffer
	encodeUint16(&out, 0x0000, uint16(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func buildCEchoResponse(affectedSOPClassUID string, messageID uint16, status uint16) []byte {
	return buildResponseCommand(CommandFieldCEchoRSP, affectedSOPClassUID, messageID, "", status)
}

func buildCStoreResponse(affectedSOPClassUID string, messageID uint16, affectedSOPInstanceUID string, status uint16) []byte {
	return buildResponseCommand(CommandFieldCStoreRSP, affectedSOPClassUID, messageID, affectedSOPInstanceUID, status)
}
