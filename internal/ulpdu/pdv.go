package ulpdu

import (
	"encoding/binary"
	"fmt"
)

// PDV is one Presentation-Data-Value: a fragment of a logical DIMSE
// message tagged with the presentation context it belongs to, whether it
// carries a Command or Data value, and whether it is the last fragment
// of its kind.
type PDV struct {
	ContextID byte
	Command   bool
	Last      bool
	Value     []byte
}

// ParsePDataTF splits a P-DATA-TF PDU's body into its constituent PDVs.
// A P-DATA-TF body is a sequence of length-prefixed PDV items; each item
// is [4-byte big-endian length][1-byte context id][1-byte message
// control header][value], where the length covers the context id,
// header and value together.
func ParsePDataTF(body []byte) ([]PDV, error) {
	var pdvs []PDV
	offset := 0
	for offset < len(body) {
		if offset+4 > len(body) {
			return nil, &FramingError{Reason: "truncated PDV length"}
		}
		pdvLen := binary.BigEndian.Uint32(body[offset : offset+4])
		offset += 4
		if pdvLen < 2 || offset+int(pdvLen) > len(body) {
			return nil, &FramingError{Reason: fmt.Sprintf("invalid PDV length %d", pdvLen)}
		}
		contextID := body[offset]
		ctrl := body[offset+1]
		value := body[offset+2 : offset+int(pdvLen)]
		pdvs = append(pdvs, PDV{
			ContextID: contextID,
			Command:   ctrl&0x01 != 0,
			Last:      ctrl&0x02 != 0,
			Value:     value,
		})
		offset += int(pdvLen)
	}
	return pdvs, nil
}

// BuildPDataTF encodes one or more PDVs into a single P-DATA-TF PDU body.
func BuildPDataTF(pdvs []PDV) []byte {
	var body []byte
	for _, pdv := range pdvs {
		var ctrl byte
		if pdv.Command {
			ctrl |= 0x01
		}
		if pdv.Last {
			ctrl |= 0x02
		}
		item := make([]byte, 4+2+len(pdv.Value))
		binary.BigEndian.PutUint32(item[0:4], uint32(2+len(pdv.Value)))
		item[4] = pdv.ContextID
		item[5] = ctrl
		copy(item[6:], pdv.Value)
		body = append(body, item...)
	}
	return body
}

// LogicalMessage is the reassembled result of one or more PDVs of the
// same value-type on the same presentation context, concatenated until
// the fragment carrying the last flag arrived.
type LogicalMessage struct {
	ContextID byte
	Command   bool
	Data      []byte
}

// Reassembler accumulates PDVs across however many P-DATA-TF PDUs are
// needed to deliver one command message and, if the command indicates a
// data set follows, one data message. Command PDVs are always decoded as
// Implicit VR Little Endian regardless of the negotiated transfer
// syntax; Data PDVs use whatever transfer syntax is bound to their
// presentation context - the caller applies that once Feed returns the
// completed message.
type Reassembler struct {
	contextID        byte
	haveContext      bool
	command          []byte
	commandDone      bool
	commandDelivered bool
	data             []byte
	dataDone         bool
	dataDelivered    bool
}

// Feed appends one PDU's PDVs to the reassembler. It returns the command
// message and the data message each on the call that completes it (nil
// otherwise, including on later calls), plus any framing error; the
// caller keeps feeding more PDUs until the messages it needs are done.
func (r *Reassembler) Feed(pduBody []byte) (command *LogicalMessage, data *LogicalMessage, err error) {
	pdvs, err := ParsePDataTF(pduBody)
	if err != nil {
		return nil, nil, err
	}
	for _, pdv := range pdvs {
		if !r.haveContext {
			r.contextID = pdv.ContextID
			r.haveContext = true
		} else if r.contextID != pdv.ContextID {
			return nil, nil, &FramingError{Reason: fmt.Sprintf("mixed presentation context in one DIMSE exchange: %d vs %d", r.contextID, pdv.ContextID)}
		}
		if pdv.Command {
			if r.commandDone {
				return nil, nil, &FramingError{Reason: "PDV received after command fragment already completed"}
			}
			r.command = append(r.command, pdv.Value...)
			if pdv.Last {
				r.commandDone = true
			}
		} else {
			if r.dataDone {
				return nil, nil, &FramingError{Reason: "PDV received after data fragment already completed"}
			}
			r.data = append(r.data, pdv.Value...)
			if pdv.Last {
				r.dataDone = true
			}
		}
	}
	if r.commandDone && !r.commandDelivered {
		command = &LogicalMessage{ContextID: r.contextID, Command: true, Data: r.command}
		r.commandDelivered = true
	}
	if r.dataDone && !r.dataDelivered {
		data = &LogicalMessage{ContextID: r.contextID, Command: false, Data: r.data}
		r.dataDelivered = true
	}
	return command, data, nil
}

// Reset clears accumulated state so the Reassembler can be reused for
// the next DIMSE exchange on the same association.
func (r *Reassembler) Reset() {
	*r = Reassembler{}
}
