package ulpdu

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Presentation-context negotiation results, per DICOM PS3.8 §9.3.3.2.
const (
	ResultAcceptance           byte = 0x00
	ResultRejectAbstractSyntax byte = 0x03
	ResultRejectTransferSyntax byte = 0x04
)

// ApplicationContextUID is the single DICOM application context name.
const ApplicationContextUID = "1.2.840.10008.3.1.1.1"

// ImplicitVRLittleEndian and ExplicitVRLittleEndian are the two
// transfer syntaxes every association must at minimum support.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
)

// VerificationSOPClass is the C-ECHO abstract syntax.
const VerificationSOPClass = "1.2.840.10008.1.1"

// ProposedContext is one (id, abstract syntax, candidate transfer
// syntaxes) tuple as offered by the peer in A-ASSOCIATE-RQ.
type ProposedContext struct {
	ID                byte
	AbstractSyntax    string
	TransferSyntaxes  []string
}

// AssociateRequest is the parsed content of an A-ASSOCIATE-RQ PDU.
type AssociateRequest struct {
	CalledAET        string
	CallingAET       string
	MaxPDULength     uint32
	ProposedContexts []ProposedContext
}

func trimAET(raw []byte) string {
	s := string(raw)
	if idx := strings.IndexByte(s, 0); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func normalizeUID(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00 ")
}

// ParseAssociateRequest decodes an A-ASSOCIATE-RQ PDU body.
func ParseAssociateRequest(body []byte) (*AssociateRequest, error) {
	if len(body) < 68 {
		return nil, &FramingError{Reason: "A-ASSOCIATE-RQ shorter than fixed fields"}
	}
	req := &AssociateRequest{
		CalledAET:    trimAET(body[4:20]),
		CallingAET:   trimAET(body[20:36]),
		MaxPDULength: 16384,
	}

	offset := 68
	for offset+4 <= len(body) {
		itemType := body[offset]
		itemLen := binary.BigEndian.Uint16(body[offset+2 : offset+4])
		valueStart := offset + 4
		valueEnd := valueStart + int(itemLen)
		if valueEnd > len(body) {
			return nil, &FramingError{Reason: "association item exceeds PDU length"}
		}
		item := body[valueStart:valueEnd]

		switch itemType {
		case 0x20: // Presentation Context
			ctx, err := parseProposedContext(item)
			if err != nil {
				return nil, err
			}
			req.ProposedContexts = append(req.ProposedContexts, ctx)
		case 0x50: // User Information
			if maxLen, ok := parseMaxLength(item); ok {
				req.MaxPDULength = maxLen
			}
		}
		offset = valueEnd
	}
	return req, nil
}

func parseProposedContext(data []byte) (ProposedContext, error) {
	if len(data) < 4 {
		return ProposedContext{}, &FramingError{Reason: "presentation context item too short"}
	}
	ctx := ProposedContext{ID: data[0]}
	offset := 4
	for offset+4 <= len(data) {
		subType := data[offset]
		subLen := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		valueStart := offset + 4
		valueEnd := valueStart + int(subLen)
		if valueEnd > len(data) {
			return ProposedContext{}, &FramingError{Reason: "presentation context sub-item exceeds length"}
		}
		value := data[valueStart:valueEnd]
		switch subType {
		case 0x30:
			ctx.AbstractSyntax = normalizeUID(value)
		case 0x40:
			ctx.TransferSyntaxes = append(ctx.TransferSyntaxes, normalizeUID(value))
		}
		offset = valueEnd
	}
	return ctx, nil
}

func parseMaxLength(data []byte) (uint32, bool) {
	offset := 0
	for offset+4 <= len(data) {
		subType := data[offset]
		subLen := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		valueStart := offset + 4
		valueEnd := valueStart + int(subLen)
		if valueEnd > len(data) {
			return 0, false
		}
		if subType == 0x51 && subLen == 4 {
			return binary.BigEndian.Uint32(data[valueStart:valueEnd]), true
		}
		offset = valueEnd
	}
	return 0, false
}

// NegotiationPolicy decides which abstract/transfer syntaxes a SCP
// advertises acceptance of.
type NegotiationPolicy struct {
	// AbstractSyntaxes is the set of SOP Class UIDs accepted
	// unconditionally (Storage SOP classes plus Verification).
	AbstractSyntaxes map[string]bool
	// TransferSyntaxes is the ordered list of transfer syntaxes offered,
	// most preferred first. When UncompressedOnly is set this excludes
	// every compressed transfer syntax.
	TransferSyntaxes []string
	// Promiscuous additionally accepts abstract syntaxes the policy does
	// not otherwise know about, so long as the peer proposes at least
	// one supported transfer syntax for it.
	Promiscuous bool
}

// Negotiate resolves every proposed context to an (ID, AbstractSyntax,
// TransferSyntax) context, accepted when TransferSyntax is set and
// rejected when it is empty.
func Negotiate(proposed []ProposedContext, policy NegotiationPolicy) []PresentationContext {
	accepted := make([]PresentationContext, 0, len(proposed))
	for _, p := range proposed {
		known := policy.AbstractSyntaxes[p.AbstractSyntax]
		if !known && !policy.Promiscuous {
			accepted = append(accepted, PresentationContext{ID: p.ID, AbstractSyntax: p.AbstractSyntax})
			continue
		}
		selected := ""
		for _, want := range policy.TransferSyntaxes {
			for _, got := range p.TransferSyntaxes {
				if got == want {
					selected = got
					break
				}
			}
			if selected != "" {
				break
			}
		}
		pc := PresentationContext{ID: p.ID, AbstractSyntax: p.AbstractSyntax}
		if selected == "" {
			accepted = append(accepted, pc)
			continue
		}
		pc.TransferSyntax = selected
		accepted = append(accepted, pc)
	}
	return accepted
}

// PresentationContext mirrors domain.PresentationContext; its
// negotiation result byte for AC encoding is derived by result() from
// TransferSyntax, where empty means "rejected".
type PresentationContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
}

func (pc PresentationContext) result() byte {
	if pc.TransferSyntax != "" {
		return ResultAcceptance
	}
	return ResultRejectTransferSyntax
}

// BuildAssociateAccept encodes an A-ASSOCIATE-AC PDU. DCMTK and Orthanc
// both reject an AC that lists a rejected context alongside accepted
// ones, so only accepted contexts are emitted - matching the same
// compatibility workaround the corpus's own UL framer applies.
func BuildAssociateAccept(calledAET, callingAET string, accepted []PresentationContext, maxPDULength uint32, implClassUID, implVersionName string) []byte {
	fixed := make([]byte, 68)
	binary.BigEndian.PutUint16(fixed[0:2], 0x0001)
	copy(fixed[4:20], fmt.Sprintf("%-16s", truncate(calledAET, 16)))
	copy(fixed[20:36], fmt.Sprintf("%-16s", truncate(callingAET, 16)))

	appCtx := variableItem(0x10, []byte(ApplicationContextUID))

	var presItems []byte
	for _, pc := range accepted {
		if pc.result() != ResultAcceptance {
			continue
		}
		ts := variableItem(0x40, []byte(pc.TransferSyntax))
		item := make([]byte, 0, 4+len(ts))
		item = append(item, pc.ID, ResultAcceptance, 0x00, 0x00)
		item = append(item, ts...)
		presItems = append(presItems, variableItemRaw(0x21, item)...)
	}

	userInfo := buildUserInformation(maxPDULength, implClassUID, implVersionName)

	var pduData []byte
	pduData = append(pduData, fixed...)
	pduData = append(pduData, appCtx...)
	pduData = append(pduData, presItems...)
	pduData = append(pduData, userInfo...)

	return framePDU(TypeAssociateAC, pduData)
}

// BuildAssociateReject encodes an A-ASSOCIATE-RJ PDU.
func BuildAssociateReject(result, source, reason byte) []byte {
	data := []byte{0x00, result, source, reason}
	return framePDU(TypeAssociateRJ, data)
}

func buildUserInformation(maxPDULength uint32, implClassUID, implVersionName string) []byte {
	maxLenValue := make([]byte, 4)
	binary.BigEndian.PutUint32(maxLenValue, maxPDULength)
	maxLenItem := variableItem(0x51, maxLenValue)

	implClassItem := variableItem(0x52, []byte(implClassUID))
	implVersionItem := variableItem(0x55, []byte(implVersionName))

	var inner []byte
	inner = append(inner, maxLenItem...)
	inner = append(inner, implClassItem...)
	inner = append(inner, implVersionItem...)

	return variableItemRaw(0x50, inner)
}

func variableItem(itemType byte, value []byte) []byte {
	return variableItemRaw(itemType, value)
}

func variableItemRaw(itemType byte, value []byte) []byte {
	item := make([]byte, 4+len(value))
	item[0] = itemType
	item[1] = 0x00
	binary.BigEndian.PutUint16(item[2:4], uint16(len(value)))
	copy(item[4:], value)
	return item
}

func framePDU(pduType byte, data []byte) []byte {
	header := make([]byte, 6)
	header[0] = pduType
	binary.BigEndian.PutUint32(header[2:6], uint32(len(data)))
	return append(header, data...)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
