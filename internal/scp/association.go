// Package scp implements the per-connection DICOM Upper Layer
// association state machine: accept, negotiate presentation contexts,
// loop receiving DIMSE commands and data, emit AssociationEvents, and
// respond. Grounded on caio-sobreiro-dicomnet/dimse/service.go (message
// control header fragment reassembly) and the prior Rust scp.rs (command
// element layout and event shapes).
package scp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/otcheredev/oxidicom-go/internal/ulpdu"
	"github.com/rs/zerolog/log"
)

// Config holds the per-listener SCP policy, named after spec.md's
// `scp.*` configuration keys.
type Config struct {
	AET              string
	Strict           bool
	UncompressedOnly bool
	Promiscuous      bool
	MaxPDULength     uint32
	ImplClassUID     string
	ImplVersionName  string
}

// PacsNameResolver maps a calling AE title to the logical PACS name
// used in storage paths and series keys. The default resolver is the
// identity function.
type PacsNameResolver func(callingAET string) string

// Handler drives one TCP connection through the full association
// lifecycle and emits AssociationEvents to a shared channel. The channel
// oxidicomd wires up is buffered (256 events), not unbounded: when the
// series tracker falls behind and the buffer is full, emitting blocks
// this handler's goroutine until there is room.
type Handler struct {
	cfg      Config
	events   chan<- domain.AssociationEvent
	resolver PacsNameResolver
}

// NewHandler constructs a Handler bound to the shared event channel.
func NewHandler(cfg Config, events chan<- domain.AssociationEvent, resolver PacsNameResolver) *Handler {
	if resolver == nil {
		resolver = func(callingAET string) string { return callingAET }
	}
	if cfg.ImplClassUID == "" {
		cfg.ImplClassUID = "1.2.826.0.1.3680043.9.7433.1.1"
	}
	if cfg.ImplVersionName == "" {
		cfg.ImplVersionName = "OXIDICOM_GO_1"
	}
	return &Handler{cfg: cfg, events: events, resolver: resolver}
}

func (h *Handler) policy() ulpdu.NegotiationPolicy {
	abstract := map[string]bool{ulpdu.VerificationSOPClass: true}
	for _, uid := range storageSOPClasses {
		abstract[uid] = true
	}
	transferSyntaxes := []string{ulpdu.ExplicitVRLittleEndian, ulpdu.ImplicitVRLittleEndian}
	if !h.cfg.UncompressedOnly {
		transferSyntaxes = append(transferSyntaxes, compressedTransferSyntaxes...)
	}
	return ulpdu.NegotiationPolicy{
		AbstractSyntaxes: abstract,
		TransferSyntaxes: transferSyntaxes,
		Promiscuous:      h.cfg.Promiscuous,
	}
}

// Serve runs the association state machine to completion on conn,
// closing it before returning. All protocol and I/O errors are reported
// as a Finish{ok:false} event rather than returned, matching spec.md's
// "the pipeline never panics on peer misbehavior" policy. The only error
// returned is a failure to generate the association id, in which case no
// event is emitted.
func (h *Handler) Serve(conn net.Conn) error {
	defer conn.Close()

	assocID, err := domain.NewAssociationID()
	if err != nil {
		return fmt.Errorf("generate association id: %w", err)
	}

	ok := h.run(conn, assocID)
	h.emit(domain.AssociationEvent{ID: assocID, Kind: domain.EventFinish, OK: ok})
	return nil
}

func (h *Handler) emit(ev domain.AssociationEvent) {
	h.events <- ev
}

func (h *Handler) run(conn net.Conn, assocID domain.AssociationID) (ok bool) {
	pdu, err := ulpdu.ReadPDU(conn, h.cfg.MaxPDULength, h.cfg.Strict)
	if err != nil {
		log.Warn().Err(err).Str("association", assocID.String()).Msg("failed to read A-ASSOCIATE-RQ")
		return false
	}
	if pdu.Type != ulpdu.TypeAssociateRQ {
		log.Warn().Str("association", assocID.String()).Uint8("pdu_type", pdu.Type).Msg("expected A-ASSOCIATE-RQ")
		ulpdu.WriteAbort(conn, 0x02, 0x01)
		return false
	}

	req, err := ulpdu.ParseAssociateRequest(pdu.Data)
	if err != nil {
		log.Warn().Err(err).Str("association", assocID.String()).Msg("malformed A-ASSOCIATE-RQ")
		ulpdu.WriteAbort(conn, 0x02, 0x01)
		return false
	}

	maxPDU := h.cfg.MaxPDULength
	if req.MaxPDULength > 0 && req.MaxPDULength < maxPDU {
		maxPDU = req.MaxPDULength
	}

	accepted := ulpdu.Negotiate(req.ProposedContexts, h.policy())
	contexts := make(map[byte]ulpdu.PresentationContext, len(accepted))
	for _, pc := range accepted {
		if pc.TransferSyntax != "" {
			contexts[pc.ID] = pc
		}
	}

	ac := ulpdu.BuildAssociateAccept(h.cfg.AET, req.CallingAET, accepted, h.cfg.MaxPDULength, h.cfg.ImplClassUID, h.cfg.ImplVersionName)
	if _, err := conn.Write(ac); err != nil {
		log.Warn().Err(err).Str("association", assocID.String()).Msg("failed to send A-ASSOCIATE-AC")
		return false
	}

	pacsName := h.resolver(req.CallingAET)
	h.emit(domain.AssociationEvent{ID: assocID, Kind: domain.EventStart, CalledAE: req.CallingAET})

	peerAddr := conn.RemoteAddr().String()
	log.Info().Str("association", assocID.String()).Str("calling_aet", req.CallingAET).Str("peer", peerAddr).Msg("association established")

	var reassembler ulpdu.Reassembler
	var pendingStore *decodedCommand
	var instanceBuf bytes.Buffer

	for {
		pdu, err := ulpdu.ReadPDU(conn, maxPDU, h.cfg.Strict)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Str("association", assocID.String()).Msg("peer closed connection")
				return false
			}
			log.Warn().Err(err).Str("association", assocID.String()).Msg("framing error, aborting association")
			ulpdu.WriteAbort(conn, 0x02, 0x01)
			return false
		}

		switch pdu.Type {
		case ulpdu.TypePDataTF:
			command, data, err := reassembler.Feed(pdu.Data)
			if err != nil {
				log.Warn().Err(err).Str("association", assocID.String()).Msg("PDV reassembly error")
				ulpdu.WriteAbort(conn, 0x02, 0x01)
				return false
			}

			if command != nil {
				cmd, err := decodeCommand(command.Data)
				if err != nil {
					log.Warn().Err(err).Str("association", assocID.String()).Msg("malformed command set")
					ulpdu.WriteAbort(conn, 0x02, 0x01)
					return false
				}
				switch cmd.CommandField {
				case CommandFieldCEchoRQ:
					resp := buildCEchoResponse(cmd.AffectedSOPClassUID, cmd.MessageID, StatusSuccess)
					if err := sendCommand(conn, command.ContextID, resp); err != nil {
						log.Warn().Err(err).Str("association", assocID.String()).Msg("failed to send C-ECHO-RSP")
						return false
					}
					reassembler.Reset()
				case CommandFieldCStoreRQ:
					pendingStore = cmd
					instanceBuf.Reset()
					if !cmd.HasDataSet {
						log.Warn().Str("association", assocID.String()).Msg("C-STORE-RQ with no data set")
						reassembler.Reset()
						pendingStore = nil
					}
				default:
					log.Warn().Uint16("command_field", cmd.CommandField).Str("association", assocID.String()).Msg("unsupported DIMSE command")
					reassembler.Reset()
				}
			}

			if data != nil {
				instanceBuf.Write(data.Data)
				if pendingStore != nil {
					ctx, ok := contexts[data.ContextID]
					if !ok {
						log.Warn().Str("association", assocID.String()).Msg("data PDV on unnegotiated presentation context")
						ulpdu.WriteAbort(conn, 0x02, 0x01)
						return false
					}
					h.emit(domain.AssociationEvent{
						ID:   assocID,
						Kind: domain.EventInstance,
						Dataset: &domain.IncomingInstance{
							SOPClassUID:    pendingStore.AffectedSOPClassUID,
							SOPInstanceUID: pendingStore.AffectedSOPInstanceUID,
							TransferSyntax: ctx.TransferSyntax,
							PacsName:       pacsName,
							RawDataset:     append([]byte(nil), instanceBuf.Bytes()...),
						},
					})
					resp := buildCStoreResponse(pendingStore.AffectedSOPClassUID, pendingStore.MessageID, pendingStore.AffectedSOPInstanceUID, StatusSuccess)
					if err := sendCommand(conn, data.ContextID, resp); err != nil {
						log.Warn().Err(err).Str("association", assocID.String()).Msg("failed to send C-STORE-RSP")
						return false
					}
					pendingStore = nil
				}
				reassembler.Reset()
			}

		case ulpdu.TypeReleaseRQ:
			if err := ulpdu.WriteReleaseRP(conn); err != nil {
				log.Warn().Err(err).Str("association", assocID.String()).Msg("failed to send A-RELEASE-RP")
				return false
			}
			log.Info().Str("association", assocID.String()).Msg("association released")
			return true

		case ulpdu.TypeAbort:
			log.Info().Str("association", assocID.String()).Msg("received A-ABORT")
			return false

		default:
			log.Warn().Uint8("pdu_type", pdu.Type).Str("association", assocID.String()).Msg("unhandled PDU type")
		}
	}
}

func sendCommand(conn net.Conn, contextID byte, command []byte) error {
	body := ulpdu.BuildPDataTF([]ulpdu.PDV{{ContextID: contextID, Command: true, Last: true, Value: command}})
	return ulpdu.WritePDU(conn, &ulpdu.PDU{Type: ulpdu.TypePDataTF, Data: body})
}
