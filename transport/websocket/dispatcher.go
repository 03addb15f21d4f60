package websocket

import (
	"encoding/json"
	"errors"

	log15 "github.com/inconshreveable/log15/v3"

	"github.com/tablerelay/tablerelay/game/coordinator"
	"github.com/tablerelay/tablerelay/game/room"
)

// Dispatcher decodes inbound frames and routes them to the coordinator.
// Direct replies and error frames go back through the same Sender the
// coordinator broadcasts with. A bad frame earns an error reply, never a
// disconnect.
type Dispatcher struct {
	coord *coordinator.Coordinator
	out   coordinator.Sender
	log   log15.Logger
}

// NewDispatcher wires a dispatcher to the coordinator and an outbound sender
// (the hub, in production).
func NewDispatcher(coord *coordinator.Coordinator, out coordinator.Sender, logger log15.Logger) *Dispatcher {
	return &Dispatcher{coord: coord, out: out, log: logger}
}

// HandleDisconnect implements Handler.
func (d *Dispatcher) HandleDisconnect(connID string) {
	d.coord.Disconnect(connID)
}

// HandleMessage implements Handler.
func (d *Dispatcher) HandleMessage(connID string, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		d.log.Debug("malformed frame", "conn", connID, "err", err)
		d.out.Send(connID, EventError, WireError{Kind: "bad_request", Code: "malformed_message", Message: "message is not valid JSON"})
		return
	}

	switch req.Type {
	case TypeCreateRoom:
		id := d.coord.CreateRoom(connID, req.Name, req.Color, req.Capacity)
		d.out.Send(connID, EventRoomCreated, RoomCreated{RoomID: id})

	case TypeJoin:
		err := d.coord.Join(req.RoomID, connID, req.Name, req.Color, req.Icon)
		result := JoinResult{RoomID: req.RoomID, Success: err == nil}
		if err != nil {
			result.Error = wireError(err)
		}
		d.out.Send(connID, EventJoinResult, result)

	case TypeReclaim:
		accepted := d.coord.ReclaimAuthority(req.RoomID, connID)
		d.out.Send(connID, EventReclaimResult, ReclaimResult{RoomID: req.RoomID, Accepted: accepted})

	case TypeRoomInfo:
		if err := d.coord.RequestRoomInfo(req.RoomID); err != nil {
			d.sendError(connID, err)
		}

	case TypeStartGame:
		if err := d.coord.StartGame(req.RoomID, connID); err != nil {
			d.sendError(connID, err)
		}

	case TypeSubmitAction:
		if err := d.coord.SubmitAction(req.RoomID, connID, req.Action, req.Payload); err != nil {
			d.sendError(connID, err)
		}

	case TypeCastVote:
		if err := d.coord.CastVote(req.RoomID, connID, req.ProposalID, req.Choice); err != nil {
			d.sendError(connID, err)
		}

	case TypePublishState:
		var snap room.Snapshot
		if err := json.Unmarshal(req.State, &snap); err != nil {
			// Dropped like any other bad publish: the authority protocol is
			// deliberately reply-free on this path.
			d.log.Debug("unparseable snapshot dropped", "conn", connID, "err", err)
			return
		}
		d.coord.PublishState(req.RoomID, connID, snap)

	case TypeOpenPoll:
		d.coord.OpenPoll(req.RoomID, req.ProposalID, req.Payload, req.Proposer)

	default:
		d.out.Send(connID, EventError, WireError{Kind: "bad_request", Code: "unknown_type", Message: "unknown message type"})
	}
}

func (d *Dispatcher) sendError(connID string, err error) {
	d.out.Send(connID, EventError, *wireError(err))
}

func wireError(err error) *WireError {
	var perr *room.Error
	if errors.As(err, &perr) {
		return &WireError{Kind: perr.Kind.String(), Code: perr.Code, Message: perr.Message}
	}
	return &WireError{Kind: "error", Code: "internal", Message: err.Error()}
}
