package websocket

import "encoding/json"

// Client-to-server request types.
const (
	TypeCreateRoom   = "create_room"
	TypeJoin         = "join"
	TypeReclaim      = "reclaim_authority"
	TypeRoomInfo     = "room_info"
	TypeStartGame    = "start_game"
	TypeSubmitAction = "submit_action"
	TypeCastVote     = "cast_vote"
	TypePublishState = "publish_state"
	TypeOpenPoll     = "open_poll"
)

// Direct-reply event names (broadcast event names live in the coordinator
// package).
const (
	EventRoomCreated   = "room_created"
	EventJoinResult    = "join_result"
	EventReclaimResult = "reclaim_result"
	EventError         = "error"
)

// Request is the client-to-server envelope. Type selects the operation; the
// remaining fields are per-operation. Payload and State are opaque blobs the
// relay never interprets.
type Request struct {
	Type       string          `json:"type"`
	RoomID     string          `json:"room_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Color      string          `json:"color,omitempty"`
	Icon       string          `json:"icon,omitempty"`
	Capacity   int             `json:"capacity,omitempty"`
	Action     string          `json:"action,omitempty"`
	ProposalID string          `json:"proposal_id,omitempty"`
	Proposer   string          `json:"proposer,omitempty"`
	Choice     bool            `json:"choice,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	State      json.RawMessage `json:"state,omitempty"`
}

// WireError is the error shape sent back to the originating connection. Kind
// mirrors the coordinator's error taxonomy; Code is stable for clients to
// switch on, Message is for humans.
type WireError struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoomCreated is the direct reply to create_room.
type RoomCreated struct {
	RoomID string `json:"room_id"`
}

// JoinResult is the direct reply to join.
type JoinResult struct {
	RoomID  string     `json:"room_id"`
	Success bool       `json:"success"`
	Error   *WireError `json:"error,omitempty"`
}

// ReclaimResult is the direct reply to reclaim_authority.
type ReclaimResult struct {
	RoomID   string `json:"room_id"`
	Accepted bool   `json:"accepted"`
}
