package coordinator

import (
	"encoding/json"

	"github.com/tablerelay/tablerelay/game/room"
)

// Server-to-client event names.
const (
	EventMembership   = "membership"
	EventGameStarted  = "game_started"
	EventRoomClosed   = "room_closed"
	EventState        = "state"
	EventAction       = "action"
	EventPollOpened   = "poll_opened"
	EventVoteProgress = "vote_progress"
	EventVoteResult   = "vote_result"
)

// StateUpdate is the per-recipient view of a published snapshot. The
// authority receives the full snapshot and no Hand; each participant receives
// a redacted snapshot plus their own private record.
type StateUpdate struct {
	RoomID string          `json:"room_id"`
	State  room.Snapshot   `json:"state"`
	Hand   json.RawMessage `json:"hand,omitempty"`
}

// ActionForward is what the authority receives for a player action. The
// payload travels verbatim; the coordinator validates only turn and phase.
type ActionForward struct {
	RoomID        string          `json:"room_id"`
	ParticipantID string          `json:"participant_id"`
	Action        string          `json:"action"`
	Payload       json.RawMessage `json:"payload"`
}

// PollOpened announces a new poll to the whole room.
type PollOpened struct {
	RoomID     string          `json:"room_id"`
	ProposalID string          `json:"proposal_id"`
	Payload    json.RawMessage `json:"payload"`
	ProposerID string          `json:"proposer"`
}

// VoteProgress is a partial tally broadcast after a vote that did not finish
// the poll.
type VoteProgress struct {
	RoomID string `json:"room_id"`
	room.PollProgress
}

// VoteResult is the final tally, broadcast exactly once per poll.
type VoteResult struct {
	RoomID string `json:"room_id"`
	room.PollResult
}

// GameStarted notifies every connection that joining is over and play begins.
type GameStarted struct {
	RoomID string `json:"room_id"`
}

// RoomClosed notifies every connection that the room was torn down.
type RoomClosed struct {
	RoomID string `json:"room_id"`
}
