package room

// Kind buckets protocol errors so the transport can map them to wire codes.
type Kind int

const (
	KindNotFound Kind = iota
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	}
	return "error"
}

// Error is a protocol-level rejection returned synchronously to the
// originating connection. It never indicates a server fault, never mutates
// shared state, and is never fatal to the process.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrRoomNotFound        = &Error{KindNotFound, "room_not_found", "room not found"}
	ErrParticipantNotFound = &Error{KindNotFound, "participant_not_found", "you are not a player in this room"}
	ErrGameAlreadyStarted  = &Error{KindConflict, "game_already_started", "the game has already started"}
	ErrRoomFull            = &Error{KindConflict, "room_full", "the room is full"}
	ErrDuplicateName       = &Error{KindConflict, "duplicate_name", "that name is already taken"}
	ErrInvalidName         = &Error{KindConflict, "invalid_name", "name must be non-empty and must not equal the room id"}
	ErrAuthorityCannotJoin = &Error{KindConflict, "authority_cannot_join", "the game master cannot join as a player"}
	ErrNotAuthority        = &Error{KindUnauthorized, "not_authority", "only the game master can do that"}
	ErrInsufficientPlayers = &Error{KindConflict, "insufficient_players", "at least two players are required to start"}
	ErrGameNotStarted      = &Error{KindConflict, "game_not_started", "the game has not started yet"}
	ErrNotYourTurn         = &Error{KindConflict, "not_your_turn", "it is not your turn"}
	ErrWrongPhase          = &Error{KindConflict, "wrong_phase", "that action is not allowed in the current phase"}
)
