package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCapacity bounds membership when the creator does not pick a size.
	DefaultCapacity = 8

	// MinPlayers is the smallest membership a game can start with.
	MinPlayers = 2

	// DefaultIcon is used when a joining player does not choose one.
	DefaultIcon = "meeple"
)

// Participant is a joined player. The authority connection is tracked on the
// Room itself and never appears in the member table.
type Participant struct {
	ConnectionID  string    `json:"-"`
	ParticipantID string    `json:"id"`
	DisplayName   string    `json:"name"`
	Color         string    `json:"color"`
	Icon          string    `json:"icon"`
	JoinedAt      time.Time `json:"-"`
}

// DeriveParticipantID maps a connection id to a participant id. The mapping
// is deterministic, so the same connection always resolves to the same
// identity for the lifetime of the session.
func DeriveParticipantID(connectionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(connectionID)).String()
}

// Room aggregates membership, the authority pointer, the last accepted
// snapshot and any open polls for one table.
type Room struct {
	mu sync.Mutex

	id        string
	hostName  string
	hostColor string
	capacity  int
	started   bool

	authorityConn string
	state         Snapshot

	members   map[string]*Participant // keyed by connection id
	joinOrder []string                // connection ids in join order

	pendingPolls map[string]*Poll // keyed by proposal id
}

// New creates an empty, unstarted room with the given connection as its
// authority. A capacity of zero or less falls back to DefaultCapacity.
func New(id, authorityConn, hostName, hostColor string, capacity int) *Room {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Room{
		id:            id,
		hostName:      hostName,
		hostColor:     hostColor,
		capacity:      capacity,
		authorityConn: authorityConn,
		members:       make(map[string]*Participant),
		pendingPolls:  make(map[string]*Poll),
	}
}

// ID returns the room's immutable identifier.
func (r *Room) ID() string { return r.id }

// Started reports whether the authority has started the game.
func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// AuthorityConn returns the connection currently recognized as the room's
// sole state writer.
func (r *Room) AuthorityConn() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authorityConn
}

// HasConnection reports whether the connection is the room's authority or one
// of its members.
func (r *Room) HasConnection(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connID == r.authorityConn {
		return true
	}
	_, ok := r.members[connID]
	return ok
}

// Connections returns every connection attached to the room, authority first,
// members in join order.
func (r *Room) Connections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]string, 0, len(r.members)+1)
	if r.authorityConn != "" {
		conns = append(conns, r.authorityConn)
	}
	conns = append(conns, r.joinOrder...)
	return conns
}

// StateSnapshot returns the last accepted snapshot, if any has been published.
func (r *Room) StateSnapshot() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.state != nil
}

// AddParticipant admits a player. Admission fails once the game has started,
// at capacity, on a display name already in use, and on a name that is empty
// or equal to the room id. Name uniqueness is enforced here and only here.
func (r *Room) AddParticipant(connID, name, color, icon string) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connID == r.authorityConn {
		// Keeps the invariant that the member table never holds the
		// authority's own connection.
		return Participant{}, ErrAuthorityCannotJoin
	}
	if r.started {
		return Participant{}, ErrGameAlreadyStarted
	}
	if len(r.members) >= r.capacity {
		return Participant{}, ErrRoomFull
	}
	if name == "" || name == r.id {
		return Participant{}, ErrInvalidName
	}
	for _, p := range r.members {
		if p.DisplayName == name {
			return Participant{}, ErrDuplicateName
		}
	}

	if icon == "" {
		icon = DefaultIcon
	}
	p := &Participant{
		ConnectionID:  connID,
		ParticipantID: DeriveParticipantID(connID),
		DisplayName:   name,
		Color:         color,
		Icon:          icon,
		JoinedAt:      time.Now(),
	}
	r.members[connID] = p
	r.joinOrder = append(r.joinOrder, connID)
	return *p, nil
}

// Start flips the room into its started state. Only the authority may start,
// only once, and only with at least MinPlayers members. Once started, joining
// is disallowed for good.
func (r *Room) Start(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connID != r.authorityConn {
		return ErrNotAuthority
	}
	if len(r.members) < MinPlayers {
		return ErrInsufficientPlayers
	}
	if r.started {
		return ErrGameAlreadyStarted
	}
	r.started = true
	return nil
}

// Removal describes what a departing connection did to the room.
type Removal struct {
	WasAuthority bool
	WasMember    bool
	// CloseRoom is set when the authority left before the game started; the
	// room is useless without its master and must be torn down.
	CloseRoom bool
	Removed   Participant
	// Finalized holds polls completed by the departure: a leaver drops out of
	// every required-voter set, which can make an outstanding poll whole.
	Finalized []PollResult
}

// RemoveConnection handles a disconnect. An authority leaving an unstarted
// room means teardown; an authority leaving a started room leaves the pointer
// dangling, eligible for reclaim. A member is removed and every open poll is
// re-checked for completion. A connection the room does not know is a no-op.
func (r *Room) RemoveConnection(connID string) Removal {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connID == r.authorityConn {
		return Removal{WasAuthority: true, CloseRoom: !r.started}
	}

	p, ok := r.members[connID]
	if !ok {
		return Removal{}
	}
	delete(r.members, connID)
	for i, id := range r.joinOrder {
		if id == connID {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}

	var finalized []PollResult
	for id, poll := range r.pendingPolls {
		if result, done := r.finalizeLocked(poll); done {
			delete(r.pendingPolls, id)
			finalized = append(finalized, result)
		}
	}
	return Removal{WasMember: true, Removed: *p, Finalized: finalized}
}

// ReclaimAuthority applies the handover rules for a connection claiming to be
// the room's authority. isLive reports whether a connection is still open at
// this instant; the answer is never cached.
//
//	claimant is the current authority      -> accepted, nothing changes
//	no snapshot published yet              -> reassigned (first publisher wins)
//	current authority connection is gone   -> reassigned
//	current authority is still connected   -> rejected
//
// The liveness probe is a heuristic, not consensus: a network partition can
// open a brief dual-authority window. That is an accepted limitation.
func (r *Room) ReclaimAuthority(connID string, isLive func(string) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reclaimLocked(connID, isLive)
}

func (r *Room) reclaimLocked(connID string, isLive func(string) bool) bool {
	if connID == r.authorityConn {
		return true
	}
	if r.state == nil || r.authorityConn == "" || !isLive(r.authorityConn) {
		r.authorityConn = connID
		return true
	}
	return false
}

// PublishResult carries the fan-out set for an accepted snapshot.
type PublishResult struct {
	Accepted      bool
	AuthorityConn string
	Participants  []Participant
}

// PublishState runs authority reconciliation for the publisher and, when
// accepted, replaces the room's state wholesale. A rejected publish leaves
// the stored state untouched.
func (r *Room) PublishState(connID string, snap Snapshot, isLive func(string) bool) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.reclaimLocked(connID, isLive) {
		return PublishResult{}
	}
	r.state = snap
	return PublishResult{
		Accepted:      true,
		AuthorityConn: r.authorityConn,
		Participants:  r.participantsLocked(),
	}
}

// OpenPoll opens a collective decision. The proposer must be a current
// member; they are excluded from the required-voter set. Re-opening an
// existing proposal id replaces the poll and discards its ballots.
func (r *Room) OpenPoll(proposalID string, payload json.RawMessage, proposerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasParticipantLocked(proposerID) {
		return ErrParticipantNotFound
	}
	r.pendingPolls[proposalID] = &Poll{
		ProposalID: proposalID,
		Payload:    payload,
		ProposerID: proposerID,
		Votes:      make(map[string]bool),
		OpenedAt:   time.Now(),
	}
	return nil
}

// CastVote records one participant's choice. The required-voter set is the
// current membership minus the proposer, evaluated now rather than at open
// time, so a player who left mid-poll no longer counts. A vote on an unknown
// or already-completed proposal is reported as VoteIgnored, as is a ballot
// from the poll's own proposer.
func (r *Room) CastVote(connID, proposalID string, choice bool) (VoteUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return VoteUpdate{}, ErrGameNotStarted
	}
	p, ok := r.members[connID]
	if !ok {
		return VoteUpdate{}, ErrParticipantNotFound
	}
	poll, ok := r.pendingPolls[proposalID]
	if !ok {
		return VoteUpdate{Outcome: VoteIgnored}, nil
	}
	if p.ParticipantID == poll.ProposerID {
		// The proposer is outside the required-voter set; their ballot would
		// only inflate the count past the requirement.
		return VoteUpdate{Outcome: VoteIgnored}, nil
	}

	poll.Votes[p.ParticipantID] = choice

	if result, done := r.finalizeLocked(poll); done {
		delete(r.pendingPolls, proposalID)
		return VoteUpdate{Outcome: VoteCompleted, Result: result}, nil
	}
	return VoteUpdate{
		Outcome: VoteRecorded,
		Progress: PollProgress{
			ProposalID: proposalID,
			Count:      len(poll.Votes),
			Required:   len(r.requiredVotersLocked(poll)),
			Votes:      copyVotes(poll.Votes),
		},
	}, nil
}

// PendingPollCount returns how many polls are still open.
func (r *Room) PendingPollCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingPolls)
}

// Info is the public membership view broadcast to every connection in the
// room. Player order is join order, which the table display relies on.
type Info struct {
	RoomID        string        `json:"room_id"`
	Started       bool          `json:"started"`
	Capacity      int           `json:"capacity"`
	AuthorityConn string        `json:"authority"`
	Players       []Participant `json:"players"`
}

// Info returns the membership view for broadcast.
func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		RoomID:        r.id,
		Started:       r.started,
		Capacity:      r.capacity,
		AuthorityConn: r.authorityConn,
		Players:       r.participantsLocked(),
	}
}

// ActionContext resolves what is needed to validate and forward one player
// action: the sender's participant record, the current snapshot (nil before
// the first publish) and the authority connection.
func (r *Room) ActionContext(connID string) (Participant, Snapshot, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return Participant{}, nil, "", ErrGameNotStarted
	}
	p, ok := r.members[connID]
	if !ok {
		return Participant{}, nil, "", ErrParticipantNotFound
	}
	return *p, r.state, r.authorityConn, nil
}

func (r *Room) participantsLocked() []Participant {
	out := make([]Participant, 0, len(r.members))
	for _, connID := range r.joinOrder {
		if p, ok := r.members[connID]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (r *Room) hasParticipantLocked(participantID string) bool {
	for _, p := range r.members {
		if p.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// requiredVotersLocked is the set of participant ids that must vote for the
// poll to complete: current members minus the proposer.
func (r *Room) requiredVotersLocked(poll *Poll) []string {
	required := make([]string, 0, len(r.members))
	for _, p := range r.members {
		if p.ParticipantID != poll.ProposerID {
			required = append(required, p.ParticipantID)
		}
	}
	return required
}

// finalizeLocked checks the poll for completion and, when every required
// participant has a ballot and the count covers the requirement, builds the
// final tally. The caller removes the poll entry in the same critical
// section, which is what makes the completion broadcast fire exactly once.
func (r *Room) finalizeLocked(poll *Poll) (PollResult, bool) {
	required := r.requiredVotersLocked(poll)
	for _, id := range required {
		if _, voted := poll.Votes[id]; !voted {
			return PollResult{}, false
		}
	}
	if len(poll.Votes) < len(required) {
		return PollResult{}, false
	}
	return PollResult{
		ProposalID: poll.ProposalID,
		Payload:    poll.Payload,
		ProposerID: poll.ProposerID,
		Votes:      copyVotes(poll.Votes),
	}, true
}
