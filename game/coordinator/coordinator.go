package coordinator

import (
	"encoding/json"

	"github.com/google/uuid"
	log15 "github.com/inconshreveable/log15/v3"

	"github.com/tablerelay/tablerelay/game/room"
)

// Sender delivers one event to one connection. Implementations must not
// block: a slow consumer is the transport's problem, never the
// coordinator's. Sending to an unknown connection is a no-op.
type Sender interface {
	Send(connectionID, event string, data any)
}

// Registry reports whether a connection is still open. The answer is taken
// at the instant of the call and never cached across calls; it is the
// liveness probe behind authority handover.
type Registry interface {
	IsLive(connectionID string) bool
}

// Coordinator relays messages between the authoritative game master and the
// players of each room. All state lives in process memory and dies with it.
type Coordinator struct {
	store    *room.Store
	sender   Sender
	registry Registry
	log      log15.Logger

	phaseRules map[string]string // action name -> phase it is restricted to
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPhaseRule restricts an action name to a named game phase: while a
// snapshot reports a different phase, the action is rejected at the boundary.
// Rules are injected rather than built in because rule content belongs to the
// game master; the coordinator only enforces what it is told.
func WithPhaseRule(action, phase string) Option {
	return func(c *Coordinator) { c.phaseRules[action] = phase }
}

// New creates a coordinator wired to the given transport.
func New(sender Sender, registry Registry, logger log15.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      room.NewStore(),
		sender:     sender,
		registry:   registry,
		log:        logger,
		phaseRules: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRoom allocates a fresh room with the requester as its authority, not
// as a participant. It cannot fail.
func (c *Coordinator) CreateRoom(connID, displayName, color string, capacity int) string {
	id := uuid.NewString()
	c.store.Put(room.New(id, connID, displayName, color, capacity))
	c.log.Info("room created", "room", id, "authority", connID)
	return id
}

// Join admits a player and, on success, re-broadcasts the membership roster
// to everyone in the room.
func (c *Coordinator) Join(roomID, connID, displayName, color, icon string) error {
	rm, ok := c.store.Get(roomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	p, err := rm.AddParticipant(connID, displayName, color, icon)
	if err != nil {
		return err
	}
	c.log.Info("player joined", "room", roomID, "player", p.DisplayName, "participant", p.ParticipantID)
	c.broadcastMembership(rm)
	return nil
}

// StartGame flips the room into play. Everyone gets the start notification,
// then a membership broadcast.
func (c *Coordinator) StartGame(roomID, connID string) error {
	rm, ok := c.store.Get(roomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	if err := rm.Start(connID); err != nil {
		return err
	}
	c.log.Info("game started", "room", roomID)
	c.broadcastTo(rm.Connections(), EventGameStarted, GameStarted{RoomID: roomID})
	c.broadcastMembership(rm)
	return nil
}

// Disconnect handles a transport-level connection loss. It runs through the
// same per-room serialized path as every client message, so it cannot race a
// concurrent join or vote on the same room. One connection can be attached to
// several rooms, so every one of them is processed. A connection absent from
// every room is a no-op.
func (c *Coordinator) Disconnect(connID string) {
	for _, rm := range c.store.RoomsByConnection(connID) {
		c.disconnectFrom(rm, connID)
	}
}

func (c *Coordinator) disconnectFrom(rm *room.Room, connID string) {
	result := rm.RemoveConnection(connID)
	switch {
	case result.CloseRoom:
		conns := rm.Connections()
		c.store.Delete(rm.ID())
		c.broadcastTo(conns, EventRoomClosed, RoomClosed{RoomID: rm.ID()})
		c.log.Info("room closed", "room", rm.ID(), "reason", "authority left before start")
	case result.WasAuthority:
		// Started game: the authority slot dangles until a reconnecting
		// master reclaims it.
		c.log.Info("authority disconnected", "room", rm.ID(), "conn", connID)
	case result.WasMember:
		c.log.Info("player left", "room", rm.ID(), "player", result.Removed.DisplayName)
		c.broadcastMembership(rm)
		for _, tally := range result.Finalized {
			c.broadcastTo(rm.Connections(), EventVoteResult, VoteResult{RoomID: rm.ID(), PollResult: tally})
		}
	}
}

// ReclaimAuthority lets a reconnected game master take a room back. On
// acceptance the stored snapshot, if any, is replayed to the claimant alone.
func (c *Coordinator) ReclaimAuthority(roomID, connID string) bool {
	rm, ok := c.store.Get(roomID)
	if !ok {
		return false
	}
	if !rm.ReclaimAuthority(connID, c.registry.IsLive) {
		c.log.Debug("authority reclaim rejected", "room", roomID, "claimant", connID)
		return false
	}
	c.log.Info("authority reclaimed", "room", roomID, "authority", connID)
	if snap, exists := rm.StateSnapshot(); exists {
		c.sender.Send(connID, EventState, StateUpdate{RoomID: roomID, State: snap})
	}
	return true
}

// PublishState stores an authoritative snapshot and fans it out: the master
// gets the full value back, every participant gets a view with all other
// hands blanked plus their own private record, delivered individually. A
// publish that fails the authority check is dropped without a reply.
func (c *Coordinator) PublishState(roomID, connID string, snap room.Snapshot) {
	rm, ok := c.store.Get(roomID)
	if !ok {
		c.log.Debug("state publish for unknown room", "room", roomID, "from", connID)
		return
	}
	result := rm.PublishState(connID, snap, c.registry.IsLive)
	if !result.Accepted {
		c.log.Debug("stale state publish dropped", "room", roomID, "from", connID)
		return
	}
	c.sender.Send(result.AuthorityConn, EventState, StateUpdate{RoomID: roomID, State: snap})
	for _, p := range result.Participants {
		c.sender.Send(p.ConnectionID, EventState, StateUpdate{
			RoomID: roomID,
			State:  snap.Redact(p.ParticipantID),
			Hand:   snap.Hand(p.ParticipantID),
		})
	}
}

// SubmitAction validates turn and phase at the boundary and forwards the
// action verbatim to the authority connection. The payload is never
// interpreted here.
func (c *Coordinator) SubmitAction(roomID, connID, action string, payload json.RawMessage) error {
	rm, ok := c.store.Get(roomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	p, snap, authority, err := rm.ActionContext(connID)
	if err != nil {
		return err
	}
	if snap != nil {
		if turn := snap.CurrentTurn(); turn != "" && turn != p.ParticipantID {
			return room.ErrNotYourTurn
		}
		if phase, restricted := c.phaseRules[action]; restricted && snap.Phase() != phase {
			return room.ErrWrongPhase
		}
	}
	c.sender.Send(authority, EventAction, ActionForward{
		RoomID:        roomID,
		ParticipantID: p.ParticipantID,
		Action:        action,
		Payload:       payload,
	})
	return nil
}

// OpenPoll opens a collective yes/no decision and announces it to the whole
// room. A proposal from someone who is not a current member is dropped with a
// log line rather than an error reply.
func (c *Coordinator) OpenPoll(roomID, proposalID string, payload json.RawMessage, proposerID string) {
	rm, ok := c.store.Get(roomID)
	if !ok {
		c.log.Warn("poll for unknown room", "room", roomID, "proposal", proposalID)
		return
	}
	if err := rm.OpenPoll(proposalID, payload, proposerID); err != nil {
		c.log.Warn("poll rejected", "room", roomID, "proposal", proposalID, "err", err)
		return
	}
	c.broadcastTo(rm.Connections(), EventPollOpened, PollOpened{
		RoomID:     roomID,
		ProposalID: proposalID,
		Payload:    payload,
		ProposerID: proposerID,
	})
}

// CastVote records one ballot. While voters are outstanding the room gets an
// incremental progress broadcast; the ballot that completes the poll triggers
// the final tally exactly once. A vote on an unknown or finished proposal is
// a silent no-op.
func (c *Coordinator) CastVote(roomID, connID, proposalID string, choice bool) error {
	rm, ok := c.store.Get(roomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	update, err := rm.CastVote(connID, proposalID, choice)
	if err != nil {
		return err
	}
	switch update.Outcome {
	case room.VoteIgnored:
		c.log.Debug("vote on unknown poll ignored", "room", roomID, "proposal", proposalID)
	case room.VoteRecorded:
		c.broadcastTo(rm.Connections(), EventVoteProgress, VoteProgress{RoomID: roomID, PollProgress: update.Progress})
	case room.VoteCompleted:
		c.log.Info("poll completed", "room", roomID, "proposal", proposalID)
		c.broadcastTo(rm.Connections(), EventVoteResult, VoteResult{RoomID: roomID, PollResult: update.Result})
	}
	return nil
}

// RequestRoomInfo re-broadcasts the membership roster to the whole room.
func (c *Coordinator) RequestRoomInfo(roomID string) error {
	rm, ok := c.store.Get(roomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	c.broadcastMembership(rm)
	return nil
}

// RoomInfo returns the membership view without broadcasting. The REST
// surface reads through this.
func (c *Coordinator) RoomInfo(roomID string) (room.Info, error) {
	rm, ok := c.store.Get(roomID)
	if !ok {
		return room.Info{}, room.ErrRoomNotFound
	}
	return rm.Info(), nil
}

// ListRooms returns the membership view of every live room.
func (c *Coordinator) ListRooms() []room.Info {
	rooms := c.store.List()
	out := make([]room.Info, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Info())
	}
	return out
}

func (c *Coordinator) broadcastMembership(rm *room.Room) {
	c.broadcastTo(rm.Connections(), EventMembership, rm.Info())
}

func (c *Coordinator) broadcastTo(conns []string, event string, data any) {
	for _, connID := range conns {
		c.sender.Send(connID, event, data)
	}
}
