package room

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysLive(string) bool { return true }
func neverLive(string) bool  { return false }

func newTestRoom(capacity int) *Room {
	return New("room-1", "master-conn", "Host", "red", capacity)
}

// joinN admits n uniquely named players and returns them in join order.
func joinN(t *testing.T, r *Room, n int) []Participant {
	t.Helper()
	players := make([]Participant, 0, n)
	for i := 0; i < n; i++ {
		p, err := r.AddParticipant(fmt.Sprintf("conn-%d", i), fmt.Sprintf("player-%d", i), "blue", "")
		require.NoError(t, err)
		players = append(players, p)
	}
	return players
}

func TestAddParticipant(t *testing.T) {
	t.Run("successful join derives a stable identity", func(t *testing.T) {
		r := newTestRoom(4)
		p, err := r.AddParticipant("conn-a", "Alice", "green", "")
		require.NoError(t, err)

		assert.Equal(t, "conn-a", p.ConnectionID)
		assert.Equal(t, DeriveParticipantID("conn-a"), p.ParticipantID)
		assert.Equal(t, "Alice", p.DisplayName)
		assert.Equal(t, DefaultIcon, p.Icon, "empty icon falls back to the default")
	})

	t.Run("explicit icon is kept", func(t *testing.T) {
		r := newTestRoom(4)
		p, err := r.AddParticipant("conn-a", "Alice", "green", "dragon")
		require.NoError(t, err)
		assert.Equal(t, "dragon", p.Icon)
	})

	t.Run("exactly capacity joins succeed", func(t *testing.T) {
		r := newTestRoom(3)
		joinN(t, r, 3)

		_, err := r.AddParticipant("conn-late", "Latecomer", "", "")
		assert.ErrorIs(t, err, ErrRoomFull)
		assert.Len(t, r.Info().Players, 3)
	})

	t.Run("duplicate display name is rejected", func(t *testing.T) {
		r := newTestRoom(4)
		_, err := r.AddParticipant("conn-a", "Alice", "", "")
		require.NoError(t, err)

		_, err = r.AddParticipant("conn-b", "Alice", "", "")
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("empty name and room-id name are rejected", func(t *testing.T) {
		r := newTestRoom(4)
		_, err := r.AddParticipant("conn-a", "", "", "")
		assert.ErrorIs(t, err, ErrInvalidName)

		_, err = r.AddParticipant("conn-a", r.ID(), "", "")
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("joining a started game is rejected", func(t *testing.T) {
		r := newTestRoom(4)
		joinN(t, r, 2)
		require.NoError(t, r.Start("master-conn"))

		_, err := r.AddParticipant("conn-late", "Latecomer", "", "")
		assert.ErrorIs(t, err, ErrGameAlreadyStarted)
	})

	t.Run("authority connection can never become a member", func(t *testing.T) {
		r := newTestRoom(4)
		_, err := r.AddParticipant("master-conn", "Sneaky", "", "")
		assert.ErrorIs(t, err, ErrAuthorityCannotJoin)

		for _, p := range r.Info().Players {
			assert.NotEqual(t, r.AuthorityConn(), p.ConnectionID)
		}
	})

	t.Run("zero capacity falls back to the default", func(t *testing.T) {
		r := New("room-z", "master-conn", "Host", "", 0)
		joinN(t, r, DefaultCapacity)
		_, err := r.AddParticipant("conn-extra", "Extra", "", "")
		assert.ErrorIs(t, err, ErrRoomFull)
	})
}

func TestStart(t *testing.T) {
	t.Run("non-authority cannot start", func(t *testing.T) {
		r := newTestRoom(4)
		joinN(t, r, 2)
		assert.ErrorIs(t, r.Start("conn-0"), ErrNotAuthority)
		assert.False(t, r.Started())
	})

	t.Run("needs at least two players", func(t *testing.T) {
		r := newTestRoom(4)
		joinN(t, r, 1)
		assert.ErrorIs(t, r.Start("master-conn"), ErrInsufficientPlayers)
	})

	t.Run("starting twice fails", func(t *testing.T) {
		r := newTestRoom(4)
		joinN(t, r, 2)
		require.NoError(t, r.Start("master-conn"))
		assert.ErrorIs(t, r.Start("master-conn"), ErrGameAlreadyStarted)
	})
}

func TestRemoveConnection(t *testing.T) {
	t.Run("authority leaving before start closes the room", func(t *testing.T) {
		r := newTestRoom(4)
		joinN(t, r, 2)

		res := r.RemoveConnection("master-conn")
		assert.True(t, res.WasAuthority)
		assert.True(t, res.CloseRoom)
	})

	t.Run("authority leaving a started game dangles", func(t *testing.T) {
		r := newTestRoom(4)
		joinN(t, r, 2)
		require.NoError(t, r.Start("master-conn"))

		res := r.RemoveConnection("master-conn")
		assert.True(t, res.WasAuthority)
		assert.False(t, res.CloseRoom)
		assert.Equal(t, "master-conn", r.AuthorityConn(), "the pointer stays until someone reclaims it")
	})

	t.Run("member removal preserves join order", func(t *testing.T) {
		r := newTestRoom(4)
		joinN(t, r, 3)

		res := r.RemoveConnection("conn-1")
		assert.True(t, res.WasMember)
		assert.Equal(t, "player-1", res.Removed.DisplayName)

		players := r.Info().Players
		require.Len(t, players, 2)
		assert.Equal(t, "player-0", players[0].DisplayName)
		assert.Equal(t, "player-2", players[1].DisplayName)
	})

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		r := newTestRoom(4)
		res := r.RemoveConnection("conn-stranger")
		assert.False(t, res.WasAuthority)
		assert.False(t, res.WasMember)
	})
}

func TestReclaimAuthority(t *testing.T) {
	withState := func() *Room {
		r := newTestRoom(4)
		joinN(t, r, 2)
		require.NoError(t, r.Start("master-conn"))
		res := r.PublishState("master-conn", Snapshot{"round": json.RawMessage(`1`)}, alwaysLive)
		require.True(t, res.Accepted)
		return r
	}

	t.Run("current authority is always accepted", func(t *testing.T) {
		r := withState()
		assert.True(t, r.ReclaimAuthority("master-conn", neverLive))
		assert.Equal(t, "master-conn", r.AuthorityConn())
	})

	t.Run("no published state lets a new claimant bootstrap", func(t *testing.T) {
		r := newTestRoom(4)
		assert.True(t, r.ReclaimAuthority("other-conn", alwaysLive))
		assert.Equal(t, "other-conn", r.AuthorityConn())
	})

	t.Run("dead authority is superseded", func(t *testing.T) {
		r := withState()
		assert.True(t, r.ReclaimAuthority("other-conn", neverLive))
		assert.Equal(t, "other-conn", r.AuthorityConn())
	})

	t.Run("live authority is not displaced", func(t *testing.T) {
		r := withState()
		assert.False(t, r.ReclaimAuthority("other-conn", alwaysLive))
		assert.Equal(t, "master-conn", r.AuthorityConn())
	})
}

func TestPublishState(t *testing.T) {
	t.Run("accepted publish replaces state wholesale", func(t *testing.T) {
		r := newTestRoom(4)
		joinN(t, r, 2)

		first := Snapshot{"round": json.RawMessage(`1`), "extra": json.RawMessage(`true`)}
		res := r.PublishState("master-conn", first, alwaysLive)
		require.True(t, res.Accepted)
		assert.Equal(t, "master-conn", res.AuthorityConn)
		assert.Len(t, res.Participants, 2)

		second := Snapshot{"round": json.RawMessage(`2`)}
		res = r.PublishState("master-conn", second, alwaysLive)
		require.True(t, res.Accepted)

		snap, ok := r.StateSnapshot()
		require.True(t, ok)
		assert.Equal(t, second, snap)
		_, hasExtra := snap["extra"]
		assert.False(t, hasExtra, "replacement, not merge")
	})

	t.Run("rejected publish leaves state untouched", func(t *testing.T) {
		r := newTestRoom(4)
		first := Snapshot{"round": json.RawMessage(`1`)}
		require.True(t, r.PublishState("master-conn", first, alwaysLive).Accepted)

		res := r.PublishState("intruder-conn", Snapshot{"round": json.RawMessage(`99`)}, alwaysLive)
		assert.False(t, res.Accepted)

		snap, _ := r.StateSnapshot()
		assert.Equal(t, first, snap)
		assert.Equal(t, "master-conn", r.AuthorityConn())
	})

	t.Run("publish from a new connection after a real drop takes over", func(t *testing.T) {
		r := newTestRoom(4)
		require.True(t, r.PublishState("master-conn", Snapshot{"round": json.RawMessage(`1`)}, alwaysLive).Accepted)

		res := r.PublishState("reborn-conn", Snapshot{"round": json.RawMessage(`2`)}, neverLive)
		require.True(t, res.Accepted)
		assert.Equal(t, "reborn-conn", r.AuthorityConn())
	})
}

func TestPolls(t *testing.T) {
	newVotingRoom := func(t *testing.T) (*Room, []Participant) {
		r := newTestRoom(6)
		players := joinN(t, r, 4)
		require.NoError(t, r.Start("master-conn"))
		return r, players
	}

	t.Run("proposer must be a member", func(t *testing.T) {
		r, _ := newVotingRoom(t)
		err := r.OpenPoll("prop-1", nil, "nobody")
		assert.ErrorIs(t, err, ErrParticipantNotFound)
		assert.Equal(t, 0, r.PendingPollCount())
	})

	t.Run("progress counts required voters without the proposer", func(t *testing.T) {
		r, players := newVotingRoom(t)
		proposer := players[3]
		require.NoError(t, r.OpenPoll("prop-1", json.RawMessage(`{"topic":"extend"}`), proposer.ParticipantID))

		upd, err := r.CastVote(players[0].ConnectionID, "prop-1", true)
		require.NoError(t, err)
		assert.Equal(t, VoteRecorded, upd.Outcome)
		assert.Equal(t, 1, upd.Progress.Count)
		assert.Equal(t, 3, upd.Progress.Required)

		upd, err = r.CastVote(players[1].ConnectionID, "prop-1", false)
		require.NoError(t, err)
		assert.Equal(t, VoteRecorded, upd.Outcome)
		assert.Equal(t, 2, upd.Progress.Count)
	})

	t.Run("proposer's own ballot is ignored", func(t *testing.T) {
		r, players := newVotingRoom(t)
		proposer := players[3]
		require.NoError(t, r.OpenPoll("prop-1", nil, proposer.ParticipantID))

		upd, err := r.CastVote(proposer.ConnectionID, "prop-1", true)
		require.NoError(t, err)
		assert.Equal(t, VoteIgnored, upd.Outcome)

		// The three required voters complete the poll; the count never
		// exceeds the requirement.
		for _, p := range players[:2] {
			upd, err = r.CastVote(p.ConnectionID, "prop-1", true)
			require.NoError(t, err)
			assert.Equal(t, VoteRecorded, upd.Outcome)
			assert.LessOrEqual(t, upd.Progress.Count, upd.Progress.Required)
		}
		upd, err = r.CastVote(players[2].ConnectionID, "prop-1", true)
		require.NoError(t, err)
		assert.Equal(t, VoteCompleted, upd.Outcome)
		assert.Len(t, upd.Result.Votes, 3)
		assert.NotContains(t, upd.Result.Votes, proposer.ParticipantID)
	})

	t.Run("re-voting overwrites instead of double counting", func(t *testing.T) {
		r, players := newVotingRoom(t)
		proposer := players[3]
		require.NoError(t, r.OpenPoll("prop-1", nil, proposer.ParticipantID))

		_, err := r.CastVote(players[0].ConnectionID, "prop-1", true)
		require.NoError(t, err)
		upd, err := r.CastVote(players[0].ConnectionID, "prop-1", false)
		require.NoError(t, err)

		assert.Equal(t, VoteRecorded, upd.Outcome)
		assert.Equal(t, 1, upd.Progress.Count)
		assert.False(t, upd.Progress.Votes[players[0].ParticipantID])
	})

	t.Run("last required vote completes exactly once", func(t *testing.T) {
		r, players := newVotingRoom(t)
		proposer := players[3]
		payload := json.RawMessage(`{"topic":"extend"}`)
		require.NoError(t, r.OpenPoll("prop-1", payload, proposer.ParticipantID))

		for _, p := range players[:2] {
			_, err := r.CastVote(p.ConnectionID, "prop-1", true)
			require.NoError(t, err)
		}
		upd, err := r.CastVote(players[2].ConnectionID, "prop-1", false)
		require.NoError(t, err)

		assert.Equal(t, VoteCompleted, upd.Outcome)
		assert.Equal(t, payload, upd.Result.Payload)
		assert.Equal(t, proposer.ParticipantID, upd.Result.ProposerID)
		assert.Len(t, upd.Result.Votes, 3)
		assert.Equal(t, 0, r.PendingPollCount(), "completed poll is removed")

		// A vote after completion is a silent no-op, not an error.
		upd, err = r.CastVote(players[0].ConnectionID, "prop-1", true)
		require.NoError(t, err)
		assert.Equal(t, VoteIgnored, upd.Outcome)
	})

	t.Run("vote before start or from a stranger is an error", func(t *testing.T) {
		r := newTestRoom(4)
		players := joinN(t, r, 2)

		_, err := r.CastVote(players[0].ConnectionID, "prop-1", true)
		assert.ErrorIs(t, err, ErrGameNotStarted)

		require.NoError(t, r.Start("master-conn"))
		_, err = r.CastVote("conn-stranger", "prop-1", true)
		assert.ErrorIs(t, err, ErrParticipantNotFound)
	})

	t.Run("departure of the last outstanding voter finalizes the poll", func(t *testing.T) {
		r, players := newVotingRoom(t)
		proposer := players[3]
		require.NoError(t, r.OpenPoll("prop-1", nil, proposer.ParticipantID))

		for _, p := range players[:2] {
			_, err := r.CastVote(p.ConnectionID, "prop-1", true)
			require.NoError(t, err)
		}

		res := r.RemoveConnection(players[2].ConnectionID)
		require.True(t, res.WasMember)
		require.Len(t, res.Finalized, 1)
		assert.Equal(t, "prop-1", res.Finalized[0].ProposalID)
		assert.Len(t, res.Finalized[0].Votes, 2)
		assert.Equal(t, 0, r.PendingPollCount())
	})

	t.Run("departure with other voters outstanding keeps the poll open", func(t *testing.T) {
		r, players := newVotingRoom(t)
		proposer := players[3]
		require.NoError(t, r.OpenPoll("prop-1", nil, proposer.ParticipantID))

		res := r.RemoveConnection(players[2].ConnectionID)
		assert.Empty(t, res.Finalized)
		assert.Equal(t, 1, r.PendingPollCount())
	})
}

func TestInfo(t *testing.T) {
	r := newTestRoom(5)
	joinN(t, r, 3)

	info := r.Info()
	assert.Equal(t, "room-1", info.RoomID)
	assert.False(t, info.Started)
	assert.Equal(t, 5, info.Capacity)
	assert.Equal(t, "master-conn", info.AuthorityConn)
	require.Len(t, info.Players, 3)
	assert.Equal(t, "player-0", info.Players[0].DisplayName)
}

func TestActionContext(t *testing.T) {
	r := newTestRoom(4)
	players := joinN(t, r, 2)

	_, _, _, err := r.ActionContext(players[0].ConnectionID)
	assert.ErrorIs(t, err, ErrGameNotStarted)

	require.NoError(t, r.Start("master-conn"))

	p, snap, authority, err := r.ActionContext(players[0].ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, players[0].ParticipantID, p.ParticipantID)
	assert.Nil(t, snap, "no snapshot before the first publish")
	assert.Equal(t, "master-conn", authority)

	_, _, _, err = r.ActionContext("conn-stranger")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestDeriveParticipantID(t *testing.T) {
	a := DeriveParticipantID("conn-a")
	assert.Equal(t, a, DeriveParticipantID("conn-a"), "derivation is deterministic")
	assert.NotEqual(t, a, DeriveParticipantID("conn-b"))
}
