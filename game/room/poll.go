package room

import (
	"encoding/json"
	"time"
)

// Poll is one open collective yes/no decision. It lives in the room's pending
// set from open until every required participant has voted, then it is
// finalized and removed in the same critical section, so it can never be both
// open and finalized.
type Poll struct {
	ProposalID string
	Payload    json.RawMessage
	ProposerID string
	Votes      map[string]bool // participant id -> choice; re-voting overwrites
	OpenedAt   time.Time
}

// PollProgress is the incremental update broadcast after a vote that did not
// finish the poll.
type PollProgress struct {
	ProposalID string          `json:"proposal_id"`
	Count      int             `json:"count"`
	Required   int             `json:"required"`
	Votes      map[string]bool `json:"votes"`
}

// PollResult is the final tally broadcast exactly once when a poll completes.
type PollResult struct {
	ProposalID string          `json:"proposal_id"`
	Payload    json.RawMessage `json:"payload"`
	ProposerID string          `json:"proposer"`
	Votes      map[string]bool `json:"votes"`
}

// VoteOutcome reports what a cast vote did to the poll.
type VoteOutcome int

const (
	// VoteIgnored means no open poll matched the proposal id. Late and
	// duplicate votes after completion land here and are deliberately not an
	// error, to tolerate network reordering.
	VoteIgnored VoteOutcome = iota
	// VoteRecorded means the ballot was stored but voters are still missing.
	VoteRecorded
	// VoteCompleted means this ballot finished the poll.
	VoteCompleted
)

// VoteUpdate is the result of casting one vote. Progress is set for
// VoteRecorded, Result for VoteCompleted.
type VoteUpdate struct {
	Outcome  VoteOutcome
	Progress PollProgress
	Result   PollResult
}

func copyVotes(votes map[string]bool) map[string]bool {
	out := make(map[string]bool, len(votes))
	for id, choice := range votes {
		out[id] = choice
	}
	return out
}
