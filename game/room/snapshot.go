package room

import "encoding/json"

// Snapshot is one complete game-state value published by the authority. Each
// accepted publish replaces the previous snapshot wholesale; nothing is ever
// merged. The relay treats the contents as opaque apart from three top-level
// conventions shared with the game master:
//
//	hands         object keyed by participant id holding each player's private data
//	current_turn  participant id whose turn it is
//	phase         name of the current game phase
type Snapshot map[string]json.RawMessage

const (
	handsKey = "hands"
	turnKey  = "current_turn"
	phaseKey = "phase"
)

// CurrentTurn returns the participant id whose turn it is, or "" when the
// snapshot does not carry turn information.
func (s Snapshot) CurrentTurn() string { return s.stringField(turnKey) }

// Phase returns the game phase name, or "" when the snapshot does not carry
// one.
func (s Snapshot) Phase() string { return s.stringField(phaseKey) }

// Hand returns one participant's private record, or nil if the snapshot has
// none for them.
func (s Snapshot) Hand(participantID string) json.RawMessage {
	return s.hands()[participantID]
}

// Redact returns a copy of the snapshot with every hand nulled out except the
// recipient's own. Everything outside the hands object passes through
// untouched. This is the only view a participant ever receives; the full
// snapshot goes to the authority alone.
//
// Redaction fails closed: a hands value that is not an object keyed by
// participant id cannot be redacted per entry, so it is stripped from the
// view rather than passed through with everyone's private data intact.
func (s Snapshot) Redact(recipientID string) Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	if _, present := s[handsKey]; !present {
		return out
	}
	hands := s.hands()
	if hands == nil {
		delete(out, handsKey)
		return out
	}
	redacted := make(map[string]json.RawMessage, len(hands))
	for id, hand := range hands {
		if id == recipientID {
			redacted[id] = hand
		} else {
			redacted[id] = json.RawMessage("null")
		}
	}
	data, err := json.Marshal(redacted)
	if err != nil {
		delete(out, handsKey)
		return out
	}
	out[handsKey] = data
	return out
}

func (s Snapshot) stringField(key string) string {
	raw, ok := s[key]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

func (s Snapshot) hands() map[string]json.RawMessage {
	raw, ok := s[handsKey]
	if !ok {
		return nil
	}
	var h map[string]json.RawMessage
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil
	}
	return h
}
