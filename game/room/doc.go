// Package room holds the data model for one table of a board game: the room
// itself, its participants, open polls and the last published game-state
// snapshot, plus the process-wide Store that owns every live room.
//
// The room package implements:
//   - Membership with capacity, name-uniqueness and started-game admission rules
//   - A single authority pointer per room with explicit handover rules
//   - Collective yes/no polls that finalize exactly once
//   - Wholesale snapshot replacement with per-recipient hand redaction
//
// Concurrency:
//
// Every Room carries its own mutex and every exported method takes it, so all
// operations against one room are serialized: two joins racing for the last
// seat, or a vote racing a disconnect, resolve in whichever order they acquire
// the lock and the loser observes the post-mutation state. Distinct rooms
// share nothing and proceed fully in parallel. No method blocks waiting for
// another participant; everything completes or fails synchronously.
//
// Ownership:
//
// The Store exclusively owns all Room values. Methods hand out copies and
// value results, never interior references, so callers cannot mutate a room
// outside its lock.
package room
