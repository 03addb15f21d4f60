// Package coordinator brokers a turn-based board game between one
// authoritative game-master connection and the thin player clients of each
// room. It is a relay and consistency layer, not a rules engine: it owns
// membership, designates and verifies the single writer of game state per
// room, fans out per-recipient views of that state, and runs collective
// yes/no polls to completion. Payload interpretation is left entirely to the
// game master.
//
// The coordinator implements:
//   - Room creation, admission and disconnect handling
//   - Authority reconciliation with implicit handover after a real disconnect
//   - Poll opening, vote tallying and exactly-once completion broadcasts
//   - Snapshot fan-out with per-participant hand redaction
//   - Verbatim forwarding of player actions to the authority connection
//
// The transport is abstracted behind two interfaces the coordinator defines:
// Sender delivers outbound events to a connection and Registry answers
// point-in-time connection liveness. The WebSocket hub implements both.
//
// Error Handling:
//
// Validation failures are returned synchronously to the originating
// connection and never mutate shared state. A state publish from a superseded
// authority is dropped with a debug log rather than an error reply, so a
// reconnecting-but-superseded client is not flooded with rejections. A late
// vote on a completed poll is silently ignored. No failure is fatal to the
// process or visible to other rooms.
package coordinator
