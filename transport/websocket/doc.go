// Package websocket provides the WebSocket transport for the session
// coordinator.
//
// The websocket package implements:
//   - Persistent bidirectional connections, one per client
//   - A hub that owns the live connection table
//   - Connection liveness answers for authority reconciliation
//   - Decoding and routing of the client wire protocol
//
// Architecture:
//
// The package uses a hub-and-spoke model. The Hub holds every open
// connection keyed by a server-assigned connection id; each connection runs a
// dedicated read and write goroutine. The Hub doubles as the coordinator's
// Sender (outbound delivery) and Registry (point-in-time liveness), and the
// Dispatcher turns inbound frames into coordinator calls.
//
// Message Protocol:
//
// Frames are JSON in both directions:
//   - Incoming: {"type": "join", "room_id": "...", "name": "Alice", ...}
//   - Outgoing: {"event": "membership", "data": {...}}
//
// Connection Lifecycle:
//
// 1. Client connects to /ws and is assigned a connection id
// 2. Client sends operations; direct replies and broadcasts flow back
// 3. Ping/pong deadlines detect dead peers
// 4. Disconnection funnels into the coordinator's removal path
//
// Concurrency:
//
// Outbound sends never block: each connection has a buffered send channel and
// a peer that stops draining it is dropped. Inbound frames for one connection
// are handled sequentially by its read goroutine.
package websocket
