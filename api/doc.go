// Package api provides the HTTP surface for the session coordinator: a small
// read-only REST API plus the WebSocket mount.
//
// Endpoints:
//
// Rooms:
//   - GET /api/rooms - List live rooms with their membership view
//   - GET /api/rooms/{id} - Get one room's membership view
//
// Health:
//   - GET /healthz - Liveness with room and connection counts
//
// WebSocket:
//   - GET /ws - Upgrade to the bidirectional game protocol
//
// All game mutations travel over the WebSocket protocol; the REST surface
// never writes.
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "room not found"
//	}
package api
