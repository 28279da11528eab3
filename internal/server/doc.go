// Package server provides the HTTP/SSE transport observers use to create,
// drive and watch discussion sessions.
//
// # Core Components
//
//   - HTTP Server: chi-based router with request ID, logging, recovery,
//     CORS and rate-limit middleware
//   - Session Management: session CRUD and lifecycle control delegated to
//     a sessionmgr.Manager
//   - Event Streaming: Server-Sent Events for real-time session updates
//
// # API Endpoints
//
//   - /session/*: session CRUD, lifecycle control, speaking, intents,
//     moderator intervention, outline/judge/summary generation
//   - /session/{sessionID}/events: SSE stream of a session's world events
//   - /scenario/validate: validate a scenario document without creating
//     a session from it
//
// # Observer Command Protocol
//
// Every command endpoint under /session/{sessionID}/ replies with a
// {success, ...} envelope on success, or {success:false, error} when the
// command itself could not be carried out (unknown session, capability
// violation, invalid arguments). This is distinct from an HTTP-level
// error (malformed JSON, unknown route), which uses the {error: {code,
// message}} envelope and a non-2xx status instead.
//
// # SSE Implementation
//
// The server includes a custom Server-Sent Events implementation: on
// connect it sends a state_update (and a full_state replay if requested),
// then streams a world_event plus a refreshed state_update for every
// event the session appends, transient speech activity as agent:thinking
// and agent:chunk, and a simulation_ended once the session reaches a
// terminal phase.
package server
