// Package agent implements each participant's private AgentContext: a
// bounded window of events plus a rolling summary of whatever has been
// evicted from that window, rendered into model messages through
// BuildMessages. Pool owns one Context per (session, agent) pair for the
// lifetime of a session.
package agent
