// Package core defines the shared data model of the coordination engine:
// conversation turns and threads, sessions with their accumulating context
// store, agent decisions, handoff requests and the error taxonomy used by
// the coordinator, dispatcher and agents.
package core
