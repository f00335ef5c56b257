// File: internal/agent/status.go
package agent

import "context"

// StatusKind classifies a status update.
type StatusKind string

const (
	StatusMessage StatusKind = "message"
	StatusAction  StatusKind = "action"
)

// StatusUpdate is a fire-and-forget progress event: either an assistant
// message or a one-line description of an executed action.
type StatusUpdate struct {
	Kind        StatusKind
	Description string
}

// StatusFunc receives status updates during a turn. Implementations must not
// block; the turn does not wait on them.
type StatusFunc func(StatusUpdate)

// SafetyGate asks a human to acknowledge a model-flagged safety check.
// Returning false aborts the turn. The context bounds how long the gate may
// wait for an answer.
type SafetyGate func(ctx context.Context, message string) bool
