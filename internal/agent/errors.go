// File: internal/agent/errors.go
package agent

import (
	"errors"
	"fmt"
)

// ErrNoModelOutput is returned in debug mode when the model reply carries no
// output items at all.
var ErrNoModelOutput = errors.New("no output from model")

// SafetyRejectedError aborts a turn when the operator declines a
// model-flagged safety check. The action had already executed; its output
// item is withheld from the conversation.
type SafetyRejectedError struct {
	Message string
}

func (e *SafetyRejectedError) Error() string {
	return fmt.Sprintf("safety check failed: %s. Cannot continue with unacknowledged safety checks", e.Message)
}

// IsSafetyRejected reports whether err wraps a declined safety check.
func IsSafetyRejected(err error) bool {
	var se *SafetyRejectedError
	return errors.As(err, &se)
}
