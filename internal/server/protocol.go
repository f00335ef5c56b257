// File: internal/server/protocol.go
package server

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// busyError is the exact reply for an input frame that arrives while a turn
// is still running. Clients match on this string.
const busyError = "Agent is processing a previous request. Please wait."

// inboundFrame is one client message. Which field is present decides the
// frame kind; when several are present they are serviced in the order
// reset, safety_check_response, input.
type inboundFrame struct {
	Reset               json.RawMessage `json:"reset,omitempty"`
	SafetyCheckResponse json.RawMessage `json:"safety_check_response,omitempty"`
	Input               json.RawMessage `json:"input,omitempty"`
}

func parseFrame(raw []byte) (inboundFrame, error) {
	var f inboundFrame
	err := codec.Unmarshal(raw, &f)
	return f, err
}

// Outbound frame shapes.

type statusBody struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type statusFrame struct {
	Action statusBody `json:"action"`
}

type safetyFrame struct {
	SafetyCheck string `json:"safety_check"`
}

type errorFrame struct {
	Error string `json:"error"`
}

type messageFrame struct {
	Message string `json:"message"`
}
