// File: api/schemas/items.go
package schemas

import (
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Role identifies the author of a message item.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ItemType discriminates the conversation item union.
type ItemType string

const (
	ItemMessage            ItemType = "message"
	ItemFunctionCall       ItemType = "function_call"
	ItemFunctionCallOutput ItemType = "function_call_output"
	ItemComputerCall       ItemType = "computer_call"
	ItemComputerCallOutput ItemType = "computer_call_output"
	ItemReasoning          ItemType = "reasoning"
)

// Environment tags the kind of surface the model is operating.
type Environment string

const (
	EnvMac     Environment = "mac"
	EnvWindows Environment = "windows"
	EnvLinux   Environment = "linux"
	EnvBrowser Environment = "browser"
)

// SafetyCheck is a model-flagged warning that must be acknowledged by a human
// before the carrying computer call may produce an output item.
type SafetyCheck struct {
	ID      string `json:"id,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ContentPart is one element of a message item's content list.
type ContentPart struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// Content models message content, which travels either as a bare string
// (client-built user input) or as a list of typed parts (model output).
type Content []ContentPart

func (c *Content) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := codec.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Content{{Text: s}}
		return nil
	}
	var parts []ContentPart
	if err := codec.Unmarshal(b, &parts); err != nil {
		return err
	}
	*c = parts
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	// A single untyped part round-trips to the bare-string form.
	if len(c) == 1 && c[0].Type == "" {
		return codec.Marshal(c[0].Text)
	}
	return codec.Marshal([]ContentPart(c))
}

// Text returns the first textual content of a message item.
func (c Content) Text() string {
	for _, p := range c {
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// ComputerOutput is the output payload of a computer_call_output item: the
// post-action screenshot and, on browser surfaces, the current URL.
type ComputerOutput struct {
	Type       string `json:"type"`
	ImageURL   string `json:"image_url"`
	CurrentURL string `json:"current_url,omitempty"`
}

// Item is one entry of the append-only conversation list exchanged with the
// model. It is a tagged union: which fields are meaningful depends on Type
// (or, for plain input messages, on Role alone).
//
// Items decoded from the wire keep their original raw bytes and marshal back
// byte for byte, so model-produced items (including shapes this code does not
// model, e.g. reasoning summaries) survive the round trip untouched.
type Item struct {
	Type    ItemType `json:"type,omitempty"`
	ID      string   `json:"id,omitempty"`
	Status  string   `json:"status,omitempty"`
	Role    Role     `json:"role,omitempty"`
	Content Content  `json:"content,omitempty"`

	// Function and computer calls.
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`

	// Computer calls.
	Action                   *Action       `json:"action,omitempty"`
	PendingSafetyChecks      []SafetyCheck `json:"pending_safety_checks,omitempty"`
	AcknowledgedSafetyChecks []SafetyCheck `json:"acknowledged_safety_checks,omitempty"`

	// Output carries the call result: a JSON string for function call
	// outputs, a ComputerOutput object for computer call outputs.
	Output json.RawMessage `json:"output,omitempty"`

	raw json.RawMessage
}

type itemAlias Item

func (it *Item) UnmarshalJSON(b []byte) error {
	var a itemAlias
	if err := codec.Unmarshal(b, &a); err != nil {
		return err
	}
	*it = Item(a)
	it.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (it Item) MarshalJSON() ([]byte, error) {
	if it.raw != nil {
		return it.raw, nil
	}
	return codec.Marshal(itemAlias(it))
}

// Message builds a plain input message item.
func Message(role Role, text string) Item {
	return Item{Role: role, Content: Content{{Text: text}}}
}

// NewFunctionCallOutput builds the output item answering a function call.
func NewFunctionCallOutput(callID, output string) Item {
	quoted, _ := codec.Marshal(output)
	return Item{
		Type:   ItemFunctionCallOutput,
		CallID: callID,
		Output: quoted,
	}
}

// NewComputerCallOutput builds the output item answering a computer call.
func NewComputerCallOutput(callID string, out ComputerOutput, acknowledged []SafetyCheck) (Item, error) {
	payload, err := codec.Marshal(out)
	if err != nil {
		return Item{}, fmt.Errorf("marshal computer output: %w", err)
	}
	return Item{
		Type:                     ItemComputerCallOutput,
		CallID:                   callID,
		AcknowledgedSafetyChecks: acknowledged,
		Output:                   payload,
	}, nil
}

// OutputText decodes the output of a function_call_output item.
func (it Item) OutputText() string {
	var s string
	if err := codec.Unmarshal(it.Output, &s); err != nil {
		return ""
	}
	return s
}

// ComputerOutput decodes the output of a computer_call_output item.
func (it Item) ComputerOutput() (ComputerOutput, error) {
	var out ComputerOutput
	if err := codec.Unmarshal(it.Output, &out); err != nil {
		return ComputerOutput{}, fmt.Errorf("decode computer output: %w", err)
	}
	return out, nil
}

// Response is the model transport's reply: the ordered items the model
// produced this round.
type Response struct {
	ID     string         `json:"id,omitempty"`
	Output []Item         `json:"output"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is the transport-level error object, when present.
type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
