// File: api/schemas/actions.go
package schemas

import (
	"fmt"
	"strings"
)

// ActionType discriminates the canonical action vocabulary. The names are
// wire-stable across all surface variants.
type ActionType string

const (
	ActionClick       ActionType = "click"
	ActionDoubleClick ActionType = "double_click"
	ActionScroll      ActionType = "scroll"
	ActionTypeText    ActionType = "type"
	ActionWait        ActionType = "wait"
	ActionMove        ActionType = "move"
	ActionKeypress    ActionType = "keypress"
	ActionDrag        ActionType = "drag"
	ActionScreenshot  ActionType = "screenshot"
	ActionOpenApp     ActionType = "open_app"
	ActionGoto        ActionType = "goto"
	ActionBack        ActionType = "back"
	ActionForward     ActionType = "forward"
)

// Point is one vertex of a drag path, in model-space coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Action is one primitive operation requested by the model. Immutable once
// decoded; which fields are populated depends on Type.
type Action struct {
	Type    ActionType `json:"type"`
	X       int        `json:"x,omitempty"`
	Y       int        `json:"y,omitempty"`
	Button  string     `json:"button,omitempty"`
	ScrollX int        `json:"scroll_x,omitempty"`
	ScrollY int        `json:"scroll_y,omitempty"`
	Text    string     `json:"text,omitempty"`
	Ms      int        `json:"ms,omitempty"`
	Keys    []string   `json:"keys,omitempty"`
	Path    []Point    `json:"path,omitempty"`
	AppName string     `json:"app_name,omitempty"`
	URL     string     `json:"url,omitempty"`
}

// Describe renders a short human-readable status line for the action.
// Wait actions return the empty string: they carry no information an
// operator needs, and the callers suppress empty descriptions.
func (a Action) Describe() string {
	switch a.Type {
	case ActionClick:
		if a.Button != "" && a.Button != "left" {
			return fmt.Sprintf("Clicked at (%d, %d) with %s button", a.X, a.Y, a.Button)
		}
		return fmt.Sprintf("Clicked at (%d, %d)", a.X, a.Y)
	case ActionDoubleClick:
		return fmt.Sprintf("Double-clicked at (%d, %d)", a.X, a.Y)
	case ActionScroll:
		return fmt.Sprintf("Scrolled (%d, %d) at (%d, %d)", a.ScrollX, a.ScrollY, a.X, a.Y)
	case ActionTypeText:
		return fmt.Sprintf("Typed %q", a.Text)
	case ActionWait:
		return ""
	case ActionMove:
		return fmt.Sprintf("Moved cursor to (%d, %d)", a.X, a.Y)
	case ActionKeypress:
		return fmt.Sprintf("Pressed keys: %s", strings.Join(a.Keys, "+"))
	case ActionDrag:
		return fmt.Sprintf("Dragged through %d points", len(a.Path))
	case ActionScreenshot:
		return "Captured screenshot"
	case ActionOpenApp:
		return fmt.Sprintf("Opened app %q", a.AppName)
	case ActionGoto:
		return fmt.Sprintf("Navigated to %s", a.URL)
	case ActionBack:
		return "Navigated back"
	case ActionForward:
		return "Navigated forward"
	default:
		return string(a.Type)
	}
}
