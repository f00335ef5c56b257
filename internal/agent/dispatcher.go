// File: internal/agent/dispatcher.go
package agent

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/computer"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// functionCallArgs covers every function-style tool this agent advertises.
type functionCallArgs struct {
	URL     string `json:"url,omitempty"`
	AppName string `json:"app_name,omitempty"`
}

// handleItem dispatches one model-produced item. Call items return the
// output item that answers them; anything else returns no items.
func (a *Agent) handleItem(ctx context.Context, item schemas.Item) ([]schemas.Item, error) {
	switch {
	case item.Type == schemas.ItemMessage || (item.Type == "" && item.Role != ""):
		if text := item.Content.Text(); text != "" {
			a.status(StatusMessage, text)
		}
		return nil, nil

	case item.Type == schemas.ItemFunctionCall:
		return a.handleFunctionCall(ctx, item)

	case item.Type == schemas.ItemComputerCall:
		return a.handleComputerCall(ctx, item)
	}

	// Reasoning items and any future shapes need no local handling; they
	// round-trip through the conversation untouched.
	return nil, nil
}

// handleFunctionCall routes a function-style tool call onto the surface's
// optional capabilities. A call the surface cannot serve answers
// "unsupported" rather than failing the turn, so the model can re-plan.
func (a *Agent) handleFunctionCall(ctx context.Context, item schemas.Item) ([]schemas.Item, error) {
	var args functionCallArgs
	if item.Arguments != "" {
		if err := codec.UnmarshalFromString(item.Arguments, &args); err != nil {
			return nil, fmt.Errorf("malformed arguments for function %q: %w", item.Name, err)
		}
	}

	// Report the step before touching the surface so an operator sees what
	// is about to happen, not what already did.
	a.status(StatusAction, a.describeFunctionCall(item.Name, args))

	var (
		err       error
		supported = true
	)
	switch item.Name {
	case "goto":
		if nav, ok := a.computer.(computer.Navigator); ok {
			err = nav.Goto(ctx, args.URL)
		} else {
			supported = false
		}
	case "back":
		if nav, ok := a.computer.(computer.Navigator); ok {
			err = nav.Back(ctx)
		} else {
			supported = false
		}
	case "forward":
		if nav, ok := a.computer.(computer.Navigator); ok {
			err = nav.Forward(ctx)
		} else {
			supported = false
		}
	case "open_app":
		if launcher, ok := a.computer.(computer.AppLauncher); ok {
			err = launcher.OpenApp(ctx, args.AppName)
		} else {
			supported = false
		}
	default:
		supported = false
	}
	if err != nil {
		return nil, fmt.Errorf("function %q failed: %w", item.Name, err)
	}

	output := "success"
	if !supported {
		a.logger.Warn("Model called a function the surface does not support.",
			zap.String("function", item.Name))
		output = "unsupported"
	}
	return []schemas.Item{schemas.NewFunctionCallOutput(item.CallID, output)}, nil
}

func (a *Agent) describeFunctionCall(name string, args functionCallArgs) string {
	switch name {
	case "goto":
		return schemas.Action{Type: schemas.ActionGoto, URL: args.URL}.Describe()
	case "back":
		return schemas.Action{Type: schemas.ActionBack}.Describe()
	case "forward":
		return schemas.Action{Type: schemas.ActionForward}.Describe()
	case "open_app":
		return schemas.Action{Type: schemas.ActionOpenApp, AppName: args.AppName}.Describe()
	}
	return name
}

// handleComputerCall executes the action, captures the post-action
// screenshot, then runs the safety gate. The ordering is deliberate: the
// upstream protocol executes first and confirms after, so a declined check
// aborts the turn with the action already performed and no output item
// appended.
func (a *Agent) handleComputerCall(ctx context.Context, item schemas.Item) ([]schemas.Item, error) {
	if item.Action == nil {
		return nil, fmt.Errorf("computer call %q carries no action", item.CallID)
	}
	action := *item.Action

	// Report the step before executing it; a hung or failing action must
	// still have announced itself. Wait actions describe to the empty
	// string and stay suppressed.
	a.status(StatusAction, action.Describe())

	if err := a.executeAction(ctx, action); err != nil {
		return nil, fmt.Errorf("action %s failed: %w", action.Type, err)
	}

	screenshot, err := a.computer.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	if a.opts.OnScreenshot != nil {
		a.opts.OnScreenshot(screenshot)
	}

	for _, check := range item.PendingSafetyChecks {
		if !a.gate(ctx, check.Message) {
			return nil, &SafetyRejectedError{Message: check.Message}
		}
	}

	out := schemas.ComputerOutput{
		Type:     "input_image",
		ImageURL: "data:image/png;base64," + screenshot,
	}
	if a.computer.Environment() == schemas.EnvBrowser {
		if nav, ok := a.computer.(computer.Navigator); ok {
			currentURL, err := nav.CurrentURL(ctx)
			if err != nil {
				return nil, err
			}
			if err := a.blocklist.Check(currentURL); err != nil {
				return nil, err
			}
			out.CurrentURL = currentURL
		}
	}

	outputItem, err := schemas.NewComputerCallOutput(item.CallID, out, item.PendingSafetyChecks)
	if err != nil {
		return nil, err
	}
	return []schemas.Item{outputItem}, nil
}

// executeAction maps the canonical action vocabulary onto the surface.
// Unknown action types fail loudly; silently skipping one would desynchronize
// the model's view of the screen.
func (a *Agent) executeAction(ctx context.Context, action schemas.Action) error {
	switch action.Type {
	case schemas.ActionClick:
		return a.computer.Click(ctx, action.X, action.Y, action.Button)
	case schemas.ActionDoubleClick:
		return a.computer.DoubleClick(ctx, action.X, action.Y)
	case schemas.ActionScroll:
		return a.computer.Scroll(ctx, action.X, action.Y, action.ScrollX, action.ScrollY)
	case schemas.ActionTypeText:
		return a.computer.Type(ctx, action.Text)
	case schemas.ActionWait:
		return a.computer.Wait(ctx, action.Ms)
	case schemas.ActionMove:
		return a.computer.Move(ctx, action.X, action.Y)
	case schemas.ActionKeypress:
		return a.computer.KeyPress(ctx, action.Keys)
	case schemas.ActionDrag:
		return a.computer.Drag(ctx, action.Path)
	case schemas.ActionScreenshot:
		// The post-action screenshot in handleComputerCall is the answer.
		return nil
	case schemas.ActionGoto:
		if nav, ok := a.computer.(computer.Navigator); ok {
			return nav.Goto(ctx, action.URL)
		}
		return fmt.Errorf("surface does not support navigation")
	case schemas.ActionBack:
		if nav, ok := a.computer.(computer.Navigator); ok {
			return nav.Back(ctx)
		}
		return fmt.Errorf("surface does not support navigation")
	case schemas.ActionForward:
		if nav, ok := a.computer.(computer.Navigator); ok {
			return nav.Forward(ctx)
		}
		return fmt.Errorf("surface does not support navigation")
	case schemas.ActionOpenApp:
		if launcher, ok := a.computer.(computer.AppLauncher); ok {
			return launcher.OpenApp(ctx, action.AppName)
		}
		return fmt.Errorf("surface does not support launching apps")
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}
