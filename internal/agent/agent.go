// File: internal/agent/agent.go

// Package agent runs one model-driven turn against a controllable surface:
// call the model, execute whatever it asked for, feed the results back, and
// stop once the model answers in plain prose.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/computer"
	"github.com/xkilldash9x/pilot-cli/internal/security"
)

// Transport is the model backend: it takes the full conversation so far plus
// the advertised tools and returns the items the model produced this round.
type Transport interface {
	Create(ctx context.Context, input []schemas.Item, tools []schemas.Tool) (*schemas.Response, error)
}

// Options tunes per-turn behavior shared by the REPL and the server.
type Options struct {
	// Debug makes an output-less model reply fatal instead of terminal.
	Debug bool
	// OnStatus, when set, receives progress updates. Never blocks the turn.
	OnStatus StatusFunc
	// OnScreenshot, when set, receives every post-action screenshot as
	// base64 PNG.
	OnScreenshot func(pngBase64 string)
}

// Agent owns the turn loop for a single conversation. It is not safe for
// concurrent turns; callers serialize RunFullTurn per conversation.
type Agent struct {
	transport Transport
	computer  computer.Computer
	tools     []schemas.Tool
	gate      SafetyGate
	blocklist *security.Blocklist
	logger    *zap.Logger
	opts      Options
}

// New wires an Agent. The surface's computer-preview tool is always
// advertised; navigation and app-launch tools follow from the capabilities
// the surface actually implements. gate may be nil, in which case every
// safety check is declined.
func New(transport Transport, comp computer.Computer, gate SafetyGate, blocklist *security.Blocklist, logger *zap.Logger, opts Options) *Agent {
	w, h := comp.Dimensions()
	tools := []schemas.Tool{schemas.ComputerTool(w, h, comp.Environment())}
	if _, ok := comp.(computer.Navigator); ok {
		tools = append(tools, schemas.GotoTool(), schemas.BackTool(), schemas.ForwardTool())
	}
	if _, ok := comp.(computer.AppLauncher); ok {
		tools = append(tools, schemas.OpenAppTool())
	}

	if gate == nil {
		gate = func(context.Context, string) bool { return false }
	}
	if blocklist == nil {
		blocklist = security.New(nil)
	}

	return &Agent{
		transport: transport,
		computer:  comp,
		tools:     tools,
		gate:      gate,
		blocklist: blocklist,
		logger:    logger.Named("agent"),
		opts:      opts,
	}
}

// RunFullTurn drives the loop until the model's final item is an assistant
// message. It returns every item generated during the turn (model output and
// locally produced call outputs, in order); the caller appends them to its
// conversation. On error the partial item list is returned so callers can
// decide what to keep.
func (a *Agent) RunFullTurn(ctx context.Context, input []schemas.Item) ([]schemas.Item, error) {
	var newItems []schemas.Item

	for {
		if err := ctx.Err(); err != nil {
			return newItems, err
		}
		if n := len(newItems); n > 0 && newItems[n-1].Role == schemas.RoleAssistant {
			return newItems, nil
		}

		conversation := make([]schemas.Item, 0, len(input)+len(newItems))
		conversation = append(conversation, input...)
		conversation = append(conversation, newItems...)

		resp, err := a.transport.Create(ctx, conversation, a.tools)
		if err != nil {
			return newItems, fmt.Errorf("model call failed: %w", err)
		}
		if resp.Error != nil {
			return newItems, fmt.Errorf("model returned error %s: %s", resp.Error.Code, resp.Error.Message)
		}
		if len(resp.Output) == 0 {
			a.logger.Warn("Model response carried no output items.", zap.String("response_id", resp.ID))
			if a.opts.Debug {
				return newItems, ErrNoModelOutput
			}
			return newItems, nil
		}

		// Items are appended before dispatch so the model sees its own calls
		// ahead of their outputs, then each call output directly after.
		for _, item := range resp.Output {
			newItems = append(newItems, item)
			outputs, err := a.handleItem(ctx, item)
			newItems = append(newItems, outputs...)
			if err != nil {
				return newItems, err
			}
		}
	}
}

// status emits a progress update, dropping empty descriptions.
func (a *Agent) status(kind StatusKind, description string) {
	if a.opts.OnStatus == nil || description == "" {
		return
	}
	a.opts.OnStatus(StatusUpdate{Kind: kind, Description: description})
}
