// File: internal/agent/agent_test.go
package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/computer"
	"github.com/xkilldash9x/pilot-cli/internal/security"
)

var (
	_ computer.Computer  = (*fakeComputer)(nil)
	_ computer.Navigator = (*browserComputer)(nil)
)

// scriptedTransport returns one canned response per Create call, in order.
type scriptedTransport struct {
	responses []*schemas.Response
	calls     int
	seen      [][]schemas.Item
}

func (s *scriptedTransport) Create(_ context.Context, input []schemas.Item, _ []schemas.Tool) (*schemas.Response, error) {
	s.seen = append(s.seen, append([]schemas.Item(nil), input...))
	if s.calls >= len(s.responses) {
		return &schemas.Response{Output: []schemas.Item{assistantMessage("fallback")}}, nil
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func assistantMessage(text string) schemas.Item {
	return schemas.Item{
		Type:    schemas.ItemMessage,
		Role:    schemas.RoleAssistant,
		Content: schemas.Content{{Type: "output_text", Text: text}},
	}
}

func computerCall(callID string, action schemas.Action, checks ...schemas.SafetyCheck) schemas.Item {
	return schemas.Item{
		Type:                schemas.ItemComputerCall,
		CallID:              callID,
		Action:              &action,
		PendingSafetyChecks: checks,
	}
}

// fakeComputer is a plain surface with no optional capabilities. onClick,
// when set, fires at the moment the click reaches the surface.
type fakeComputer struct {
	clicks      []schemas.Point
	typed       []string
	waits       int
	screenshots int
	onClick     func()
}

func (f *fakeComputer) Environment() schemas.Environment { return schemas.EnvLinux }
func (f *fakeComputer) Dimensions() (int, int)           { return 1024, 768 }
func (f *fakeComputer) Start(context.Context) error      { return nil }
func (f *fakeComputer) Close(context.Context) error      { return nil }

func (f *fakeComputer) Screenshot(context.Context) (string, error) {
	f.screenshots++
	return "c2NyZWVuc2hvdA==", nil
}

func (f *fakeComputer) Click(_ context.Context, x, y int, _ string) error {
	if f.onClick != nil {
		f.onClick()
	}
	f.clicks = append(f.clicks, schemas.Point{X: x, Y: y})
	return nil
}
func (f *fakeComputer) DoubleClick(context.Context, int, int) error    { return nil }
func (f *fakeComputer) Scroll(context.Context, int, int, int, int) error { return nil }
func (f *fakeComputer) Type(_ context.Context, text string) error {
	f.typed = append(f.typed, text)
	return nil
}
func (f *fakeComputer) Wait(context.Context, int) error          { f.waits++; return nil }
func (f *fakeComputer) Move(context.Context, int, int) error     { return nil }
func (f *fakeComputer) KeyPress(context.Context, []string) error { return nil }
func (f *fakeComputer) Drag(context.Context, []schemas.Point) error {
	return nil
}

// browserComputer adds the Navigator capability and a browser environment.
type browserComputer struct {
	fakeComputer
	currentURL string
	gotos      []string
	onGoto     func()
}

func (b *browserComputer) Environment() schemas.Environment { return schemas.EnvBrowser }
func (b *browserComputer) Goto(_ context.Context, url string) error {
	if b.onGoto != nil {
		b.onGoto()
	}
	b.gotos = append(b.gotos, url)
	b.currentURL = url
	return nil
}
func (b *browserComputer) Back(context.Context) error    { return nil }
func (b *browserComputer) Forward(context.Context) error { return nil }
func (b *browserComputer) CurrentURL(context.Context) (string, error) {
	return b.currentURL, nil
}

func newTestAgent(transport Transport, comp computer.Computer, gate SafetyGate, blocked []string, opts Options) *Agent {
	return New(transport, comp, gate, security.New(blocked), zap.NewNop(), opts)
}

func allowAll(context.Context, string) bool { return true }

func TestRunFullTurnTerminatesOnAssistantMessage(t *testing.T) {
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{assistantMessage("Hello!")}},
	}}
	comp := &fakeComputer{}
	a := newTestAgent(transport, comp, allowAll, nil, Options{})

	input := []schemas.Item{schemas.Message(schemas.RoleUser, "hi")}
	output, err := a.RunFullTurn(context.Background(), input)
	require.NoError(t, err)

	// Exactly the one assistant item, one model call, nothing executed.
	require.Len(t, output, 1)
	assert.Equal(t, schemas.RoleAssistant, output[0].Role)
	assert.Equal(t, 1, transport.calls)
	assert.Zero(t, comp.screenshots)
}

func TestRunFullTurnClickScenario(t *testing.T) {
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{computerCall("call_1", schemas.Action{Type: schemas.ActionClick, X: 10, Y: 20})}},
		{Output: []schemas.Item{assistantMessage("Clicked it.")}},
	}}
	comp := &fakeComputer{}
	a := newTestAgent(transport, comp, allowAll, nil, Options{})

	input := []schemas.Item{schemas.Message(schemas.RoleUser, "click at 10,20")}
	output, err := a.RunFullTurn(context.Background(), input)
	require.NoError(t, err)

	// Exactly one click, at the requested coordinates.
	require.Len(t, comp.clicks, 1)
	assert.Equal(t, schemas.Point{X: 10, Y: 20}, comp.clicks[0])

	// The turn ends on the assistant message.
	require.NotEmpty(t, output)
	assert.Equal(t, schemas.RoleAssistant, output[len(output)-1].Role)

	// The call output carries the call id and the screenshot.
	var callOutput *schemas.Item
	for i := range output {
		if output[i].Type == schemas.ItemComputerCallOutput {
			callOutput = &output[i]
		}
	}
	require.NotNil(t, callOutput)
	assert.Equal(t, "call_1", callOutput.CallID)
	out, err := callOutput.ComputerOutput()
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,c2NyZWVuc2hvdA==", out.ImageURL)

	// The second model call saw the call output appended after the call.
	require.Equal(t, 2, transport.calls)
	secondInput := transport.seen[1]
	assert.Equal(t, schemas.ItemComputerCall, secondInput[len(secondInput)-2].Type)
	assert.Equal(t, schemas.ItemComputerCallOutput, secondInput[len(secondInput)-1].Type)
}

func TestFunctionCallIDPropagation(t *testing.T) {
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{{
			Type:      schemas.ItemFunctionCall,
			CallID:    "call_fn_9",
			Name:      "goto",
			Arguments: `{"url":"https://example.com"}`,
		}}},
		{Output: []schemas.Item{assistantMessage("done")}},
	}}
	comp := &browserComputer{currentURL: "about:blank"}
	a := newTestAgent(transport, comp, allowAll, nil, Options{})

	output, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com"}, comp.gotos)
	var found bool
	for _, it := range output {
		if it.Type == schemas.ItemFunctionCallOutput {
			found = true
			assert.Equal(t, "call_fn_9", it.CallID)
			assert.Equal(t, "success", it.OutputText())
		}
	}
	assert.True(t, found, "expected a function_call_output item")
}

func TestFunctionCallUnsupportedCapability(t *testing.T) {
	// open_app on a surface without AppLauncher answers "unsupported"
	// instead of failing the turn.
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{{
			Type:      schemas.ItemFunctionCall,
			CallID:    "call_app",
			Name:      "open_app",
			Arguments: `{"app_name":"Calculator"}`,
		}}},
		{Output: []schemas.Item{assistantMessage("ok")}},
	}}
	a := newTestAgent(transport, &fakeComputer{}, allowAll, nil, Options{})

	output, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "open calc")})
	require.NoError(t, err)

	var out *schemas.Item
	for i := range output {
		if output[i].Type == schemas.ItemFunctionCallOutput {
			out = &output[i]
		}
	}
	require.NotNil(t, out)
	assert.Equal(t, "call_app", out.CallID)
	assert.Equal(t, "unsupported", out.OutputText())
}

func TestSafetyVetoAbortsAfterExecution(t *testing.T) {
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{computerCall("call_risky",
			schemas.Action{Type: schemas.ActionClick, X: 1, Y: 2},
			schemas.SafetyCheck{ID: "sc_1", Message: "delete file"},
		)}},
	}}
	comp := &fakeComputer{}
	gateCalls := 0
	deny := func(_ context.Context, message string) bool {
		gateCalls++
		assert.Equal(t, "delete file", message)
		return false
	}
	a := newTestAgent(transport, comp, deny, nil, Options{})

	output, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "do it")})

	require.Error(t, err)
	assert.True(t, IsSafetyRejected(err))
	assert.Contains(t, err.Error(), "delete file")
	assert.Equal(t, 1, gateCalls)

	// The action had already executed exactly once before the veto.
	require.Len(t, comp.clicks, 1)

	// No output item was produced for the vetoed call.
	for _, it := range output {
		assert.NotEqual(t, schemas.ItemComputerCallOutput, it.Type)
	}
}

func TestStatusReportedBeforeActionExecutes(t *testing.T) {
	// The operator must see the step line before the surface is touched,
	// on both call shapes.
	var events []string
	opts := Options{OnStatus: func(u StatusUpdate) {
		events = append(events, "status: "+u.Description)
	}}

	t.Run("computer call", func(t *testing.T) {
		events = nil
		transport := &scriptedTransport{responses: []*schemas.Response{
			{Output: []schemas.Item{computerCall("call_1", schemas.Action{Type: schemas.ActionClick, X: 10, Y: 20})}},
			{Output: []schemas.Item{assistantMessage("done")}},
		}}
		comp := &fakeComputer{onClick: func() { events = append(events, "executed") }}
		a := newTestAgent(transport, comp, allowAll, nil, opts)

		_, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
		require.NoError(t, err)
		assert.Equal(t, []string{"status: Clicked at (10, 20)", "executed", "status: done"}, events)
	})

	t.Run("function call", func(t *testing.T) {
		events = nil
		transport := &scriptedTransport{responses: []*schemas.Response{
			{Output: []schemas.Item{{
				Type:      schemas.ItemFunctionCall,
				CallID:    "call_fn",
				Name:      "goto",
				Arguments: `{"url":"https://example.com"}`,
			}}},
			{Output: []schemas.Item{assistantMessage("done")}},
		}}
		comp := &browserComputer{currentURL: "about:blank"}
		comp.onGoto = func() { events = append(events, "executed") }
		a := newTestAgent(transport, comp, allowAll, nil, opts)

		_, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
		require.NoError(t, err)
		assert.Equal(t, []string{"status: Navigated to https://example.com", "executed", "status: done"}, events)
	})
}

func TestAcknowledgedChecksCarriedOnOutput(t *testing.T) {
	check := schemas.SafetyCheck{ID: "sc_2", Code: "malicious_instructions", Message: "proceed?"}
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{computerCall("call_ok", schemas.Action{Type: schemas.ActionClick, X: 1, Y: 1}, check)}},
		{Output: []schemas.Item{assistantMessage("done")}},
	}}
	a := newTestAgent(transport, &fakeComputer{}, allowAll, nil, Options{})

	output, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
	require.NoError(t, err)

	var out *schemas.Item
	for i := range output {
		if output[i].Type == schemas.ItemComputerCallOutput {
			out = &output[i]
		}
	}
	require.NotNil(t, out)
	assert.Equal(t, []schemas.SafetyCheck{check}, out.AcknowledgedSafetyChecks)
}

func TestWaitSuppressedFromStatus(t *testing.T) {
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{
			computerCall("call_w", schemas.Action{Type: schemas.ActionWait, Ms: 50}),
			computerCall("call_c", schemas.Action{Type: schemas.ActionClick, X: 3, Y: 4}),
		}},
		{Output: []schemas.Item{assistantMessage("done")}},
	}}
	comp := &fakeComputer{}

	var updates []StatusUpdate
	opts := Options{OnStatus: func(u StatusUpdate) { updates = append(updates, u) }}
	a := newTestAgent(transport, comp, allowAll, nil, opts)

	_, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
	require.NoError(t, err)

	assert.Equal(t, 1, comp.waits)

	// The wait executed but produced no status line; the click and the
	// final assistant message did.
	var descriptions []string
	for _, u := range updates {
		descriptions = append(descriptions, u.Description)
	}
	assert.Equal(t, []string{"Clicked at (3, 4)", "done"}, descriptions)
}

func TestBrowserOutputCarriesCurrentURL(t *testing.T) {
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{computerCall("call_b", schemas.Action{Type: schemas.ActionClick, X: 1, Y: 1})}},
		{Output: []schemas.Item{assistantMessage("done")}},
	}}
	comp := &browserComputer{currentURL: "https://example.com/page"}
	a := newTestAgent(transport, comp, allowAll, nil, Options{})

	output, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
	require.NoError(t, err)

	var out *schemas.Item
	for i := range output {
		if output[i].Type == schemas.ItemComputerCallOutput {
			out = &output[i]
		}
	}
	require.NotNil(t, out)
	co, err := out.ComputerOutput()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", co.CurrentURL)
}

func TestBlocklistedURLFailsTurn(t *testing.T) {
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: []schemas.Item{computerCall("call_x", schemas.Action{Type: schemas.ActionClick, X: 1, Y: 1})}},
	}}
	comp := &browserComputer{currentURL: "https://evil.example.net/login"}
	a := newTestAgent(transport, comp, allowAll, []string{"evil.example.net"}, Options{})

	_, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
	require.Error(t, err)

	var blocked *security.BlockedURLError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "evil.example.net", blocked.Domain)
}

func TestDebugModeFailsOnEmptyOutput(t *testing.T) {
	transport := &scriptedTransport{responses: []*schemas.Response{
		{Output: nil},
	}}

	t.Run("debug on", func(t *testing.T) {
		transport.calls = 0
		a := newTestAgent(transport, &fakeComputer{}, allowAll, nil, Options{Debug: true})
		_, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
		assert.ErrorIs(t, err, ErrNoModelOutput)
	})

	t.Run("debug off", func(t *testing.T) {
		transport.calls = 0
		a := newTestAgent(transport, &fakeComputer{}, allowAll, nil, Options{})
		output, err := a.RunFullTurn(context.Background(), []schemas.Item{schemas.Message(schemas.RoleUser, "go")})
		assert.NoError(t, err)
		assert.Empty(t, output)
	})
}
