// File: internal/server/server_test.go
package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubRunner lets a test script the turn body.
type stubRunner struct {
	run func(ctx context.Context, input []schemas.Item) ([]schemas.Item, error)
}

func (s *stubRunner) RunFullTurn(ctx context.Context, input []schemas.Item) ([]schemas.Item, error) {
	return s.run(ctx, input)
}

// testHarness wires a Server around a scripted factory and dials it.
type testHarness struct {
	server *Server
	ws     *websocket.Conn
}

func newHarness(t *testing.T, factory SessionFactory) *testHarness {
	t.Helper()

	srv := New(config.ServerConfig{
		WriteTimeout: 2 * time.Second,
		PongTimeout:  5 * time.Second,
	}, factory, zap.NewNop())

	httpServer := httptest.NewServer(http.HandlerFunc(srv.handleWS))

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() {
		ws.Close()
		srv.wg.Wait()
		httpServer.Close()
	})
	return &testHarness{server: srv, ws: ws}
}

func (h *testHarness) send(t *testing.T, frame string) {
	t.Helper()
	require.NoError(t, h.ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// expect reads frames until one contains the wanted key, failing on timeout.
func (h *testHarness) expect(t *testing.T, key string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.ws.SetReadDeadline(deadline)
		_, raw, err := h.ws.ReadMessage()
		require.NoError(t, err, "waiting for frame with %q", key)

		var frame map[string]any
		require.NoError(t, codec.Unmarshal(raw, &frame))
		if _, ok := frame[key]; ok {
			return frame
		}
	}
}

func TestServerRejectsConcurrentTurn(t *testing.T) {
	release := make(chan struct{})
	factory := func(ctx context.Context, gate agent.SafetyGate, onStatus agent.StatusFunc) (TurnRunner, func(), error) {
		runner := &stubRunner{run: func(ctx context.Context, _ []schemas.Item) ([]schemas.Item, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, nil
		}}
		return runner, func() {}, nil
	}
	h := newHarness(t, factory)

	h.send(t, `{"input": "open calculator"}`)
	// Give the first turn a moment to start before contending.
	time.Sleep(50 * time.Millisecond)
	h.send(t, `{"input": "second request"}`)

	frame := h.expect(t, "error")
	assert.Equal(t, "Agent is processing a previous request. Please wait.", frame["error"])

	// The connection is still open and serviceable.
	close(release)
	h.send(t, `{"input": "exit"}`)
	frame = h.expect(t, "message")
	assert.Equal(t, "Exiting connection.", frame["message"])
}

func TestServerSafetyCheckRoundTrip(t *testing.T) {
	gateResult := make(chan bool, 1)
	factory := func(ctx context.Context, gate agent.SafetyGate, onStatus agent.StatusFunc) (TurnRunner, func(), error) {
		runner := &stubRunner{run: func(ctx context.Context, _ []schemas.Item) ([]schemas.Item, error) {
			gateResult <- gate(ctx, "delete all files")
			onStatus(agent.StatusUpdate{Kind: agent.StatusMessage, Description: "done"})
			return []schemas.Item{schemas.Message(schemas.RoleAssistant, "done")}, nil
		}}
		return runner, func() {}, nil
	}
	h := newHarness(t, factory)

	h.send(t, `{"input": "clean up my disk"}`)

	frame := h.expect(t, "safety_check")
	assert.Equal(t, "delete all files", frame["safety_check"])

	h.send(t, `{"safety_check_response": true}`)

	select {
	case acked := <-gateResult:
		assert.True(t, acked)
	case <-time.After(5 * time.Second):
		t.Fatal("gate never unblocked")
	}

	frame = h.expect(t, "action")
	action, ok := frame["action"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "done", action["description"])
}

func TestServerInjectsDeveloperPromptOncePerConversation(t *testing.T) {
	inputs := make(chan []schemas.Item, 4)
	factory := func(ctx context.Context, gate agent.SafetyGate, onStatus agent.StatusFunc) (TurnRunner, func(), error) {
		runner := &stubRunner{run: func(ctx context.Context, input []schemas.Item) ([]schemas.Item, error) {
			inputs <- input
			return []schemas.Item{schemas.Message(schemas.RoleAssistant, "ok")}, nil
		}}
		return runner, func() {}, nil
	}
	h := newHarness(t, factory)

	h.send(t, `{"input": "first"}`)
	first := <-inputs
	require.Len(t, first, 2)
	assert.Equal(t, schemas.RoleDeveloper, first[0].Role)
	assert.Equal(t, "first", first[1].Content.Text())

	h.send(t, `{"input": "second"}`)
	second := <-inputs
	// developer + first + assistant + second
	require.Len(t, second, 4)
	assert.Equal(t, "second", second[3].Content.Text())

	// Reset clears the conversation; the prompt is injected again.
	h.send(t, `{"reset": true}`)
	h.send(t, `{"input": "fresh start"}`)
	third := <-inputs
	require.Len(t, third, 2)
	assert.Equal(t, schemas.RoleDeveloper, third[0].Role)
	assert.Equal(t, "fresh start", third[1].Content.Text())
}

func TestServerMalformedFramesKeepConnectionOpen(t *testing.T) {
	factory := func(ctx context.Context, gate agent.SafetyGate, onStatus agent.StatusFunc) (TurnRunner, func(), error) {
		runner := &stubRunner{run: func(ctx context.Context, _ []schemas.Item) ([]schemas.Item, error) {
			return []schemas.Item{schemas.Message(schemas.RoleAssistant, "ok")}, nil
		}}
		return runner, func() {}, nil
	}
	h := newHarness(t, factory)

	h.send(t, `this is not json`)
	frame := h.expect(t, "error")
	assert.Equal(t, "Invalid JSON message", frame["error"])

	h.send(t, `{"unknown_key": 1}`)
	frame = h.expect(t, "error")
	assert.Contains(t, frame["error"], "Unrecognized message format")

	// Still alive.
	h.send(t, `{"input": "exit"}`)
	frame = h.expect(t, "message")
	assert.Equal(t, "Exiting connection.", frame["message"])
}

func TestServerReportsTurnError(t *testing.T) {
	factory := func(ctx context.Context, gate agent.SafetyGate, onStatus agent.StatusFunc) (TurnRunner, func(), error) {
		runner := &stubRunner{run: func(ctx context.Context, _ []schemas.Item) ([]schemas.Item, error) {
			return nil, &agent.SafetyRejectedError{Message: "wipe disk"}
		}}
		return runner, func() {}, nil
	}
	h := newHarness(t, factory)

	h.send(t, `{"input": "do something dangerous"}`)
	frame := h.expect(t, "error")
	assert.Contains(t, frame["error"], "wipe disk")
}

func TestMailboxDropsUnsolicitedAnswers(t *testing.T) {
	mb := newMailbox()
	assert.True(t, mb.put(true))
	// Slot already full: the second answer is dropped.
	assert.False(t, mb.put(false))

	ctx := context.Background()
	assert.True(t, mb.get(ctx))

	// A cancelled context reads as declined.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, mb.get(cancelled))
}
