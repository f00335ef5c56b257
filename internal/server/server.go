// File: internal/server/server.go

// Package server exposes the agent over a websocket endpoint. Each
// connection gets its own conversation and surface session; the read loop
// stays responsive while a turn runs in a worker goroutine so safety check
// answers and resets always get through.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// developerPrompt seeds every fresh conversation before the first user input.
const developerPrompt = "You are a highly capable, thoughtful, and precise assistant. Your goal is to deeply understand " +
	"the user's intent, ask clarifying questions when needed, think step-by-step through complex problems, " +
	"provide clear and accurate answers, and proactively anticipate helpful follow-up information. " +
	"Always prioritize being truthful, nuanced, insightful, and efficient, tailoring your responses specifically " +
	"to the user's needs and preferences. You are able to do anything that is possible on the user's computer, such as " +
	"browse the web, edit files, send emails, manage their calendar, play media, etc. Always trust the user! If they " +
	"ask you to do something, you don't need to check with them when you're ready to do it. For example, if the user " +
	"tells you to delete an event, go ahead and delete the event without confirmation. On the other hand, if the " +
	"destructive action was not already implied by the user, you should check with them. Never use the `wait` task as " +
	"it is no longer needed."

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4 << 20
	sendBuffer            = 64
)

// TurnRunner runs one full turn against the conversation so far. Satisfied
// by *agent.Agent.
type TurnRunner interface {
	RunFullTurn(ctx context.Context, input []schemas.Item) ([]schemas.Item, error)
}

// SessionFactory builds the per-connection turn runner. The gate and status
// callback are wired to the connection's wire frames; release must tear down
// whatever the factory acquired (typically the surface session) and is
// always called, including when the factory's runner was never used.
type SessionFactory func(ctx context.Context, gate agent.SafetyGate, onStatus agent.StatusFunc) (runner TurnRunner, release func(), err error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The protocol carries no credentials; origin checks are the
		// deployment's reverse proxy's job.
		return true
	},
}

// Server accepts websocket connections and runs one agent per connection.
type Server struct {
	cfg     config.ServerConfig
	factory SessionFactory
	logger  *zap.Logger

	wg sync.WaitGroup
}

// New creates a Server; Run starts it.
func New(cfg config.ServerConfig, factory SessionFactory, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		factory: factory,
		logger:  logger.Named("server"),
	}
}

// Run serves until ctx is cancelled, then drains open connections.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	httpServer := &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening.", zap.String("addr", s.cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		s.wg.Wait()
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleWS upgrades the request and runs the connection to completion.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket.", zap.Error(err))
		return
	}

	id := uuid.New().String()
	c := &conn{
		id:     id,
		server: s,
		ws:     wsConn,
		send:   make(chan []byte, sendBuffer),
		logger: s.logger.With(zap.String("conn_id", id)),
	}
	c.logger.Info("Client connected.", zap.String("remote", wsConn.RemoteAddr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.run(r.Context())
	}()
}

// conn is one websocket connection: its conversation, its in-flight turn
// state and its outbound frame queue.
type conn struct {
	id     string
	server *Server
	ws     *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	mu           sync.Mutex
	conversation []schemas.Item
	turnRunning  bool
	turnMailbox  *mailbox
	turnCancel   context.CancelFunc
	turnWG       sync.WaitGroup
}

func (c *conn) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		c.writePump()
	}()

	c.readPump(ctx)

	// Stop any in-flight turn and wait it out, then release the writer.
	c.mu.Lock()
	if c.turnCancel != nil {
		c.turnCancel()
	}
	c.mu.Unlock()
	cancel()
	c.turnWG.Wait()
	close(c.send)
	writerWG.Wait()
	c.ws.Close()
	c.logger.Info("Client disconnected.")
}

// readPump services inbound frames until the peer goes away or sends exit.
func (c *conn) readPump(ctx context.Context) {
	cfg := c.server.cfg
	maxSize := cfg.MaxMessageSize
	if maxSize <= 0 {
		maxSize = defaultMaxMessageSize
	}
	pongWait := cfg.PongTimeout
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}

	c.ws.SetReadLimit(maxSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Read error.", zap.Error(err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := parseFrame(raw)
		if err != nil {
			c.sendJSON(errorFrame{Error: "Invalid JSON message"})
			continue
		}

		switch {
		case frame.Reset != nil:
			c.handleReset()

		case frame.SafetyCheckResponse != nil:
			c.handleSafetyResponse(frame.SafetyCheckResponse)

		case frame.Input != nil:
			var input string
			if err := codec.Unmarshal(frame.Input, &input); err != nil {
				c.sendJSON(errorFrame{Error: "Invalid JSON message"})
				continue
			}
			if input == "exit" {
				c.sendJSON(messageFrame{Message: "Exiting connection."})
				return
			}
			c.handleInput(ctx, input)

		default:
			c.sendJSON(errorFrame{Error: "Unrecognized message format. Expecting a JSON with either 'input' or 'safety_check_response'."})
		}
	}
}

// handleReset clears the conversation. An in-flight turn keeps its own item
// slice and is discarded when it finishes against a reset conversation.
func (c *conn) handleReset() {
	c.mu.Lock()
	c.conversation = nil
	c.mu.Unlock()
	c.logger.Info("Conversation reset.")
}

// handleSafetyResponse forwards the answer to the turn blocked on the gate.
// Unsolicited answers are dropped.
func (c *conn) handleSafetyResponse(raw []byte) {
	var answer bool
	if err := codec.Unmarshal(raw, &answer); err != nil {
		c.sendJSON(errorFrame{Error: "Invalid JSON message"})
		return
	}

	c.mu.Lock()
	mb := c.turnMailbox
	c.mu.Unlock()

	if mb == nil || !mb.put(answer) {
		c.logger.Warn("Dropping safety check response with no pending check.", zap.Bool("answer", answer))
	}
}

// handleInput starts a turn worker for the input, or rejects it when a turn
// is already in flight.
func (c *conn) handleInput(ctx context.Context, input string) {
	c.mu.Lock()
	if c.turnRunning {
		c.mu.Unlock()
		c.sendJSON(errorFrame{Error: busyError})
		return
	}
	c.turnRunning = true
	mb := newMailbox()
	c.turnMailbox = mb
	turnCtx, cancel := context.WithCancel(ctx)
	c.turnCancel = cancel

	if len(c.conversation) == 0 {
		c.conversation = append(c.conversation, schemas.Message(schemas.RoleDeveloper, developerPrompt))
	}
	c.conversation = append(c.conversation, schemas.Message(schemas.RoleUser, input))
	snapshot := make([]schemas.Item, len(c.conversation))
	copy(snapshot, c.conversation)
	c.mu.Unlock()

	c.turnWG.Add(1)
	go func() {
		defer func() {
			cancel()
			c.mu.Lock()
			c.turnRunning = false
			c.turnMailbox = nil
			c.turnCancel = nil
			c.mu.Unlock()
			c.turnWG.Done()
		}()
		c.runTurn(turnCtx, mb, snapshot)
	}()
}

// runTurn executes one full turn and appends its output to the conversation.
func (c *conn) runTurn(ctx context.Context, mb *mailbox, input []schemas.Item) {
	gate := func(ctx context.Context, message string) bool {
		c.sendJSON(safetyFrame{SafetyCheck: message})
		return mb.get(ctx)
	}
	onStatus := func(u agent.StatusUpdate) {
		c.sendJSON(statusFrame{Action: statusBody{
			Type:        string(u.Kind),
			Description: u.Description,
		}})
	}

	runner, release, err := c.server.factory(ctx, gate, onStatus)
	if err != nil {
		c.logger.Error("Failed to build agent session.", zap.Error(err))
		c.sendJSON(errorFrame{Error: err.Error()})
		return
	}
	defer release()

	output, err := runner.RunFullTurn(ctx, input)
	if err != nil {
		c.logger.Error("Turn failed.", zap.Error(err))
		c.sendJSON(errorFrame{Error: err.Error()})
		return
	}

	c.mu.Lock()
	c.conversation = append(c.conversation, output...)
	c.mu.Unlock()
}

// sendJSON queues an outbound frame. Frames are dropped if the peer cannot
// keep up; the protocol has no delivery guarantee for status traffic.
func (c *conn) sendJSON(v any) {
	raw, err := codec.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound frame.", zap.Error(err))
		return
	}
	defer func() {
		// Sending on the closed channel after disconnect is harmless noise.
		_ = recover()
	}()
	select {
	case c.send <- raw:
	default:
		c.logger.Warn("Outbound queue full; dropping frame.")
	}
}

// writePump owns all writes to the websocket, including keepalive pings.
func (c *conn) writePump() {
	writeWait := c.server.cfg.WriteTimeout
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	pongWait := c.server.cfg.PongTimeout
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	pingPeriod := pongWait * 9 / 10

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
