// File: internal/computer/sandbox/sandbox.go

// Package sandbox implements the Computer contract against a remote desktop
// sandbox reached over its HTTP session API. The remote screen rarely matches
// the model-space viewport, so every coordinate is scaled before dispatch.
package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/computer"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Sandbox drives a remote desktop over the sandbox provider's REST API.
// One Sandbox owns exactly one remote session between Start and Close.
type Sandbox struct {
	cfg    config.ComputerConfig
	logger *zap.Logger
	client *http.Client

	mu        sync.Mutex
	sessionID string
	scale     scaler
	env       schemas.Environment
	isClosed  bool
}

var _ computer.Computer = (*Sandbox)(nil)

func init() {
	computer.Register(config.ComputerSandbox, func(cfg config.ComputerConfig, logger *zap.Logger) (computer.Computer, error) {
		return New(cfg, logger)
	})
}

// New creates a Sandbox surface. The remote session is not acquired until
// Start.
func New(cfg config.ComputerConfig, logger *zap.Logger) (*Sandbox, error) {
	if cfg.Sandbox.Endpoint == "" {
		return nil, fmt.Errorf("sandbox endpoint is not configured")
	}
	timeout := cfg.Sandbox.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sandbox{
		cfg:    cfg,
		logger: logger.Named("sandbox"),
		client: &http.Client{Timeout: timeout},
		env:    schemas.EnvWindows,
	}, nil
}

func (s *Sandbox) Environment() schemas.Environment { return s.env }

func (s *Sandbox) Dimensions() (int, int) {
	return s.cfg.DisplayWidth, s.cfg.DisplayHeight
}

// sessionInfo is the provider's session resource representation.
type sessionInfo struct {
	ID          string `json:"id"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Environment string `json:"environment,omitempty"`
}

// Start acquires a remote session and records the physical screen dimensions
// used for coordinate scaling.
func (s *Sandbox) Start(ctx context.Context) error {
	s.logger.Info("Connecting to remote sandbox.", zap.String("endpoint", s.cfg.Sandbox.Endpoint))

	body := map[string]any{
		"timeout_seconds": int(s.cfg.Sandbox.SessionTimeout.Seconds()),
	}
	var info sessionInfo
	if err := s.do(ctx, http.MethodPost, "/v1/sessions", body, &info); err != nil {
		return fmt.Errorf("failed to create sandbox session: %w", err)
	}
	if info.ID == "" || info.Width <= 0 || info.Height <= 0 {
		return fmt.Errorf("sandbox returned malformed session: id=%q screen=%dx%d", info.ID, info.Width, info.Height)
	}

	s.mu.Lock()
	s.sessionID = info.ID
	s.scale = scaler{
		modelW:  s.cfg.DisplayWidth,
		modelH:  s.cfg.DisplayHeight,
		screenW: info.Width,
		screenH: info.Height,
	}
	if info.Environment != "" {
		s.env = schemas.Environment(info.Environment)
	}
	s.mu.Unlock()

	s.logger.Info("Sandbox session established.",
		zap.String("session_id", info.ID),
		zap.Int("screen_width", info.Width),
		zap.Int("screen_height", info.Height),
	)
	return nil
}

// Close releases the remote session. Safe to call more than once and after a
// failed Start.
func (s *Sandbox) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed || s.sessionID == "" {
		s.isClosed = true
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	id := s.sessionID
	s.mu.Unlock()

	s.logger.Info("Releasing sandbox session.", zap.String("session_id", id))
	if err := s.do(ctx, http.MethodDelete, "/v1/sessions/"+id, nil, nil); err != nil {
		return fmt.Errorf("failed to release sandbox session: %w", err)
	}
	return nil
}

// Screenshot fetches the remote screen as base64-encoded PNG.
func (s *Sandbox) Screenshot(ctx context.Context) (string, error) {
	id, err := s.session()
	if err != nil {
		return "", err
	}
	raw, err := s.doRaw(ctx, http.MethodGet, "/v1/sessions/"+id+"/screenshot", nil)
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (s *Sandbox) Click(ctx context.Context, x, y int, button string) error {
	switch button {
	case "wheel", "middle":
		// The remote API has no wheel button.
		s.logger.Debug("Ignoring unsupported mouse button.", zap.String("button", button))
		return nil
	case "right":
	default:
		button = "left"
	}
	sx, sy := s.scaled(x, y)
	return s.action(ctx, map[string]any{
		"type": button + "_click", "x": sx, "y": sy,
	})
}

func (s *Sandbox) DoubleClick(ctx context.Context, x, y int) error {
	sx, sy := s.scaled(x, y)
	return s.action(ctx, map[string]any{"type": "double_click", "x": sx, "y": sy})
}

// Scroll is not supported by the remote machine API; it is dropped rather
// than failing the turn.
func (s *Sandbox) Scroll(ctx context.Context, x, y, scrollX, scrollY int) error {
	s.logger.Debug("Scroll is not supported on the sandbox surface; skipping.")
	return nil
}

func (s *Sandbox) Type(ctx context.Context, text string) error {
	return s.action(ctx, map[string]any{"type": "type", "text": text})
}

func (s *Sandbox) Wait(ctx context.Context, ms int) error {
	if ms <= 0 {
		ms = 1000
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sandbox) Move(ctx context.Context, x, y int) error {
	sx, sy := s.scaled(x, y)
	return s.action(ctx, map[string]any{"type": "mouse_move", "x": sx, "y": sy})
}

// KeyPress sends the tokens as one simultaneous chord, e.g. "ctrl+c".
func (s *Sandbox) KeyPress(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.action(ctx, map[string]any{"type": "key", "combo": keyCombo(keys)})
}

// Drag moves to the first point and drags to the last; the remote API has no
// multi-point drag, so intermediate points collapse.
func (s *Sandbox) Drag(ctx context.Context, path []schemas.Point) error {
	if len(path) == 0 {
		return nil
	}
	first := path[0]
	last := path[len(path)-1]
	fx, fy := s.scaled(first.X, first.Y)
	if err := s.action(ctx, map[string]any{"type": "mouse_move", "x": fx, "y": fy}); err != nil {
		return err
	}
	lx, ly := s.scaled(last.X, last.Y)
	return s.action(ctx, map[string]any{"type": "left_click_drag", "x": lx, "y": ly})
}

func (s *Sandbox) scaled(x, y int) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale.toScreen(x, y)
}

func (s *Sandbox) session() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" {
		return "", fmt.Errorf("sandbox not started")
	}
	return s.sessionID, nil
}

func (s *Sandbox) action(ctx context.Context, payload map[string]any) error {
	id, err := s.session()
	if err != nil {
		return err
	}
	if err := s.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/actions", payload, nil); err != nil {
		return fmt.Errorf("sandbox action %v failed: %w", payload["type"], err)
	}
	return nil
}

// do issues one JSON request against the provider and decodes the JSON reply
// into out when out is non-nil.
func (s *Sandbox) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := s.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := codec.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode sandbox response: %w", err)
	}
	return nil
}

func (s *Sandbox) doRaw(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := codec.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	url := strings.TrimSuffix(s.cfg.Sandbox.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := s.cfg.Sandbox.APIKey; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sandbox API returned %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
