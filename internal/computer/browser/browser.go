// File: internal/computer/browser/browser.go

// Package browser implements the Computer contract on a locally launched
// Chrome instance driven over the DevTools protocol.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/computer"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// Browser drives a local Chrome over CDP. The viewport is pinned to the
// model-space dimensions, so no coordinate scaling is required.
type Browser struct {
	id     string
	cfg    config.ComputerConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	isClosed bool
}

var (
	_ computer.Computer  = (*Browser)(nil)
	_ computer.Navigator = (*Browser)(nil)
)

func init() {
	computer.Register(config.ComputerBrowser, func(cfg config.ComputerConfig, logger *zap.Logger) (computer.Computer, error) {
		return New(cfg, logger), nil
	})
}

// New creates a Browser surface. Chrome is not launched until Start.
func New(cfg config.ComputerConfig, logger *zap.Logger) *Browser {
	id := uuid.New().String()
	return &Browser{
		id:     id,
		cfg:    cfg,
		logger: logger.Named("browser").With(zap.String("surface_id", id)),
	}
}

func (b *Browser) Environment() schemas.Environment { return schemas.EnvBrowser }

func (b *Browser) Dimensions() (int, int) {
	return b.cfg.DisplayWidth, b.cfg.DisplayHeight
}

// execOptions translates the configuration into chromedp allocator options.
func (b *Browser) execOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(b.cfg.DisplayWidth, b.cfg.DisplayHeight),
	)

	if b.cfg.Browser.Headless {
		opts = append(opts, chromedp.Headless, chromedp.DisableGPU)
	}

	// Additional flags from the config file's 'args' slice.
	for _, arg := range b.cfg.Browser.Args {
		arg = strings.TrimPrefix(arg, "--")
		if parts := strings.SplitN(arg, "=", 2); len(parts) == 2 {
			opts = append(opts, chromedp.Flag(parts[0], parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// Start launches Chrome, connects CDP and navigates to the start URL.
func (b *Browser) Start(ctx context.Context) error {
	b.logger.Info("Launching browser.",
		zap.Bool("headless", b.cfg.Browser.Headless),
		zap.Int("width", b.cfg.DisplayWidth),
		zap.Int("height", b.cfg.DisplayHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.execOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel

	// Establish the target connection before any action runs against it.
	if err := chromedp.Run(browserCtx); err != nil {
		b.release()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	if url := b.cfg.Browser.StartURL; url != "" {
		if err := b.Goto(ctx, url); err != nil {
			b.release()
			return err
		}
	}
	return nil
}

// Close tears down the browser process. Safe to call more than once.
func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed {
		return nil
	}
	b.isClosed = true
	b.logger.Info("Closing browser.")
	b.release()
	return nil
}

func (b *Browser) release() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// run executes chromedp actions against the browser target, bounded by both
// the caller's context and a per-action timeout.
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if b.browserCtx == nil {
		return fmt.Errorf("browser not started")
	}
	opCtx, cancel := combineContext(b.browserCtx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		opCtx, tcancel = context.WithTimeout(opCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(opCtx, actions...)
}

// Screenshot captures the current viewport as base64-encoded PNG.
func (b *Browser) Screenshot(ctx context.Context) (string, error) {
	var buf []byte
	if err := b.run(ctx, 30*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Goto loads the specified URL.
func (b *Browser) Goto(ctx context.Context, url string) error {
	b.logger.Debug("Navigating to URL.", zap.String("url", url))

	navTimeout := b.cfg.Browser.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	if err := b.run(ctx, navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (b *Browser) Back(ctx context.Context) error {
	return b.run(ctx, 30*time.Second, chromedp.NavigateBack())
}

func (b *Browser) Forward(ctx context.Context) error {
	return b.run(ctx, 30*time.Second, chromedp.NavigateForward())
}

// CurrentURL reports the top frame's location.
func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := b.run(ctx, 10*time.Second, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read current URL: %w", err)
	}
	return url, nil
}

// combineContext derives a context cancelled when either parent is done.
// The session context carries the CDP target; the operational context
// carries the caller's deadline.
func combineContext(sessionCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(sessionCtx)
	stop := context.AfterFunc(opCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
