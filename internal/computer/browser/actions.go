// File: internal/computer/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// Click presses the given mouse button at model-space coordinates. The
// "back" and "forward" pseudo-buttons traverse history instead, and the
// "wheel" pseudo-button scrolls by (x, y), mirroring the upstream protocol.
func (b *Browser) Click(ctx context.Context, x, y int, button string) error {
	switch button {
	case "back":
		return b.Back(ctx)
	case "forward":
		return b.Forward(ctx)
	case "wheel":
		return b.dispatchWheel(ctx, b.cfg.DisplayWidth/2, b.cfg.DisplayHeight/2, x, y)
	case "", "left":
		button = "left"
	case "right", "middle":
	default:
		b.logger.Debug("Unknown mouse button, defaulting to left.", zap.String("button", button))
		button = "left"
	}
	return b.run(ctx, 10*time.Second,
		chromedp.MouseClickXY(float64(x), float64(y), chromedp.Button(button)),
	)
}

// DoubleClick double-clicks the left button at the given coordinates.
func (b *Browser) DoubleClick(ctx context.Context, x, y int) error {
	return b.run(ctx, 10*time.Second,
		chromedp.MouseClickXY(float64(x), float64(y), chromedp.ClickCount(2)),
	)
}

// Scroll moves the cursor to (x, y) and scrolls the page by the deltas.
func (b *Browser) Scroll(ctx context.Context, x, y, scrollX, scrollY int) error {
	script := fmt.Sprintf("window.scrollBy(%d, %d)", scrollX, scrollY)
	return b.run(ctx, 10*time.Second,
		chromedp.MouseEvent(input.MouseMoved, float64(x), float64(y)),
		chromedp.Evaluate(script, nil),
	)
}

// Type inserts the text into the focused element verbatim. Raw insertion is
// deliberate: the model dictates exact text, not keystrokes.
func (b *Browser) Type(ctx context.Context, text string) error {
	timeout := 15*time.Second + time.Duration(len(text)/10)*time.Second
	return b.run(ctx, timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	}))
}

// Wait pauses for the given number of milliseconds (default one second).
func (b *Browser) Wait(ctx context.Context, ms int) error {
	if ms <= 0 {
		ms = 1000
	}
	return b.run(ctx, 0, chromedp.Sleep(time.Duration(ms)*time.Millisecond))
}

// Move moves the mouse cursor to the given coordinates.
func (b *Browser) Move(ctx context.Context, x, y int) error {
	return b.run(ctx, 10*time.Second,
		chromedp.MouseEvent(input.MouseMoved, float64(x), float64(y)),
	)
}

// KeyPress holds each canonical key token down in order, then releases in
// reverse, accumulating modifier bits so shortcuts like ctrl+c register.
func (b *Browser) KeyPress(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.run(ctx, 10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		defs := make([]keyDef, len(keys))
		for i, token := range keys {
			defs[i] = lookupKey(token)
		}

		var mods input.Modifier
		for _, def := range defs {
			down := input.DispatchKeyEvent(input.KeyDown).
				WithModifiers(mods).
				WithKey(def.Key).
				WithCode(def.Code).
				WithWindowsVirtualKeyCode(def.KeyCode).
				WithText(def.Text)
			if err := down.Do(ctx); err != nil {
				return fmt.Errorf("key down %q: %w", def.Key, err)
			}
			mods |= def.Modifier
		}
		for i := len(defs) - 1; i >= 0; i-- {
			def := defs[i]
			mods &^= def.Modifier
			up := input.DispatchKeyEvent(input.KeyUp).
				WithModifiers(mods).
				WithKey(def.Key).
				WithCode(def.Code).
				WithWindowsVirtualKeyCode(def.KeyCode)
			if err := up.Do(ctx); err != nil {
				return fmt.Errorf("key up %q: %w", def.Key, err)
			}
		}
		return nil
	}))
}

// Drag presses at the first point, moves through the rest, and releases at
// the last.
func (b *Browser) Drag(ctx context.Context, path []schemas.Point) error {
	if len(path) == 0 {
		return nil
	}
	actions := []chromedp.Action{
		chromedp.MouseEvent(input.MouseMoved, float64(path[0].X), float64(path[0].Y)),
		chromedp.MouseEvent(input.MousePressed, float64(path[0].X), float64(path[0].Y), chromedp.Button("left")),
	}
	for _, p := range path[1:] {
		actions = append(actions, chromedp.MouseEvent(input.MouseMoved, float64(p.X), float64(p.Y)))
	}
	last := path[len(path)-1]
	actions = append(actions,
		chromedp.MouseEvent(input.MouseReleased, float64(last.X), float64(last.Y), chromedp.Button("left")),
	)
	return b.run(ctx, 30*time.Second, actions...)
}

// dispatchWheel sends a raw mouse wheel event at the given position.
func (b *Browser) dispatchWheel(ctx context.Context, x, y, deltaX, deltaY int) error {
	return b.run(ctx, 10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		p := input.DispatchMouseEvent(input.MouseWheel, float64(x), float64(y)).
			WithDeltaX(float64(deltaX)).
			WithDeltaY(float64(deltaY))
		return p.Do(ctx)
	}))
}
