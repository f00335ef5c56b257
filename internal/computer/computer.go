// File: internal/computer/computer.go

// Package computer defines the capability contract every controllable
// surface implements, and the factory that selects a variant from
// configuration. The dispatcher in internal/agent is written purely against
// these interfaces.
package computer

import (
	"context"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// Computer is one live backend session exposing the canonical action
// vocabulary. All coordinates are model-space: variants whose physical
// viewport differs from the model's reference viewport own the scaling.
//
// Implementations must release every underlying resource (subprocesses,
// remote sessions, connections) in Close, even after a failed action.
type Computer interface {
	// Environment reports the surface kind the model is told about.
	Environment() schemas.Environment
	// Dimensions reports the model-space reference viewport.
	Dimensions() (width, height int)

	// Start acquires the underlying session. Close releases it; it must be
	// safe to call Close after a failed Start.
	Start(ctx context.Context) error
	Close(ctx context.Context) error

	// Screenshot returns the current viewport as base64-encoded PNG.
	Screenshot(ctx context.Context) (string, error)

	Click(ctx context.Context, x, y int, button string) error
	DoubleClick(ctx context.Context, x, y int) error
	Scroll(ctx context.Context, x, y, scrollX, scrollY int) error
	Type(ctx context.Context, text string) error
	Wait(ctx context.Context, ms int) error
	Move(ctx context.Context, x, y int) error
	// KeyPress holds the given canonical key tokens down in order and
	// releases them in reverse. Tokens missing from a variant's mapping
	// table pass through unchanged; KeyPress never fails on an unknown
	// token.
	KeyPress(ctx context.Context, keys []string) error
	Drag(ctx context.Context, path []schemas.Point) error
}

// Navigator is the optional browser-history capability. The dispatcher
// probes for it before routing goto/back/forward calls and before attaching
// the current URL to computer call outputs.
type Navigator interface {
	Goto(ctx context.Context, url string) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)
}

// AppLauncher is the optional application-launching capability of desktop
// surfaces.
type AppLauncher interface {
	OpenApp(ctx context.Context, appName string) error
}
