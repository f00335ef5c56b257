// File: internal/computer/factory.go
package computer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// Factory builds a Computer from configuration. Registered by the concrete
// variant packages via the wiring package so this package stays free of
// chromedp and HTTP client imports.
type Factory func(cfg config.ComputerConfig, logger *zap.Logger) (Computer, error)

var factories = map[config.ComputerKind]Factory{}

// Register installs a factory for a surface kind. Called from variant
// package init; last registration wins.
func Register(kind config.ComputerKind, f Factory) {
	factories[kind] = f
}

// New selects and constructs the configured surface variant.
func New(cfg config.ComputerConfig, logger *zap.Logger) (Computer, error) {
	f, ok := factories[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown computer kind %q", cfg.Kind)
	}
	return f(cfg, logger)
}
