// File: cmd/serve.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/computer"
	_ "github.com/xkilldash9x/pilot-cli/internal/computer/browser"
	_ "github.com/xkilldash9x/pilot-cli/internal/computer/sandbox"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/oai"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/security"
	"github.com/xkilldash9x/pilot-cli/internal/server"
)

// newServeCmd creates and configures the `serve` command: the websocket
// front end, one agent session per connection.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over a websocket endpoint",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlag("computer.kind", cmd.Flags().Lookup("computer"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := config.Get()
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}

			transport, err := oai.New(cfg.Model, logger)
			if err != nil {
				return err
			}
			blocklist := security.New(cfg.Safety.BlockedDomains)

			// Each turn gets a fresh surface session so one misbehaving
			// connection cannot wedge the others.
			factory := func(ctx context.Context, gate agent.SafetyGate, onStatus agent.StatusFunc) (server.TurnRunner, func(), error) {
				if cfg.Safety.AutoAcknowledge {
					gate = func(context.Context, string) bool { return true }
				}
				comp, err := computer.New(cfg.Computer, logger)
				if err != nil {
					return nil, nil, err
				}
				if err := comp.Start(ctx); err != nil {
					return nil, nil, fmt.Errorf("failed to start surface: %w", err)
				}
				release := func() {
					if err := comp.Close(context.Background()); err != nil {
						logger.Warn("Failed to close surface.", zap.Error(err))
					}
				}
				a := agent.New(transport, comp, gate, blocklist, logger, agent.Options{OnStatus: onStatus})
				return a, release, nil
			}

			srv := server.New(cfg.Server, factory, logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Run(gctx)
			})
			return g.Wait()
		},
	}

	serveCmd.Flags().String("addr", "", "listen address (e.g. :3333)")
	serveCmd.Flags().String("computer", "", "surface variant to drive (browser or sandbox)")
	return serveCmd
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
