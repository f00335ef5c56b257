// File: cmd/run.go
package cmd

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/computer"
	_ "github.com/xkilldash9x/pilot-cli/internal/computer/browser"
	_ "github.com/xkilldash9x/pilot-cli/internal/computer/sandbox"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/oai"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/security"
)

// newRunCmd creates and configures the `run` command: an interactive REPL
// driving the agent against the configured surface.
func newRunCmd() *cobra.Command {
	var (
		initialInput string
		debug        bool
		showImages   bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent interactively from the terminal",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their corresponding Viper keys so command-line
			// flags override config file and environment values.
			if err := viper.BindPFlag("computer.kind", cmd.Flags().Lookup("computer")); err != nil {
				return err
			}
			return nil
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

			comp, err := computer.New(cfg.Computer, logger)
			if err != nil {
				return err
			}
			if err := comp.Start(ctx); err != nil {
				return fmt.Errorf("failed to start surface: %w", err)
			}
			defer func() {
				if err := comp.Close(context.Background()); err != nil {
					logger.Warn("Failed to close surface.", zap.Error(err))
				}
			}()

			opts := agent.Options{
				Debug: debug,
				OnStatus: func(u agent.StatusUpdate) {
					fmt.Println(u.Description)
				},
			}
			if showImages {
				opts.OnScreenshot = func(pngBase64 string) {
					if path, err := writeScreenshot(pngBase64); err == nil {
						logger.Info("Screenshot written.", zap.String("path", path))
					} else {
						logger.Warn("Failed to write screenshot.", zap.Error(err))
					}
				}
			}

			// One shared reader: the safety gate and the prompt loop must
			// not buffer ahead of each other on stdin.
			reader := bufio.NewReader(cmd.InOrStdin())

			gate := stdinSafetyGate(reader, cmd.OutOrStdout())
			if cfg.Safety.AutoAcknowledge {
				logger.Warn("Auto-acknowledging all safety checks.")
				gate = func(context.Context, string) bool { return true }
			}

			a := agent.New(
				transport,
				comp,
				gate,
				security.New(cfg.Safety.BlockedDomains),
				logger,
				opts,
			)

			return repl(ctx, a, reader, initialInput)
		},
	}

	runCmd.Flags().StringVar(&initialInput, "input", "", "initial input to use instead of asking the user")
	runCmd.Flags().BoolVar(&debug, "debug", false, "enable debug mode for detailed output")
	runCmd.Flags().BoolVar(&showImages, "show", false, "write screenshots to disk during execution")
	runCmd.Flags().String("computer", "", "surface variant to drive (browser or sandbox)")
	return runCmd
}

// repl reads inputs line by line and runs one full turn per input. "exit"
// or EOF ends the session; a declined safety check ends the session with
// the turn's partial output discarded.
func repl(ctx context.Context, a *agent.Agent, in *bufio.Reader, initialInput string) error {
	var items []schemas.Item

	for {
		userInput := initialInput
		initialInput = ""
		if userInput == "" {
			fmt.Print("> ")
			line, err := in.ReadString('\n')
			if err != nil && line == "" {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("failed to read input: %w", err)
			}
			userInput = strings.TrimRight(line, "\r\n")
		}
		if userInput == "exit" {
			return nil
		}
		if strings.TrimSpace(userInput) == "" {
			continue
		}

		items = append(items, schemas.Message(schemas.RoleUser, userInput))
		output, err := a.RunFullTurn(ctx, items)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		items = append(items, output...)
	}
}

// stdinSafetyGate asks the operator to acknowledge a safety check on the
// terminal. Anything but an explicit "y" declines.
func stdinSafetyGate(in *bufio.Reader, out io.Writer) agent.SafetyGate {
	return func(ctx context.Context, message string) bool {
		fmt.Fprintf(out, "Safety Check Warning: %s\nDo you want to acknowledge and proceed? (y/n): ", message)
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		return strings.ToLower(strings.TrimSpace(line)) == "y"
	}
}

// writeScreenshot decodes a base64 PNG and drops it in the temp directory.
func writeScreenshot(pngBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(pngBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode screenshot: %w", err)
	}
	f, err := os.CreateTemp("", "pilot-screenshot-*.png")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return filepath.Clean(f.Name()), nil
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
