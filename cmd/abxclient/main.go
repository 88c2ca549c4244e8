// ABX feed client: CLI entry point.
//
// Streams every packet from an ABX exchange server, requests each missing
// sequence individually, and writes the ordered result to output.json (and
// optionally Redis or a terminal table).
//
// Settings come from flags, ABX_* environment variables or a .env file.
// When --host or --port is missing and stdin is a terminal, the client asks
// for them interactively.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1ureka/abxclient/internal/config"
	"github.com/1ureka/abxclient/internal/util"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "abxclient",
	Short:         "Download the complete ABX order book feed",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.Debug {
			util.EnableDebug()
		}

		util.LogInfo("ABX client v%s", version)

		if isTerminal(os.Stdin) {
			if strings.TrimSpace(cfg.Host) == "" {
				cfg.Host = askHost()
			}
			if cfg.Port == 0 {
				cfg.Port = askPort("Feed server port (1 ~ 65535)")
			}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		_, err = run(cmd.Context(), cfg, os.Stdout, os.Stderr)
		return err
	},
}

func init() {
	config.RegisterFlags(rootCmd.Flags())
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		stop()
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// askHost prompts for the server host, defaulting to localhost.
func askHost() string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Feed server host (empty for localhost)").
		Show()
	pterm.Println()

	if host := strings.TrimSpace(raw); host != "" {
		return host
	}
	return "localhost"
}

// askPort prompts the user for a port number until a valid one is entered.
func askPort(prompt string) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && port >= 1 && port <= 65535 {
			pterm.Println()
			return port
		}

		util.LogWarning("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}
