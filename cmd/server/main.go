package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pitch-deck/internal/config"
	"pitch-deck/internal/logging"
)

var (
	configPath string
	verbose    bool
)

// errRejected makes the process exit non-zero without printing a usage error
var errRejected = errors.New("credentials rejected")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pitch-deck",
		Short: "Gated sales slide deck with an AI pitch assistant",
		Long: `pitch-deck serves a fixed slide deck behind a login gate. Logins are checked
against a published credential sheet, renderers follow the session over a
websocket, and a text-generation model writes short pitch notes per slide.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "deck.toml", "path to the TOML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd(), newSlidesCmd(), newVerifyCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadRuntime reads the config and builds the logger every command shares.
// The config file is optional unless --config was given explicitly.
func loadRuntime(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	required := cmd.Flags().Changed("config")
	cfg, err := config.Load(configPath, required)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, verbose)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
