package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyseek/internal/app"
	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/service"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		depth       string
		perspective string
		offline     bool
		stub        bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <market-url>",
		Short: "Analyze a single market and print the event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.Depth(depth).Valid() {
				return fmt.Errorf("invalid --depth %q (valid: quick, deep)", depth)
			}
			if !domain.Perspective(perspective).Valid() {
				return fmt.Errorf("invalid --perspective %q (valid: neutral, devils_advocate)", perspective)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if offline {
				cfg.Offline = true
			}
			if stub {
				cfg.LLM.Stub = true
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Events go to stdout; logs stay on stderr.
			logger := newLogger(os.Stderr, cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application := app.New(cfg, logger)
			defer application.Close()

			_, err = application.Analyze(ctx, service.Input{
				MarketURL:   args[0],
				Depth:       domain.Depth(depth),
				Perspective: domain.Perspective(perspective),
			}, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&depth, "depth", string(domain.DepthQuick), "analysis depth: quick|deep")
	cmd.Flags().StringVar(&perspective, "perspective", string(domain.PerspectiveNeutral), "analysis perspective: neutral|devils_advocate")
	cmd.Flags().BoolVar(&offline, "offline", false, "use stubbed collaborators and never touch the network")
	cmd.Flags().BoolVar(&stub, "stub", false, "use the canned completion backend")
	return cmd
}
