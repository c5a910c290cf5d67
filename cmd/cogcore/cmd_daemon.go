package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cogcore/internal/logging"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the always-on orchestration core until interrupted",
	Long: `daemon starts every long-lived subsystem: the Nidra idle/dream loop and
Chitragupta's cron-scheduled consolidation, the capability registry's
autonomous health-check and discovery loops, and the bounded job queue.
It blocks until SIGINT/SIGTERM.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	if err := a.chitragupta.Start(ctx); err != nil {
		return fmt.Errorf("start consolidation scheduler: %w", err)
	}

	if a.discovery != nil {
		a.discovery.Start(ctx)
	}
	logging.Boot("cogcore daemon started (home=%s)", cfg.Home)
	a.autonomous.Run(ctx)

	<-ctx.Done()
	logging.Boot("cogcore daemon shutting down")
	return nil
}
