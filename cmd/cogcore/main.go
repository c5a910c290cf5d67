// Package main implements the cogcore CLI - the cognitive-memory
// orchestration core for an always-on coding-assistant daemon.
//
// This file serves as the entry point and command registration hub. The
// actual command implementations are split across multiple cmd_*.go files.
//
// # File Index
//
//   - main.go          - entry point, rootCmd, global flags, init()
//   - cmd_daemon.go     - daemonCmd, running the always-on Nidra/Chitragupta
//     consolidation loop and the capability autonomous manager
//   - cmd_session.go    - sessionCmd and its create/list/show/branch/turn subcommands
//   - cmd_recall.go     - recallCmd, hybrid search against Components A-C
//   - cmd_consolidate.go - consolidateCmd, on-demand Chitragupta consolidation
//   - cmd_memory.go     - memoryCmd, the Smaran remember/forget/recall/list surface
//   - cmd_tls.go        - tlsCmd, on-demand §6.7 certificate provisioning
//   - cmd_sabha.go      - sabhaCmd, a single-shot deliberation round
//   - cmd_chetana.go    - chetanaCmd, a single before-turn/after-turn cognitive pass
//   - cmd_jobs.go       - jobsCmd, submit-and-await against the bounded job queue
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cogcore/internal/config"
)

var (
	home       string
	debugLog   bool
	cfgPath    string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cogcore",
	Short: "cogcore - cognitive-memory orchestration core",
	Long: `cogcore is the always-on memory and deliberation substrate behind a
coding-assistant daemon: persistent session storage, hybrid lexical/vector/
graph recall, sleep-cycle consolidation, a cognitive state tracker, policy
and approval gating, a bounded job queue, a remote-capability registry, a
multi-participant deliberation engine, and the bridge that ties turn
recording to all of it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if home == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve home: %w", err)
			}
			home = filepath.Join(wd, ".cogcore")
		}
		if err := os.MkdirAll(home, 0o755); err != nil {
			return fmt.Errorf("create home %s: %w", home, err)
		}

		path := cfgPath
		if path == "" {
			path = defaultConfigPath(home)
		}
		loaded, err := config.Load(path, home)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if debugLog {
			loaded.Logging.DebugMode = true
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&home, "home", "H", "", "cogcore home directory (default: ./.cogcore)")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml (default: <home>/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugLog, "debug", "d", false, "enable categorized debug logging")

	rootCmd.AddCommand(
		daemonCmd,
		sessionCmd,
		recallCmd,
		consolidateCmd,
		memoryCmd,
		tlsCmd,
		sabhaCmd,
		chetanaCmd,
		jobsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
