package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var memorySessionID string

var memoryCmd = &cobra.Command{
	Use:   "memory <remember|forget|recall|list> [args...]",
	Short: "Drive the Smaran explicit-memory store (Component J)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		text := strings.Join(args, " ")
		resp, ok := a.bridge.HandleMemoryCommand(text, memorySessionID)
		if !ok {
			return fmt.Errorf("not a recognized memory command: %q", text)
		}
		fmt.Println(resp)
		return nil
	},
}

var memoryContextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the assembled memory context injected into a turn",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		context, err := a.bridge.LoadMemoryContext(sessionProject, sessionAgent)
		if err != nil {
			return err
		}
		fmt.Println(context)
		return nil
	},
}

func init() {
	memoryCmd.PersistentFlags().StringVar(&memorySessionID, "session", "cli", "session id attributed to the memory")
	memoryCmd.AddCommand(memoryContextCmd)
}
