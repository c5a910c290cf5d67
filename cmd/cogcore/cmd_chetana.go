package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// chetanaCmd exercises a single before-turn pass through Bhava/Dhyana/
// Atma-Darshana/Sankalpa, mirroring how the bridge would call it once per
// user turn inside the daemon. Like sabha's controller is in-memory only,
// this is a point-in-time snapshot rather than a persisted state machine.
var chetanaCmd = &cobra.Command{
	Use:   "chetana <message>",
	Short: "Run a single cognitive-state pass over a message (Component E)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := a.chetana.BeforeTurn(args[0])
		a.chetana.AfterTurn()

		out, err := json.MarshalIndent(ctx, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
