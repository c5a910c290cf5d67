package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recallTopK int

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Run hybrid lexical/vector/graph recall over indexed sessions (Component C)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.bridge.SearchMemory(cmd.Context(), args[0], recallTopK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. [%.3f] %s: %s (found by %v)\n", i+1, r.Score, r.SourceID, r.Title, r.FoundBy)
		}
		return nil
	},
}

func init() {
	recallCmd.Flags().IntVar(&recallTopK, "top-k", 10, "maximum results to return")
}
