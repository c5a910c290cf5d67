package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var consolidateDate string

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run Chitragupta consolidation for a date on demand (Component D)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		date := time.Now().UTC()
		if consolidateDate != "" {
			parsed, err := time.Parse("2006-01-02", consolidateDate)
			if err != nil {
				return fmt.Errorf("parse --date: %w", err)
			}
			date = parsed
		}

		result, err := a.chitragupta.ConsolidateDate(cmd.Context(), date)
		if err != nil {
			return err
		}
		fmt.Printf("consolidated %s: %d sessions across %d projects, %d facts extracted, %dms\n",
			result.Date.Format("2006-01-02"), result.SessionsProcessed, result.ProjectCount,
			result.ExtractedFacts, result.DurationMillis)
		return nil
	},
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateDate, "date", "", "date to consolidate (YYYY-MM-DD, default today)")
}
