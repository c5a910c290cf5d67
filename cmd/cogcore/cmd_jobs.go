package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "job <message>",
	Short: "Submit a job to the bounded queue and wait for its outcome (Component G)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.jobs.Submit(args[0], nil)
		if err != nil {
			return err
		}

		for {
			current, ok := a.jobs.Get(job.ID)
			if !ok {
				return fmt.Errorf("job %s vanished from the queue", job.ID)
			}
			if current.Status == "completed" || current.Status == "failed" || current.Status == "cancelled" {
				fmt.Printf("job %s: %s\n", current.ID, current.Status)
				if current.Error != nil {
					return current.Error
				}
				fmt.Printf("result: %v\n", current.Response)
				return nil
			}
			time.Sleep(20 * time.Millisecond)
		}
	},
}
