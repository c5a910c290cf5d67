package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cogcore/internal/sabha"
)

var (
	sabhaTopic        string
	sabhaPratijna     string
	sabhaHetu         string
	sabhaUdaharana    string
	sabhaUpanaya      string
	sabhaNigamana     string
	sabhaParticipants []string
)

// sabhaCmd runs a single deliberation round end-to-end within one process,
// since sabha.Registry is in-memory only: a convened Sabha does not survive
// past the CLI invocation that created it. Long-lived deliberation belongs
// to the daemon process, which holds the registry across turns.
var sabhaCmd = &cobra.Command{
	Use:   "sabha",
	Short: "Run a single-shot deliberation round (Component I)",
	RunE: func(cmd *cobra.Command, args []string) error {
		participants := make([]sabha.Participant, 0, len(sabhaParticipants))
		for _, id := range sabhaParticipants {
			participants = append(participants, sabha.Participant{
				ID:          id,
				Expertise:   0.8,
				Credibility: 0.8,
			})
		}
		if len(participants) < 2 {
			return fmt.Errorf("need at least two --participant flags")
		}

		sabhaCfg := sabha.Config{
			MaxParticipants:    cfg.Sabha.MaxParticipants,
			MaxRounds:          cfg.Sabha.MaxRounds,
			ConsensusThreshold: cfg.Sabha.ConsensusThreshold,
			AutoEscalate:       cfg.Sabha.AutoEscalate,
		}

		s, err := sabha.Convene("cli-sabha", sabhaTopic, "cli", participants, sabhaCfg)
		if err != nil {
			return fmt.Errorf("convene: %w", err)
		}

		round, err := s.Propose(participants[0].ID, sabha.Syllogism{
			Pratijna:  sabhaPratijna,
			Hetu:      sabhaHetu,
			Udaharana: sabhaUdaharana,
			Upanaya:   sabhaUpanaya,
			Nigamana:  sabhaNigamana,
		})
		if err != nil {
			return fmt.Errorf("propose: %w", err)
		}

		if ch, err := s.Challenge(round.Index, participants[0].ID, ""); err == nil && ch != nil {
			fmt.Printf("challenge: %s (%s, severity=%s) - %s\n", ch.Detection, ch.Step, ch.Severity, ch.Reason)
		}

		for _, p := range participants {
			if err := s.Vote(round.Index, p.ID, sabha.PositionSupport); err != nil {
				return fmt.Errorf("vote(%s): %w", p.ID, err)
			}
		}

		verdict := s.Conclude()
		fmt.Printf("verdict: %s (status=%s)\n", verdict, s.Status)
		return nil
	},
}

func init() {
	sabhaCmd.Flags().StringVar(&sabhaTopic, "topic", "", "deliberation topic")
	sabhaCmd.Flags().StringArrayVar(&sabhaParticipants, "participant", nil, "participant id (repeatable, min 2)")
	sabhaCmd.Flags().StringVar(&sabhaPratijna, "pratijna", "", "proposition")
	sabhaCmd.Flags().StringVar(&sabhaHetu, "hetu", "", "reason")
	sabhaCmd.Flags().StringVar(&sabhaUdaharana, "udaharana", "", "example")
	sabhaCmd.Flags().StringVar(&sabhaUpanaya, "upanaya", "", "application")
	sabhaCmd.Flags().StringVar(&sabhaNigamana, "nigamana", "", "conclusion")
}
