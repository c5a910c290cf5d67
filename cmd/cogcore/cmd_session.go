package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cogcore/internal/session"
)

var (
	sessionProject string
	sessionAgent   string
	sessionModel   string
	sessionParent  string
	sessionTitle   string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create, list, and inspect sessions (Component B)",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.session.CreateSession(cmd.Context(), sessionProject, sessionAgent, sessionModel, sessionParent, sessionTitle)
		if err != nil {
			return err
		}
		fmt.Println(sess.Meta.ID)
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		metas, err := a.session.ListSessions(cmd.Context(), sessionProject)
		if err != nil {
			return err
		}
		for _, m := range metas {
			created := time.UnixMilli(m.CreatedAt).Format(time.RFC3339)
			fmt.Printf("%s\t%s\t%d turns\t%s\n", m.ID, m.Title, m.TurnCount, created)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session's turns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.session.LoadSession(cmd.Context(), args[0], sessionProject)
		if err != nil {
			return err
		}
		for _, turn := range s.Turns {
			fmt.Printf("--- turn %d (%s) ---\n%s\n\n", turn.TurnNumber, turn.Role, turn.Content)
		}
		return nil
	},
}

var sessionBranchCmd = &cobra.Command{
	Use:   "branch <session-id> <name>",
	Short: "Branch a session, carrying its tags and metadata forward",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		branched, err := a.session.BranchSession(cmd.Context(), args[0], sessionProject, args[1])
		if err != nil {
			return err
		}
		fmt.Println(branched.Meta.ID)
		return nil
	},
}

var sessionTurnCmd = &cobra.Command{
	Use:   "turn <session-id> <role> <text>",
	Short: "Append a turn to a session and trigger background indexing",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		id, role, text := args[0], args[1], args[2]
		switch role {
		case session.RoleUser:
			err = a.bridge.RecordUserTurn(cmd.Context(), id, sessionProject, text)
		case session.RoleAssistant:
			err = a.bridge.RecordAssistantTurn(cmd.Context(), id, sessionProject, text, nil)
		default:
			err = fmt.Errorf("unsupported role %q (want %q or %q)", role, session.RoleUser, session.RoleAssistant)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "turn recorded")
		return nil
	},
}

func init() {
	sessionCmd.PersistentFlags().StringVar(&sessionProject, "project", "", "project path (scopes the session store)")

	sessionCreateCmd.Flags().StringVar(&sessionAgent, "agent", "default", "agent id")
	sessionCreateCmd.Flags().StringVar(&sessionModel, "model", "default", "model id")
	sessionCreateCmd.Flags().StringVar(&sessionParent, "parent", "", "parent session id, for sub-sessions")
	sessionCreateCmd.Flags().StringVar(&sessionTitle, "title", "", "session title")

	sessionCmd.AddCommand(
		sessionCreateCmd,
		sessionListCmd,
		sessionShowCmd,
		sessionBranchCmd,
		sessionTurnCmd,
	)
}
