package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/tirtabot/internal/scheduler"
	"github.com/user/tirtabot/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd, sessionPruneCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and maintain conversation sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <sender>",
	Short: "Show the active session of a sender (e.g. telegram:12345)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()
		b := &backends{}
		defer b.Close()
		if err := openSessions(ctx, cfg, "", b); err != nil {
			return fmt.Errorf("open session store: %w", err)
		}

		session, err := b.sessions.Get(ctx, types.SenderID(args[0]))
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if session == nil {
			fmt.Println("No active session.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOPIC\tSUBJECT\tEXPIRES")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			session.ID,
			session.Topic,
			session.Subject,
			session.ExpiresAt.Local().Format("2006-01-02 15:04:05"),
		)
		return w.Flush()
	},
}

var sessionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete session rows that have already expired",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		b := &backends{}
		defer b.Close()
		if err := openSessions(ctx, cfg, "", b); err != nil {
			return fmt.Errorf("open session store: %w", err)
		}

		removed, err := scheduler.New(b.sessions, cfg.PruneSchedule, nil).RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Pruned %d expired session(s).\n", removed)
		return nil
	},
}
