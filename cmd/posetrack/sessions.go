package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	sqlite "github.com/banshee-data/posetrack/internal/pose/storage/sqlite"
	"github.com/spf13/cobra"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			sessions, err := sqlite.NewSessionStore(database.DB).ListSessions(limit)
			if err != nil {
				return err
			}
			return printSessions(cmd.OutOrStdout(), sessions)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of sessions to list")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			sess, err := sqlite.NewSessionStore(database.DB).GetSession(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			if err := sqlite.NewSessionStore(database.DB).DeleteSession(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted session %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func printSessions(w io.Writer, sessions []sqlite.Session) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tRIG\tSOURCE\tFRAMES\tSTARTED\tDURATION")
	for _, s := range sessions {
		started := time.Unix(0, s.StartedAtNs).UTC()
		duration := "running"
		if s.EndedAtNs != nil {
			duration = time.Duration(*s.EndedAtNs - s.StartedAtNs).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.SessionID, s.RigName, s.Source, s.FrameCount, started.Format(time.RFC3339), duration)
	}
	return tw.Flush()
}
