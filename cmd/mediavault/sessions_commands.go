package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediavault/internal/ipc"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List active transcode sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionList()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(stdout, "No active transcode sessions")
					return nil
				}
				fmt.Fprintln(stdout, renderSessionsTable(resp.Sessions))
				return nil
			})
		},
	}

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop one transcode session and remove its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SessionStop(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped session %s\n", args[0])
				return nil
			})
		},
	})

	return sessionsCmd
}

func renderSessionsTable(sessions []ipc.SessionInfo) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID,
			string(s.State),
			s.SourcePath,
			formatAge(s.LastAccess),
		})
	}
	return renderTable([]string{"ID", "State", "Source", "Last Access"}, rows, 3)
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t).Round(time.Second)
	if age < 0 {
		age = 0
	}
	return fmt.Sprintf("%s ago", age)
}
