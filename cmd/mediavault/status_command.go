package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediavault/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				fmt.Fprintln(stdout, heading("Daemon", colorize))
				fmt.Fprintf(stdout, "  Running:           %s\n", yesNo(status.Running))
				fmt.Fprintf(stdout, "  PID:               %d\n", status.PID)
				fmt.Fprintf(stdout, "  Media address:     %s\n", status.MediaAddr)
				fmt.Fprintf(stdout, "  Database:          %s\n", status.DatabasePath)
				fmt.Fprintf(stdout, "  Lock file:         %s\n", status.LockPath)
				if status.StartedAt != "" {
					fmt.Fprintf(stdout, "  Started:           %s\n", status.StartedAt)
				}
				fmt.Fprintf(stdout, "  Active transcodes: %d\n", status.ActiveTranscodes)
				if status.CacheFreeBytes > 0 {
					fmt.Fprintf(stdout, "  Cache headroom:    %s\n", formatBytes(status.CacheFreeBytes))
				}
				fmt.Fprintln(stdout)

				if len(status.Dependencies) > 0 {
					fmt.Fprintln(stdout, heading("Dependencies", colorize))
					for _, dep := range status.Dependencies {
						detail := dep.Command
						if !dep.Available {
							detail = dep.Detail
						}
						fmt.Fprintf(stdout, "  %-8s %-3s %s\n", dep.Name, yesNo(dep.Available), detail)
					}
					fmt.Fprintln(stdout)
				}

				if status.Library != nil {
					fmt.Fprintln(stdout, heading("Library", colorize))
					fmt.Fprintf(stdout, "  Files:  %d (%d video, %d image, %d other)\n",
						status.Library.TotalFiles,
						status.Library.VideoFiles,
						status.Library.ImageFiles,
						status.Library.OtherFiles)
					fmt.Fprintf(stdout, "  Size:   %s\n", formatBytes(status.Library.TotalBytes))
					fmt.Fprintf(stdout, "  Views:  %d\n", status.Library.TotalViews)
					fmt.Fprintln(stdout)
				}

				if len(status.Sessions) > 0 {
					fmt.Fprintln(stdout, heading("Transcode Sessions", colorize))
					fmt.Fprintln(stdout, renderSessionsTable(status.Sessions))
				}
				return nil
			})
		},
	}
}
