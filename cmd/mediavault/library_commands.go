package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediavault/internal/ipc"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Media library operations",
	}

	var listKind string
	var listLimit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed media files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LibraryList(listKind, listLimit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Files) == 0 {
					fmt.Fprintln(stdout, "No files in the library index")
					return nil
				}
				rows := make([][]string, 0, len(resp.Files))
				for _, f := range resp.Files {
					rows = append(rows, []string{
						strconv.FormatInt(f.ID, 10),
						f.Title,
						string(f.Kind),
						formatBytes(f.SizeBytes),
						strconv.FormatInt(f.ViewCount, 10),
						f.Path,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Title", "Kind", "Size", "Views", "Path"},
					rows, 0, 3, 4))
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&listKind, "kind", "", "Filter by kind (video, image, other)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of files to list (0 = all)")
	libraryCmd.AddCommand(listCmd)

	libraryCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show library index aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LibraryStats()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Total files: %d\n", resp.Stats.TotalFiles)
				fmt.Fprintf(stdout, "  Video:     %d\n", resp.Stats.VideoFiles)
				fmt.Fprintf(stdout, "  Image:     %d\n", resp.Stats.ImageFiles)
				fmt.Fprintf(stdout, "  Other:     %d\n", resp.Stats.OtherFiles)
				fmt.Fprintf(stdout, "Total size:  %s\n", formatBytes(resp.Stats.TotalBytes))
				fmt.Fprintf(stdout, "Total views: %d\n", resp.Stats.TotalViews)
				return nil
			})
		},
	})

	libraryCmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Rescan the configured library directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				fmt.Fprintln(stdout, "Scanning library directories...")
				resp, err := client.Scan()
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Scanned %d files: %d added, %d updated, %d removed\n",
					resp.Scanned, resp.Added, resp.Updated, resp.Removed)
				return nil
			})
		},
	})

	return libraryCmd
}
