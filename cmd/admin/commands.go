package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// NewListCommand creates the list command
func NewListCommand(factory serviceFactory) *cobra.Command {
	var status string
	var categoryID int64
	var search string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := factory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			filter := simplemedia.VideoFilter{Search: search, Limit: limit, Offset: offset}
			if status != "" {
				parsed, err := simplemedia.ParseVideoStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}
			if cmd.Flags().Changed("category") {
				filter.CategoryID = &categoryID
			}

			videos, err := svc.ListVideos(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list videos: %w", err)
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), videos)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tTITLE\tSTATUS\tPAYLOAD\tTHUMBNAIL\tVIEWS\n")
			for _, v := range videos {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
					v.ID, truncate(v.Title, 30), v.Status, v.Payload, v.Thumbnail, v.ViewCount)
			}
			w.Flush()

			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d\n", len(videos))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft, published, archived)")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "filter by category ID")
	cmd.Flags().StringVar(&search, "search", "", "search title and description")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum results")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")

	return cmd
}

// NewStatsCommand creates the stats command
func NewStatsCommand(factory serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := factory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := svc.GetVideoStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get statistics: %w", err)
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Video Statistics ===")
			fmt.Fprintf(out, "  %-12s: %d\n", "total", stats.TotalVideos)
			fmt.Fprintf(out, "  %-12s: %d\n", "published", stats.PublishedVideos)
			fmt.Fprintf(out, "  %-12s: %d\n", "draft", stats.DraftVideos)
			fmt.Fprintf(out, "  %-12s: %d\n", "archived", stats.ArchivedVideos)
			fmt.Fprintf(out, "  %-12s: %d\n", "favorite", stats.FavoriteVideos)
			fmt.Fprintf(out, "  %-12s: %d\n", "views", stats.TotalViews)
			fmt.Fprintf(out, "  %-12s: %d\n", "categories", stats.CategoriesCount)
			return nil
		},
	}
}

// NewBulkStatusCommand creates the bulk-status command
func NewBulkStatusCommand(factory serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-status <status> <video-id>...",
		Short: "Set the status of many videos",
		Long: `Set the status of many videos at once. Only the status changes:
no assets are reclaimed and no thumbnails are generated.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := simplemedia.ParseVideoStatus(args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}

			svc, cleanup, err := factory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			updated, err := svc.BulkChangeStatus(cmd.Context(), ids, status)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), simplemedia.BulkStatusResult{UpdatedCount: updated})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d of %d videos to %s\n", updated, len(ids), status)
			return nil
		},
	}
}

// NewBulkDeleteCommand creates the bulk-delete command
func NewBulkDeleteCommand(factory serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-delete <video-id>...",
		Short: "Delete many videos and reclaim their assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			svc, cleanup, err := factory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, deleteErr := svc.BulkDelete(cmd.Context(), ids)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				if err := printJSON(cmd.OutOrStdout(), simplemedia.BulkDeleteResult{DeletedCount: deleted}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d videos\n", deleted, len(ids))
			}
			return deleteErr
		},
	}
}

// NewGenerateThumbnailCommand creates the generate-thumbnail command
func NewGenerateThumbnailCommand(factory serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "generate-thumbnail <video-id>",
		Short: "Derive a thumbnail for one video that has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			svc, cleanup, err := factory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.GenerateThumbnail(cmd.Context(), ids[0])
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), result.Thumbnail)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Video %d: %s", ids[0], result.Thumbnail.State)
			if result.Thumbnail.Key != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", result.Thumbnail.Key)
			}
			if result.Thumbnail.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), ": %s", result.Thumbnail.Reason)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// NewRepairThumbnailsCommand creates the repair-thumbnails command
func NewRepairThumbnailsCommand(factory serviceFactory) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "repair-thumbnails",
		Short: "Retry thumbnail generation for videos left without one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := factory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.RepairThumbnails(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d, attached %d, degraded %d\n",
				report.Scanned, report.Attached, report.Degraded)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum videos to process")

	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid video ID %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
