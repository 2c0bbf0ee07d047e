package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipper/internal/ipc"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show one job with its clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDescribe(id)
				if err != nil {
					return err
				}
				job := resp.Job

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Job:      %d\n", job.ID)
				fmt.Fprintf(out, "Owner:    %s (plan %s)\n", job.OwnerID, job.PlanCode)
				fmt.Fprintf(out, "Source:   %s\n", job.SourceRef)
				fmt.Fprintf(out, "Status:   %s\n", colorizeStatus(job.Status, colorize))
				fmt.Fprintf(out, "Progress: %.0f%%", job.ProgressPercent)
				if job.ProgressMessage != "" {
					fmt.Fprintf(out, " (%s)", job.ProgressMessage)
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Retries:  %d of %d\n", job.RetryCount, job.MaxRetries)
				fmt.Fprintf(out, "Created:  %s\n", humanize.Time(job.CreatedAt))
				if job.CompletedAt != nil {
					fmt.Fprintf(out, "Finished: %s\n", humanize.Time(*job.CompletedAt))
				}
				if job.ErrorSummary != "" {
					fmt.Fprintf(out, "Error:    %s\n", job.ErrorSummary)
				}

				if len(job.Clips) == 0 {
					return nil
				}

				rows := make([][]string, 0, len(job.Clips))
				for _, clip := range job.Clips {
					size := ""
					if clip.FileSize > 0 {
						size = humanize.Bytes(uint64(clip.FileSize))
					}
					detail := clip.OutputURL
					if detail == "" {
						detail = clip.Error
					}
					rows = append(rows, []string{
						strconv.Itoa(clip.Seq),
						fmt.Sprintf("%.1fs-%.1fs", clip.StartSec, clip.EndSec),
						clip.Platform,
						colorizeStatus(clip.Status, colorize),
						size,
						detail,
					})
				}
				table := renderTable(
					[]string{"#", "Range", "Platform", "Status", "Size", "Output"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}
