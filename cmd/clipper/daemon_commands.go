package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"clipper/internal/ipc"
	"clipper/internal/queue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start queue processing on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Started {
					fmt.Fprintln(stdout, resp.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Daemon started")
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop queue processing on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				state := "stopped"
				if status.Running {
					state = "running"
				}
				fmt.Fprintf(stdout, "Daemon:   %s (pid %d)\n", colorizeStatus(state, colorize), status.PID)
				fmt.Fprintf(stdout, "API:      %s\n", status.APIBind)
				fmt.Fprintf(stdout, "Queue DB: %s\n", status.QueueDBPath)
				fmt.Fprintf(stdout, "Lock:     %s\n", status.LockPath)
				if status.LastError != "" {
					fmt.Fprintf(stdout, "Last error: %s\n", status.LastError)
				}

				rows := buildQueueStatusRows(status.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

// buildQueueStatusRows orders stats by queue lifecycle, not alphabetically.
func buildQueueStatusRows(stats map[string]int) [][]string {
	order := []queue.Status{
		queue.StatusQueued,
		queue.StatusProcessing,
		queue.StatusCompleted,
		queue.StatusFailed,
		queue.StatusCancelled,
	}
	known := make(map[string]struct{}, len(order))
	rows := make([][]string, 0, len(stats))
	for _, status := range order {
		known[string(status)] = struct{}{}
		if count, ok := stats[string(status)]; ok && count > 0 {
			rows = append(rows, []string{string(status), strconv.Itoa(count)})
		}
	}

	var extras []string
	for status, count := range stats {
		if _, ok := known[status]; !ok && count > 0 {
			extras = append(extras, status)
		}
	}
	sort.Strings(extras)
	for _, status := range extras {
		rows = append(rows, []string{status, strconv.Itoa(stats[status])})
	}
	return rows
}
