package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pressline/internal/priority"
	"pressline/internal/storeaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and renumber press queues",
	}

	queueCmd.AddCommand(newQueueCheckCommand(ctx))
	queueCmd.AddCommand(newQueueReassignCommand(ctx))

	return queueCmd
}

func newQueueCheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check [press...]",
		Short: "Report whether each press queue is numbered 1..N",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				reports, err := stack.Reassigner.Check(c, args...)
				if err != nil {
					return err
				}
				if asJSON {
					if reports == nil {
						reports = []priority.Report{}
					}
					return writeJSON(cmd, reports)
				}
				out := cmd.OutOrStdout()
				if len(reports) == 0 {
					fmt.Fprintln(out, "No queued jobs")
					return nil
				}
				colorize := shouldColorize(out)
				inconsistent := 0
				for _, report := range reports {
					kind, message := statusOK, fmt.Sprintf("%d queued, dense", report.Queued)
					if !report.Dense {
						inconsistent++
						kind = statusWarn
						message = fmt.Sprintf("%d queued, priorities %s", report.Queued, joinInts(report.Priorities))
					}
					fmt.Fprintln(out, renderStatusLine("Press "+report.Press, kind, message, colorize))
				}
				if inconsistent > 0 {
					fmt.Fprintf(out, "%d press queue(s) need renumbering; run `pressline queue reassign`\n", inconsistent)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newQueueReassignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reassign [press...]",
		Short: "Renumber press queues to 1..N",
		Long:  "With no presses given, every press that has a queued job is renumbered.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				if err := stack.Reassigner.Reassign(c, args...); err != nil {
					return err
				}
				reports, err := stack.Reassigner.Check(c, args...)
				if err != nil {
					return err
				}
				for _, report := range reports {
					fmt.Fprintf(cmd.OutOrStdout(), "Press %s: %d queued\n", report.Press, report.Queued)
				}
				return nil
			})
		},
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = strconv.Itoa(value)
	}
	return strings.Join(parts, ",")
}
