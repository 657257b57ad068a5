package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pressline/internal/jobs"
	"pressline/internal/storeaccess"
	"pressline/internal/timeline"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Inspect and change press jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCreateCommand(ctx))
	jobsCmd.AddCommand(newJobsUpdateCommand(ctx))
	jobsCmd.AddCommand(newJobsEventCommand(ctx))
	jobsCmd.AddCommand(newJobsDeleteCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var status, press string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs by ascending priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				views, err := stack.Jobs.List(c, jobs.Filter{Status: jobs.Status(status), Press: press})
				if err != nil {
					return err
				}
				if asJSON {
					if views == nil {
						views = []*jobs.View{}
					}
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Priority", "OT", "Client", "Press", "Status", "Setups", "Pauses", "ID"},
					buildJobListRows(views),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only jobs with this status (Spanish labels accepted)")
	cmd.Flags().StringVar(&press, "press", "", "Only jobs on this press")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				view, err := stack.Jobs.Get(c, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, view)
				}
				printJobDetail(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newJobsCreateCommand(ctx *commandContext) *cobra.Command {
	var in jobs.CreateInput
	var status string
	var priority int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Status = jobs.Status(status)
			if cmd.Flags().Changed("priority") {
				in.Priority = &priority
			}
			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				actor, err := ctx.actor(c, stack)
				if err != nil {
					return err
				}
				view, err := stack.Jobs.Create(c, in, actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created job %s (OT %s) at priority %d\n", view.ID, view.OT, view.Priority)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in.OT, "ot", "", "Work order number (unique)")
	flags.StringVar(&in.Client, "client", "", "Client name")
	flags.StringVar(&in.JobType, "type", "", "Job type")
	flags.IntVar(&in.QuantityPlanned, "quantity", 0, "Planned quantity")
	flags.StringVar(&in.Comments, "comments", "", "Comments")
	flags.BoolVar(&in.Pantone, "pantone", false, "Uses Pantone inks")
	flags.BoolVar(&in.Barniz, "barniz", false, "Varnished")
	flags.BoolVar(&in.Is4x0, "4x0", false, "Four colours, one side")
	flags.BoolVar(&in.Is4x4, "4x4", false, "Four colours, both sides")
	flags.StringVar(&status, "status", "", "Initial status (default queued)")
	flags.StringVar(&in.Press, "press", "", "Assigned press")
	flags.IntVar(&priority, "priority", 0, "Queue position hint")
	_ = cmd.MarkFlagRequired("ot")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newJobsUpdateCommand(ctx *commandContext) *cobra.Command {
	var (
		client, jobType, comments, operatorComments, machineSpeed string
		status, press, startedBy                                 string
		quantity, priority                                       int
		pantone, barniz, is4x0, is4x4                            bool
	)

	cmd := &cobra.Command{
		Use:   "update <job-id>",
		Short: "Change fields of a job",
		Long:  "Only the flags given are changed. Every change is recorded on the job timeline.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var changes jobs.Changes
			setString := func(name string, value string, target **string) {
				if flags.Changed(name) {
					*target = &value
				}
			}
			setBool := func(name string, value bool, target **bool) {
				if flags.Changed(name) {
					*target = &value
				}
			}
			setString("client", client, &changes.Client)
			setString("type", jobType, &changes.JobType)
			setString("comments", comments, &changes.Comments)
			setString("operator-comments", operatorComments, &changes.OperatorComments)
			setString("machine-speed", machineSpeed, &changes.MachineSpeed)
			setString("press", press, &changes.Press)
			setBool("pantone", pantone, &changes.Pantone)
			setBool("barniz", barniz, &changes.Barniz)
			setBool("4x0", is4x0, &changes.Is4x0)
			setBool("4x4", is4x4, &changes.Is4x4)
			if flags.Changed("quantity") {
				changes.QuantityPlanned = &quantity
			}
			if flags.Changed("priority") {
				changes.Priority = &priority
			}
			if flags.Changed("status") {
				value := jobs.Status(status)
				changes.Status = &value
			}

			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				actor, err := ctx.actor(c, stack)
				if err != nil {
					return err
				}
				if flags.Changed("started-by") {
					user, err := stack.Users.Lookup(c, startedBy)
					if err != nil {
						return err
					}
					if user == nil {
						return fmt.Errorf("no user with employee id %q", startedBy)
					}
					changes.StartedByUserID = &user.ID
				}
				if changes.Empty() {
					return errors.New("nothing to change; pass at least one field flag")
				}
				view, err := stack.Jobs.Update(c, args[0], changes, actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated job %s (OT %s)\n", view.ID, view.OT)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&client, "client", "", "Client name")
	flags.StringVar(&jobType, "type", "", "Job type")
	flags.IntVar(&quantity, "quantity", 0, "Planned quantity")
	flags.StringVar(&comments, "comments", "", "Comments")
	flags.StringVar(&operatorComments, "operator-comments", "", "Operator comments")
	flags.StringVar(&machineSpeed, "machine-speed", "", "Machine speed")
	flags.BoolVar(&pantone, "pantone", false, "Uses Pantone inks")
	flags.BoolVar(&barniz, "barniz", false, "Varnished")
	flags.BoolVar(&is4x0, "4x0", false, "Four colours, one side")
	flags.BoolVar(&is4x4, "4x4", false, "Four colours, both sides")
	flags.StringVar(&status, "status", "", "Status")
	flags.StringVar(&press, "press", "", "Assigned press (empty string unassigns)")
	flags.IntVar(&priority, "priority", 0, "Queue position hint")
	flags.StringVar(&startedBy, "started-by", "", "Employee id of the operator who started the job")
	return cmd
}

func newJobsEventCommand(ctx *commandContext) *cobra.Command {
	var at string
	var details []string

	cmd := &cobra.Command{
		Use:   "event <job-id> <type>",
		Short: "Record a production, setup, or pause event",
		Long: "Event types: production_start, production_end, setup_start, setup_end, pause_start, pause_end.\n" +
			"--at takes an RFC3339 timestamp and defaults to now.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventType, ok := timeline.ParseType(args[1])
			if !ok {
				return fmt.Errorf("unknown event type %q", args[1])
			}
			when := time.Now().UTC()
			if strings.TrimSpace(at) != "" {
				parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(at))
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
				when = parsed
			}
			detailMap, err := parseDetails(details)
			if err != nil {
				return err
			}

			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				actor, err := ctx.actor(c, stack)
				if err != nil {
					return err
				}
				view, err := stack.Jobs.AddTimelineEvent(c, args[0], jobs.EventInput{
					Timestamp: when,
					Type:      eventType,
					Details:   detailMap,
				}, actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s on job %s (setups %d, pauses %d)\n",
					eventType, view.ID, view.SetupCount, view.PauseCount)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Event time (RFC3339)")
	cmd.Flags().StringArrayVar(&details, "detail", nil, "Extra detail as key=value (repeatable)")
	return cmd
}

func newJobsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job and close the gap in its press queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				actor, err := ctx.actor(c, stack)
				if err != nil {
					return err
				}
				view, err := stack.Jobs.Remove(c, args[0], actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s (OT %s)\n", view.ID, view.OT)
				return nil
			})
		},
	}
}

func parseDetails(values []string) (map[string]any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	details := make(map[string]any, len(values))
	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --detail %q (want key=value)", value)
		}
		details[key] = strings.TrimSpace(val)
	}
	return details, nil
}
