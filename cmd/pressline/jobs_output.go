package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"pressline/internal/jobs"
)

func buildJobListRows(views []*jobs.View) [][]string {
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		rows = append(rows, []string{
			strconv.Itoa(view.Priority),
			view.OT,
			view.Client,
			dashIfEmpty(view.Press),
			humanLabel(string(view.Status)),
			strconv.Itoa(view.SetupCount),
			strconv.Itoa(view.PauseCount),
			view.ID,
		})
	}
	return rows
}

func printJobDetail(out io.Writer, view *jobs.View) {
	fmt.Fprint(out, renderTable([]string{"Field", "Value"}, [][]string{
		{"ID", view.ID},
		{"OT", view.OT},
		{"Client", view.Client},
		{"Job type", view.JobType},
		{"Quantity", strconv.Itoa(view.QuantityPlanned)},
		{"Press", dashIfEmpty(view.Press)},
		{"Priority", strconv.Itoa(view.Priority)},
		{"Status", humanLabel(string(view.Status))},
		{"Process", processLabel(view)},
		{"Comments", dashIfEmpty(view.Comments)},
		{"Operator comments", dashIfEmpty(view.OperatorComments)},
		{"Machine speed", dashIfEmpty(view.MachineSpeed)},
		{"Created by", userLabel(view.CreatedByUser)},
		{"Started by", userLabel(view.StartedByUser)},
		{"Setups", fmt.Sprintf("%d (%s)", view.SetupCount, seconds(view.TotalSetupTime))},
		{"Pauses", fmt.Sprintf("%d (%s)", view.PauseCount, seconds(view.TotalPauseTime))},
		{"In setup", yesNo(view.InSetup)},
		{"Paused", yesNo(view.Pausing)},
	}, nil))

	if len(view.Timeline) == 0 {
		return
	}
	rows := make([][]string, 0, len(view.Timeline))
	for _, evt := range view.Timeline {
		rows = append(rows, []string{
			evt.Timestamp.Local().Format(time.DateTime),
			humanLabel(string(evt.Type)),
			userLabel(evt.User),
			detailSummary(evt.Details),
		})
	}
	fmt.Fprint(out, renderTable([]string{"When", "Event", "By", "Details"}, rows, nil))
}

func processLabel(view *jobs.View) string {
	var flags []string
	if view.Is4x0 {
		flags = append(flags, "4x0")
	}
	if view.Is4x4 {
		flags = append(flags, "4x4")
	}
	if view.Pantone {
		flags = append(flags, "Pantone")
	}
	if view.Barniz {
		flags = append(flags, "Barniz")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ", ")
}

func userLabel(ref *jobs.UserRef) string {
	if ref == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", ref.Name, ref.EmployeeID)
}

// detailSummary renders event details with the message first and any
// recorded field changes listed by name.
func detailSummary(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	var parts []string
	if msg, ok := details["message"].(string); ok && msg != "" {
		parts = append(parts, msg)
	}
	keys := make([]string, 0, len(details))
	for key := range details {
		if key != "message" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == "changes" {
			if fields := changedFields(details[key]); len(fields) > 0 {
				parts = append(parts, "changed: "+strings.Join(fields, ", "))
				continue
			}
		}
		parts = append(parts, fmt.Sprintf("%s=%v", key, details[key]))
	}
	return strings.Join(parts, "; ")
}

func changedFields(value any) []string {
	switch changes := value.(type) {
	case map[string]jobs.FieldChange:
		return jobs.ChangedFields(changes)
	case map[string]any:
		fields := make([]string, 0, len(changes))
		for field := range changes {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return fields
	default:
		return nil
	}
}

func seconds(value float64) string {
	return time.Duration(value * float64(time.Second)).Round(time.Second).String()
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
