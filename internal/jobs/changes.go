package jobs

import (
	"reflect"
	"slices"
	"time"

	"pressline/internal/timeline"
)

// Changes is a partial job update. Nil fields are left untouched. Timeline
// entries are appended to the existing log, never substituted for it.
type Changes struct {
	OT               *string `json:"ot,omitempty"`
	Client           *string `json:"client,omitempty"`
	JobType          *string `json:"jobType,omitempty"`
	QuantityPlanned  *int    `json:"quantityPlanned,omitempty"`
	Comments         *string `json:"comments,omitempty"`
	OperatorComments *string `json:"operatorComments,omitempty"`
	MachineSpeed     *string `json:"machineSpeed,omitempty"`
	Pantone          *bool   `json:"pantone,omitempty"`
	Barniz           *bool   `json:"barniz,omitempty"`
	Is4x0            *bool   `json:"is4x0,omitempty"`
	Is4x4            *bool   `json:"is4x4,omitempty"`
	Status           *Status `json:"status,omitempty"`
	Press            *string `json:"press,omitempty"`
	Priority         *int    `json:"priority,omitempty"`
	StartedByUserID  *string `json:"startedByUserId,omitempty"`

	Timeline []timeline.Event `json:"timeline,omitempty"`
}

// FieldChange is one entry of an audit diff.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// field binds a change-set member to the job attribute it targets.
type field struct {
	name    string
	present func(Changes) bool
	value   func(Changes) any
	current func(*Job) any
	apply   func(Changes, *Job)
}

func ptrField[T any](name string, pick func(*Changes) *T, target func(*Job) *T) field {
	return field{
		name:    name,
		present: func(c Changes) bool { return pick(&c) != nil },
		value:   func(c Changes) any { return *pick(&c) },
		current: func(j *Job) any { return *target(j) },
		apply:   func(c Changes, j *Job) { *target(j) = *pick(&c) },
	}
}

// fields lists every diffable attribute in wire-name order.
var fields = []field{
	ptrField("ot", func(c *Changes) *string { return c.OT }, func(j *Job) *string { return &j.OT }),
	ptrField("client", func(c *Changes) *string { return c.Client }, func(j *Job) *string { return &j.Client }),
	ptrField("jobType", func(c *Changes) *string { return c.JobType }, func(j *Job) *string { return &j.JobType }),
	ptrField("quantityPlanned", func(c *Changes) *int { return c.QuantityPlanned }, func(j *Job) *int { return &j.QuantityPlanned }),
	ptrField("comments", func(c *Changes) *string { return c.Comments }, func(j *Job) *string { return &j.Comments }),
	ptrField("operatorComments", func(c *Changes) *string { return c.OperatorComments }, func(j *Job) *string { return &j.OperatorComments }),
	ptrField("machineSpeed", func(c *Changes) *string { return c.MachineSpeed }, func(j *Job) *string { return &j.MachineSpeed }),
	ptrField("pantone", func(c *Changes) *bool { return c.Pantone }, func(j *Job) *bool { return &j.Pantone }),
	ptrField("barniz", func(c *Changes) *bool { return c.Barniz }, func(j *Job) *bool { return &j.Barniz }),
	ptrField("is4x0", func(c *Changes) *bool { return c.Is4x0 }, func(j *Job) *bool { return &j.Is4x0 }),
	ptrField("is4x4", func(c *Changes) *bool { return c.Is4x4 }, func(j *Job) *bool { return &j.Is4x4 }),
	ptrField("status", func(c *Changes) *Status { return c.Status }, func(j *Job) *Status { return &j.Status }),
	ptrField("press", func(c *Changes) *string { return c.Press }, func(j *Job) *string { return &j.Press }),
	ptrField("priority", func(c *Changes) *int { return c.Priority }, func(j *Job) *int { return &j.Priority }),
	ptrField("startedByUserId", func(c *Changes) *string { return c.StartedByUserID }, func(j *Job) *string { return &j.StartedByUserID }),
}

// Empty reports whether the change set carries nothing to apply.
func (c Changes) Empty() bool {
	if len(c.Timeline) > 0 {
		return false
	}
	for _, f := range fields {
		if f.present(c) {
			return false
		}
	}
	return true
}

// Diff returns the attributes that c would change on before, keyed by wire
// name. Attributes absent from c or equal to the current value are omitted.
// Timeline entries are not part of the diff; they are log records already.
func Diff(before *Job, c Changes) map[string]FieldChange {
	out := make(map[string]FieldChange)
	for _, f := range fields {
		if !f.present(c) {
			continue
		}
		from, to := f.current(before), f.value(c)
		if reflect.DeepEqual(from, to) {
			continue
		}
		out[f.name] = FieldChange{From: from, To: to}
	}
	return out
}

// Apply assigns the present attributes of c onto j and appends any timeline
// entries. It returns the entries that were appended.
func (c Changes) Apply(j *Job) []timeline.Event {
	for _, f := range fields {
		if f.present(c) {
			f.apply(c, j)
		}
	}
	if len(c.Timeline) == 0 {
		return nil
	}
	appended := slices.Clone(c.Timeline)
	j.Timeline = append(j.Timeline, appended...)
	return appended
}

// ChangedFields returns the sorted attribute names in a diff.
func ChangedFields(diff map[string]FieldChange) []string {
	names := make([]string, 0, len(diff))
	for name := range diff {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func editEvent(actor Actor, diff map[string]FieldChange, at time.Time) timeline.Event {
	return timeline.Event{
		UserID:    actor.UserID,
		Timestamp: at,
		Type:      timeline.Edit,
		Details: map[string]any{
			"message": "Job edited by " + actor.Name,
			"changes": diff,
		},
	}
}

func creationEvent(actor Actor, at time.Time) timeline.Event {
	return timeline.Event{
		UserID:    actor.UserID,
		Timestamp: at,
		Type:      timeline.Creation,
		Details: map[string]any{
			"message": "Job created by " + actor.Name,
		},
	}
}
