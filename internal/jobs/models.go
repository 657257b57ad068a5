package jobs

import (
	"strings"
	"time"

	"pressline/internal/timeline"
)

// Status represents where a job is in its production lifecycle.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusPaused,
	StatusFinished,
	StatusCancelled,
}

// statusAliases maps the shop floor's Spanish labels onto canonical statuses.
var statusAliases = map[string]Status{
	"en cola":   StatusQueued,
	"en curso":  StatusRunning,
	"pausado":   StatusPaused,
	"terminado": StatusFinished,
	"cancelado": StatusCancelled,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "", false
	}
	if alias, ok := statusAliases[normalized]; ok {
		return alias, true
	}
	for _, status := range allStatuses {
		if string(status) == normalized {
			return status, true
		}
	}
	return "", false
}

// Job is a production order moving through a press queue.
type Job struct {
	ID               string `json:"id" bson:"_id"`
	OT               string `json:"ot" bson:"ot"`
	Client           string `json:"client" bson:"client"`
	JobType          string `json:"jobType" bson:"jobType"`
	QuantityPlanned  int    `json:"quantityPlanned" bson:"quantityPlanned"`
	Comments         string `json:"comments" bson:"comments"`
	OperatorComments string `json:"operatorComments" bson:"operatorComments"`
	MachineSpeed     string `json:"machineSpeed" bson:"machineSpeed"`
	Pantone          bool   `json:"pantone" bson:"pantone"`
	Barniz           bool   `json:"barniz" bson:"barniz"`
	Is4x0            bool   `json:"is4x0" bson:"is4x0"`
	Is4x4            bool   `json:"is4x4" bson:"is4x4"`

	Status   Status `json:"status" bson:"status"`
	Press    string `json:"press,omitempty" bson:"press"`
	Priority int    `json:"priority" bson:"priority"`

	SetupCount     int     `json:"setupCount" bson:"setupCount"`
	TotalSetupTime float64 `json:"totalSetupTime" bson:"totalSetupTime"`
	PauseCount     int     `json:"pauseCount" bson:"pauseCount"`
	TotalPauseTime float64 `json:"totalPauseTime" bson:"totalPauseTime"`

	CreatedBy       string `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	StartedByUserID string `json:"startedByUserId,omitempty" bson:"startedByUserId,omitempty"`

	Timeline []timeline.Event `json:"timeline" bson:"timeline"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`

	// Revision counts stored writes to the job, including queue renumbering.
	Revision int64 `json:"-" bson:"revision"`
}

// Clone returns a copy whose timeline can be appended to without affecting j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Timeline = make([]timeline.Event, len(j.Timeline))
	copy(cp.Timeline, j.Timeline)
	return &cp
}

// Metrics returns the derived metrics currently stored on the job.
func (j *Job) Metrics() timeline.Metrics {
	return timeline.Metrics{
		TotalPauseTime: j.TotalPauseTime,
		TotalSetupTime: j.TotalSetupTime,
		PauseCount:     j.PauseCount,
		SetupCount:     j.SetupCount,
	}
}

// recompute replaces the derived metrics with a fresh replay of the timeline.
func (j *Job) recompute(now time.Time) {
	m := timeline.Compute(j.Timeline, now)
	j.TotalPauseTime = m.TotalPauseTime
	j.TotalSetupTime = m.TotalSetupTime
	j.PauseCount = m.PauseCount
	j.SetupCount = m.SetupCount
}

// Owned reports whether the job records a creator. Jobs created before
// ownership tracking have none and are editable by anyone.
func (j *Job) Owned() bool {
	return strings.TrimSpace(j.CreatedBy) != ""
}

// EditableBy applies the ownership rule for updates and deletes.
func (j *Job) EditableBy(actor Actor) bool {
	if !j.Owned() {
		return true
	}
	return j.CreatedBy == actor.UserID
}

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	EmployeeID string `json:"employeeId"`
}

// UserRef is the minimal user projection joined into read results.
type UserRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EmployeeID string `json:"employeeId"`
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Status Status
	Press  string
}
