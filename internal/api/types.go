package api

import (
	"time"

	"pressline/internal/jobs"
	"pressline/internal/timeline"
)

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	OT              string `json:"ot" validate:"required,max=64"`
	Client          string `json:"client" validate:"required,max=200"`
	JobType         string `json:"jobType" validate:"required,max=200"`
	QuantityPlanned int    `json:"quantityPlanned" validate:"gte=0"`
	Comments        string `json:"comments"`
	Pantone         bool   `json:"pantone"`
	Barniz          bool   `json:"barniz"`
	Is4x0           bool   `json:"is4x0"`
	Is4x4           bool   `json:"is4x4"`
	Status          string `json:"status"`
	Press           string `json:"press" validate:"max=64"`
	Priority        *int   `json:"priority" validate:"omitempty,gte=1"`
}

func (r CreateJobRequest) input() jobs.CreateInput {
	return jobs.CreateInput{
		OT:              r.OT,
		Client:          r.Client,
		JobType:         r.JobType,
		QuantityPlanned: r.QuantityPlanned,
		Comments:        r.Comments,
		Pantone:         r.Pantone,
		Barniz:          r.Barniz,
		Is4x0:           r.Is4x0,
		Is4x4:           r.Is4x4,
		Status:          jobs.Status(r.Status),
		Press:           r.Press,
		Priority:        r.Priority,
	}
}

// EventRequest is one operator timeline entry.
type EventRequest struct {
	Timestamp time.Time      `json:"timestamp" validate:"required"`
	Type      string         `json:"type" validate:"required,oneof=production_start production_end setup_start setup_end pause_start pause_end"`
	Details   map[string]any `json:"details,omitempty"`
}

func (r EventRequest) event() timeline.Event {
	return timeline.Event{Timestamp: r.Timestamp, Type: timeline.EventType(r.Type), Details: r.Details}
}

// UpdateJobRequest is the body of PATCH /api/jobs/{id}. Absent fields are
// left untouched; timeline entries are appended.
type UpdateJobRequest struct {
	OT               *string        `json:"ot"`
	Client           *string        `json:"client" validate:"omitempty,max=200"`
	JobType          *string        `json:"jobType" validate:"omitempty,max=200"`
	QuantityPlanned  *int           `json:"quantityPlanned" validate:"omitempty,gte=0"`
	Comments         *string        `json:"comments"`
	OperatorComments *string        `json:"operatorComments"`
	MachineSpeed     *string        `json:"machineSpeed"`
	Pantone          *bool          `json:"pantone"`
	Barniz           *bool          `json:"barniz"`
	Is4x0            *bool          `json:"is4x0"`
	Is4x4            *bool          `json:"is4x4"`
	Status           *string        `json:"status"`
	Press            *string        `json:"press" validate:"omitempty,max=64"`
	Priority         *int           `json:"priority" validate:"omitempty,gte=1"`
	StartedByUserID  *string        `json:"startedByUserId"`
	Timeline         []EventRequest `json:"timeline" validate:"omitempty,dive"`
}

func (r UpdateJobRequest) changes() jobs.Changes {
	c := jobs.Changes{
		OT:               r.OT,
		Client:           r.Client,
		JobType:          r.JobType,
		QuantityPlanned:  r.QuantityPlanned,
		Comments:         r.Comments,
		OperatorComments: r.OperatorComments,
		MachineSpeed:     r.MachineSpeed,
		Pantone:          r.Pantone,
		Barniz:           r.Barniz,
		Is4x0:            r.Is4x0,
		Is4x4:            r.Is4x4,
		Press:            r.Press,
		Priority:         r.Priority,
		StartedByUserID:  r.StartedByUserID,
	}
	if r.Status != nil {
		status := jobs.Status(*r.Status)
		c.Status = &status
	}
	for _, evt := range r.Timeline {
		c.Timeline = append(c.Timeline, evt.event())
	}
	return c
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job *jobs.View `json:"job"`
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs []*jobs.View `json:"jobs"`
}

// HealthResponse reports service readiness.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
