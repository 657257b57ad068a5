package jobs

import "pressline/internal/timeline"

// EventView is a timeline entry with its user reference resolved.
type EventView struct {
	timeline.Event
	User *UserRef `json:"user,omitempty"`
}

// View is a fully materialized job as returned to callers.
type View struct {
	Job
	Timeline      []EventView `json:"timeline"`
	CreatedByUser *UserRef    `json:"createdByUser,omitempty"`
	StartedByUser *UserRef    `json:"startedByUser,omitempty"`
	Pausing       bool        `json:"pausing"`
	InSetup       bool        `json:"inSetup"`
}

func userIDs(jobs []*Job) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, job := range jobs {
		add(job.CreatedBy)
		add(job.StartedByUserID)
		for _, evt := range job.Timeline {
			add(evt.UserID)
		}
	}
	return ids
}

func lookup(refs map[string]UserRef, id string) *UserRef {
	if id == "" {
		return nil
	}
	ref, ok := refs[id]
	if !ok {
		return nil
	}
	return &ref
}

func materialize(job *Job, refs map[string]UserRef) *View {
	view := &View{
		Job:           *job,
		Timeline:      make([]EventView, 0, len(job.Timeline)),
		CreatedByUser: lookup(refs, job.CreatedBy),
		StartedByUser: lookup(refs, job.StartedByUserID),
	}
	for _, evt := range job.Timeline {
		view.Timeline = append(view.Timeline, EventView{Event: evt, User: lookup(refs, evt.UserID)})
	}
	view.Pausing, view.InSetup = timeline.Open(job.Timeline)
	return view
}
