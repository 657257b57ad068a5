package jobs_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"pressline/internal/jobs"
	"pressline/internal/timeline"
)

func baseJob() *jobs.Job {
	return &jobs.Job{
		ID: "j1", OT: "OT-1", Client: "ACME", JobType: "labels", QuantityPlanned: 500,
		Status: jobs.StatusQueued, Press: "X", Priority: 2,
		Timeline: []timeline.Event{{Type: timeline.Creation, Timestamp: time.Unix(0, 0).UTC()}},
	}
}

func TestDiffReportsOnlyChangedFields(t *testing.T) {
	before := baseJob()
	diff := jobs.Diff(before, jobs.Changes{
		Client:          ptr("ACME"),
		QuantityPlanned: ptr(750),
		Press:           ptr("Y"),
		Pantone:         ptr(true),
		Timeline:        []timeline.Event{{Type: timeline.PauseStart}},
	})

	got := jobs.ChangedFields(diff)
	want := []string{"pantone", "press", "quantityPlanned"}
	if !slices.Equal(got, want) {
		t.Fatalf("changed fields = %v, want %v", got, want)
	}
	if diff["press"].From != "X" || diff["press"].To != "Y" {
		t.Fatalf("press change = %+v", diff["press"])
	}
	if diff["quantityPlanned"].From != 500 || diff["quantityPlanned"].To != 750 {
		t.Fatalf("quantity change = %+v", diff["quantityPlanned"])
	}
}

func TestDiffCoversEveryEditableField(t *testing.T) {
	before := baseJob()
	changes := jobs.Changes{
		OT:               ptr("OT-2"),
		Client:           ptr("Other"),
		JobType:          ptr("boxes"),
		QuantityPlanned:  ptr(1),
		Comments:         ptr("c"),
		OperatorComments: ptr("oc"),
		MachineSpeed:     ptr("fast"),
		Pantone:          ptr(true),
		Barniz:           ptr(true),
		Is4x0:            ptr(true),
		Is4x4:            ptr(true),
		Status:           ptr(jobs.StatusRunning),
		Press:            ptr("Y"),
		Priority:         ptr(7),
		StartedByUserID:  ptr("u9"),
	}
	diff := jobs.Diff(before, changes)
	if len(diff) != 15 {
		t.Fatalf("diff has %d fields, want 15: %v", len(diff), jobs.ChangedFields(diff))
	}
}

func TestApplyAppendsTimeline(t *testing.T) {
	job := baseJob()
	original := job.Clone()

	appended := jobs.Changes{
		Status:   ptr(jobs.StatusPaused),
		Timeline: []timeline.Event{{Type: timeline.PauseStart}, {Type: timeline.PauseEnd}},
	}.Apply(job)

	if len(appended) != 2 {
		t.Fatalf("appended = %d, want 2", len(appended))
	}
	if len(job.Timeline) != 3 || job.Timeline[0].Type != timeline.Creation {
		t.Fatalf("timeline = %+v", job.Timeline)
	}
	if job.Status != jobs.StatusPaused {
		t.Fatalf("status = %q", job.Status)
	}
	if len(original.Timeline) != 1 || original.Status != jobs.StatusQueued {
		t.Fatal("clone was mutated by Apply")
	}
}

func TestChangesEmpty(t *testing.T) {
	if !(jobs.Changes{}).Empty() {
		t.Fatal("zero Changes should be empty")
	}
	if (jobs.Changes{Barniz: ptr(false)}).Empty() {
		t.Fatal("explicit false is a change")
	}
	if (jobs.Changes{Timeline: []timeline.Event{{}}}).Empty() {
		t.Fatal("timeline entries are a change")
	}
}

func TestParseStatusAliases(t *testing.T) {
	cases := map[string]jobs.Status{
		"queued":    jobs.StatusQueued,
		" En Cola ": jobs.StatusQueued,
		"terminado": jobs.StatusFinished,
		"CANCELLED": jobs.StatusCancelled,
		"en curso":  jobs.StatusRunning,
	}
	for in, want := range cases {
		got, ok := jobs.ParseStatus(in)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := jobs.ParseStatus("lost"); ok {
		t.Fatal("unknown status accepted")
	}
}

func TestEditableBy(t *testing.T) {
	owned := &jobs.Job{CreatedBy: "u1"}
	if !owned.EditableBy(jobs.Actor{UserID: "u1"}) {
		t.Fatal("creator must be able to edit")
	}
	if owned.EditableBy(jobs.Actor{UserID: "u2"}) {
		t.Fatal("other users must not edit an owned job")
	}
	legacy := &jobs.Job{}
	if !legacy.EditableBy(jobs.Actor{UserID: "u2"}) {
		t.Fatal("jobs without an owner are editable by anyone")
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &jobs.Error{Kind: jobs.KindConflict, Op: "create job", Msg: "dup"})
	if !errors.Is(err, jobs.ErrConflict) || errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("sentinel matching failed for %v", err)
	}
	if jobs.KindOf(err) != jobs.KindConflict {
		t.Fatalf("KindOf = %q", jobs.KindOf(err))
	}
	if jobs.KindOf(errors.New("boom")) != jobs.KindInternal {
		t.Fatal("untyped errors are internal")
	}
	if got := err.Error(); got != "wrapped: create job: dup" {
		t.Fatalf("message = %q", got)
	}
}
