package metrics_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pressline/internal/jobs"
	"pressline/internal/metrics"
)

func TestObserveMutationLabelsByKind(t *testing.T) {
	c := metrics.New()
	c.ObserveMutation("create", nil)
	c.ObserveMutation("create", nil)
	c.ObserveMutation("update", fmt.Errorf("wrap: %w", jobs.ErrForbidden))
	c.ObserveMutation("delete", errors.New("boom"))

	expected := `
# HELP pressline_job_mutations_total Job mutations by operation and outcome kind.
# TYPE pressline_job_mutations_total counter
pressline_job_mutations_total{op="create",result="ok"} 2
pressline_job_mutations_total{op="delete",result="internal"} 1
pressline_job_mutations_total{op="update",result="forbidden"} 1
`
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "pressline_job_mutations_total"); err != nil {
		t.Fatalf("unexpected mutation metrics: %v", err)
	}
}

func TestObserveReassign(t *testing.T) {
	c := metrics.New()
	c.ObserveReassign("X", 3, 10*time.Millisecond, nil)
	c.ObserveReassign("Y", 0, time.Millisecond, errors.New("locked"))

	expected := `
# HELP pressline_reassign_runs_total Press queue renumbering runs by outcome.
# TYPE pressline_reassign_runs_total counter
pressline_reassign_runs_total{result="error"} 1
pressline_reassign_runs_total{result="ok"} 1
# HELP pressline_reassign_renumbered_jobs_total Queued jobs whose priority was rewritten.
# TYPE pressline_reassign_renumbered_jobs_total counter
pressline_reassign_renumbered_jobs_total 3
`
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"pressline_reassign_runs_total", "pressline_reassign_renumbered_jobs_total"); err != nil {
		t.Fatalf("unexpected reassign metrics: %v", err)
	}
	got, err := testutil.GatherAndCount(c.Registry(), "pressline_reassign_duration_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected one duration histogram, got %d", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := metrics.New()
	c.ObserveMutation("create", nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pressline_job_mutations_total{op="create",result="ok"} 1`) {
		t.Fatalf("expected mutation counter in body, got %q", rec.Body.String())
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := metrics.New()
	b := metrics.New()
	a.ObserveMutation("create", nil)
	got, err := testutil.GatherAndCount(b.Registry(), "pressline_job_mutations_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected fresh registry, got %d series", got)
	}
}
