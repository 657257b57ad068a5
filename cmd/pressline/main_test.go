package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pressline/internal/config"
	"pressline/internal/jobs"
	"pressline/internal/priority"
	"pressline/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithTokenSecret("cli-test-secret"))
	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("PRESSLINE_USER_PASSWORD", "")

	return &cliTestEnv{cfg: cfg, configPath: testsupport.WriteConfig(t, cfg)}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (env *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("pressline %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func (env *cliTestEnv) listJobs(t *testing.T) []*jobs.View {
	t.Helper()
	var views []*jobs.View
	out := env.mustRun(t, "jobs", "list", "--json")
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode jobs list: %v (%s)", err, out)
	}
	return views
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestJobWorkflow(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "users", "add", "--name", "Ana", "--employee-id", "E1", "--password", testsupport.Password)
	requireContains(t, out, "Registered Ana (E1) as operator")
	env.mustRun(t, "users", "add", "--name", "Ben", "--employee-id", "E2", "--password", testsupport.Password, "--role", "supervisor")
	requireContains(t, env.mustRun(t, "users", "list"), "Supervisor")

	out = env.mustRun(t, "--as", "E1", "jobs", "create", "--ot", "OT-1", "--client", "ACME", "--type", "labels", "--press", "KBA")
	requireContains(t, out, "at priority 1")
	out = env.mustRun(t, "--as", "E1", "jobs", "create", "--ot", "OT-2", "--client", "ACME", "--type", "labels", "--press", "KBA", "--4x4")
	requireContains(t, out, "at priority 2")

	views := env.listJobs(t)
	if len(views) != 2 || views[0].OT != "OT-1" || views[1].OT != "OT-2" {
		t.Fatalf("jobs = %+v", views)
	}
	first, second := views[0].ID, views[1].ID

	requireContains(t, env.mustRun(t, "jobs", "list"), "OT-2")

	out = env.mustRun(t, "--as", "E1", "jobs", "update", first, "--comments", "rush", "--started-by", "E2")
	requireContains(t, out, "Updated job "+first)

	out = env.mustRun(t, "--as", "E1", "jobs", "event", first, "setup_start", "--detail", "note=plates")
	requireContains(t, out, "setups 1")

	out = env.mustRun(t, "jobs", "show", first)
	requireContains(t, out, "Setup Start")
	requireContains(t, out, "Job edited by Ana")
	requireContains(t, out, "changed: comments, startedByUserId")
	requireContains(t, out, "Ben (E2)")

	out = env.mustRun(t, "--as", "E1", "jobs", "delete", first)
	requireContains(t, out, "Deleted job "+first)

	views = env.listJobs(t)
	if len(views) != 1 || views[0].ID != second || views[0].Priority != 1 {
		t.Fatalf("after delete: %+v", views)
	}
	requireContains(t, env.mustRun(t, "queue", "check"), "1 queued, dense")
}

func TestMutationsRequireKnownOwner(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "users", "add", "--name", "Ana", "--employee-id", "E1", "--password", testsupport.Password)
	env.mustRun(t, "users", "add", "--name", "Ben", "--employee-id", "E2", "--password", testsupport.Password)

	if _, err := env.run(t, "jobs", "create", "--ot", "OT-1", "--client", "ACME", "--type", "labels"); err == nil || !strings.Contains(err.Error(), "--as") {
		t.Fatalf("create without --as err = %v", err)
	}
	if _, err := env.run(t, "--as", "E9", "jobs", "create", "--ot", "OT-1", "--client", "ACME", "--type", "labels"); err == nil {
		t.Fatal("expected unknown employee to be rejected")
	}

	env.mustRun(t, "--as", "E1", "jobs", "create", "--ot", "OT-1", "--client", "ACME", "--type", "labels")
	id := env.listJobs(t)[0].ID

	_, err := env.run(t, "--as", "E2", "jobs", "update", id, "--comments", "mine now")
	if !errors.Is(err, jobs.ErrForbidden) {
		t.Fatalf("update by non-owner err = %v", err)
	}
	_, err = env.run(t, "--as", "E1", "jobs", "create", "--ot", "OT-1", "--client", "Other", "--type", "labels")
	if !errors.Is(err, jobs.ErrConflict) {
		t.Fatalf("duplicate ot err = %v", err)
	}
	if _, err := env.run(t, "--as", "E1", "jobs", "update", id); err == nil {
		t.Fatal("expected update without flags to fail")
	}
}

func TestQueueCheckAndReassign(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "users", "add", "--name", "Ana", "--employee-id", "E1", "--password", testsupport.Password)
	env.mustRun(t, "--as", "E1", "jobs", "create", "--ot", "OT-1", "--client", "ACME", "--type", "labels", "--press", "KBA")
	env.mustRun(t, "--as", "E1", "jobs", "create", "--ot", "OT-2", "--client", "ACME", "--type", "labels", "--press", "KBA")
	views := env.listJobs(t)

	store := testsupport.MustOpenStore(t, env.cfg)
	if err := store.ApplyPriorities(context.Background(), "KBA", []priority.Slot{
		{JobID: views[0].ID, Priority: 3},
		{JobID: views[1].ID, Priority: 7},
	}); err != nil {
		t.Fatalf("ApplyPriorities: %v", err)
	}

	requireContains(t, env.mustRun(t, "queue", "check"), "priorities 3,7")

	requireContains(t, env.mustRun(t, "queue", "reassign"), "Press KBA: 2 queued")

	var reports []priority.Report
	out := env.mustRun(t, "queue", "check", "--json")
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if len(reports) != 1 || !reports[0].Dense {
		t.Fatalf("reports = %+v", reports)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "config", "validate")
	requireContains(t, out, "Record store (sqlite)")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out = env.mustRun(t, "config", "init", "--path", target)
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestHumanLabel(t *testing.T) {
	cases := map[string]string{
		"setup_start": "Setup Start",
		"queued":      "Queued",
		"":            "-",
	}
	for in, want := range cases {
		if got := humanLabel(in); got != want {
			t.Fatalf("humanLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
