package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pressline/internal/api"
	"pressline/internal/auth"
	"pressline/internal/jobs"
	"pressline/internal/metrics"
	"pressline/internal/storeaccess"
	"pressline/internal/testsupport"
	"pressline/internal/users"
)

const tokenSecret = "api-test-secret-0123456789"

type harness struct {
	server *httptest.Server
	stack  *storeaccess.Stack
	ana    *users.User
	ben    *users.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithTokenSecret(tokenSecret), testsupport.WithBasicAuth(true))
	collectors := metrics.New()
	stack := testsupport.MustOpenStack(t, cfg, storeaccess.WithCollectors(collectors))

	srv, err := api.NewServer(api.Options{
		Jobs:     stack.Jobs,
		Identity: auth.NewVerifier(cfg.Auth, stack.Users),
		Health:   stack.Backend,
		Metrics:  collectors.Handler(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{
		server: ts,
		stack:  stack,
		ana:    testsupport.MustRegister(t, stack.Users, "Ana", "E1"),
		ben:    testsupport.MustRegister(t, stack.Users, "Ben", "E2"),
	}
}

func bearer(t *testing.T, user *users.User) string {
	t.Helper()
	claims := auth.Claims{
		Name: user.Name, Role: string(user.Role), EmployeeID: user.EmployeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    "pressline",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tokenSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

func (h *harness) do(t *testing.T, method, path, authz string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeJob(t *testing.T, data []byte) *jobs.View {
	t.Helper()
	var payload api.JobResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode job: %v (%s)", err, data)
	}
	return payload.Job
}

func decodeError(t *testing.T, data []byte) api.ErrorResponse {
	t.Helper()
	var payload api.ErrorResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode error: %v (%s)", err, data)
	}
	return payload
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	ana := bearer(t, h.ana)

	resp, body := h.do(t, http.MethodPost, "/api/jobs", ana, map[string]any{
		"ot": "OT-100", "client": "ACME", "jobType": "labels", "quantityPlanned": 2500, "press": "KBA",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
	created := decodeJob(t, body)
	if created.Priority != 1 || created.CreatedByUser == nil || created.CreatedByUser.Name != "Ana" {
		t.Fatalf("created = %+v", created)
	}

	resp, body = h.do(t, http.MethodPost, "/api/jobs/"+created.ID+"/timeline", ana, map[string]any{
		"type": "setup_start", "timestamp": time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("timeline status = %d: %s", resp.StatusCode, body)
	}
	if job := decodeJob(t, body); !job.InSetup || job.SetupCount != 1 {
		t.Fatalf("after setup_start: %+v", job)
	}

	resp, body = h.do(t, http.MethodPatch, "/api/jobs/"+created.ID, ana, map[string]any{"comments": "rush"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d: %s", resp.StatusCode, body)
	}
	if job := decodeJob(t, body); job.Comments != "rush" || len(job.Timeline) != 3 {
		t.Fatalf("after update: comments=%q timeline=%d", job.Comments, len(job.Timeline))
	}

	resp, body = h.do(t, http.MethodGet, "/api/jobs?press=KBA", ana, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d: %s", resp.StatusCode, body)
	}
	var list api.JobListResponse
	if err := json.Unmarshal(body, &list); err != nil || len(list.Jobs) != 1 {
		t.Fatalf("list = %s, %v", body, err)
	}

	resp, body = h.do(t, http.MethodDelete, "/api/jobs/"+created.ID, ana, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d: %s", resp.StatusCode, body)
	}
	resp, body = h.do(t, http.MethodGet, "/api/jobs/"+created.ID, ana, nil)
	if resp.StatusCode != http.StatusNotFound || decodeError(t, body).Code != api.CodeNotFound {
		t.Fatalf("get after delete = %d: %s", resp.StatusCode, body)
	}
}

func TestErrorCodes(t *testing.T) {
	h := newHarness(t)
	ana, ben := bearer(t, h.ana), bearer(t, h.ben)

	_, body := h.do(t, http.MethodPost, "/api/jobs", ana, map[string]any{
		"ot": "OT-1", "client": "ACME", "jobType": "labels", "press": "KBA",
	})
	job := decodeJob(t, body)

	cases := []struct {
		name   string
		method string
		path   string
		authz  string
		body   any
		status int
		code   string
	}{
		{"no credentials", http.MethodGet, "/api/jobs", "", nil, http.StatusUnauthorized, api.CodeUnauthorized},
		{"bad token", http.MethodGet, "/api/jobs", "Bearer nope", nil, http.StatusUnauthorized, api.CodeUnauthorized},
		{"duplicate ot", http.MethodPost, "/api/jobs", ben, map[string]any{"ot": "OT-1", "client": "B", "jobType": "t"}, http.StatusConflict, api.CodeConflict},
		{"missing fields", http.MethodPost, "/api/jobs", ana, map[string]any{"ot": "OT-2"}, http.StatusBadRequest, api.CodeValidationFailed},
		{"unknown field", http.MethodPost, "/api/jobs", ana, `{"ot":"x","client":"c","jobType":"t","colour":"red"}`, http.StatusBadRequest, api.CodeValidationFailed},
		{"malformed json", http.MethodPost, "/api/jobs", ana, `{"ot":`, http.StatusBadRequest, api.CodeValidationFailed},
		{"not owner", http.MethodPatch, "/api/jobs/" + job.ID, ben, map[string]any{"press": "Other"}, http.StatusForbidden, api.CodeForbidden},
		{"not owner delete", http.MethodDelete, "/api/jobs/" + job.ID, ben, nil, http.StatusForbidden, api.CodeForbidden},
		{"empty patch", http.MethodPatch, "/api/jobs/" + job.ID, ana, map[string]any{}, http.StatusBadRequest, api.CodeValidationFailed},
		{"system event", http.MethodPost, "/api/jobs/" + job.ID + "/timeline", ana, map[string]any{"type": "edit", "timestamp": time.Now()}, http.StatusBadRequest, api.CodeValidationFailed},
		{"missing job", http.MethodGet, "/api/jobs/does-not-exist", ana, nil, http.StatusNotFound, api.CodeNotFound},
		{"bad status filter", http.MethodGet, "/api/jobs?status=lost", ana, nil, http.StatusBadRequest, api.CodeValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := h.do(t, tc.method, tc.path, tc.authz, tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tc.status, body)
			}
			if got := decodeError(t, body).Code; got != tc.code {
				t.Fatalf("code = %q, want %q", got, tc.code)
			}
		})
	}
}

func TestValidationFieldsAreReported(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodPost, "/api/jobs", bearer(t, h.ana), map[string]any{
		"ot": "OT-1", "client": "c", "jobType": "t", "quantityPlanned": -5, "priority": 0,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	fields := decodeError(t, body).Fields
	if _, ok := fields["quantityPlanned"]; !ok {
		t.Fatalf("fields = %v", fields)
	}
	if _, ok := fields["priority"]; !ok {
		t.Fatalf("fields = %v", fields)
	}
}

func TestBasicAuthAndHealth(t *testing.T) {
	h := newHarness(t)

	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/api/jobs", nil)
	req.SetBasicAuth("E2", testsupport.Password)
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("basic auth status = %d", resp.StatusCode)
	}

	resp, body := h.do(t, http.MethodGet, "/api/health", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("health = %d: %s", resp.StatusCode, body)
	}

	resp, body = h.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "pressline_reassign_renumbered_jobs_total") {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}

type brokenJobs struct{ api.JobService }

func (brokenJobs) List(context.Context, jobs.Filter) ([]*jobs.View, error) {
	return nil, errors.New("disk on fire at /var/lib/secret")
}

type anyone struct{}

func (anyone) Identify(*http.Request) (jobs.Actor, error) { return jobs.Actor{UserID: "u"}, nil }

func TestInternalErrorsDoNotLeak(t *testing.T) {
	srv, err := api.NewServer(api.Options{Jobs: brokenJobs{}, Identity: anyone{}})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
	if got := decodeError(t, rec.Body.Bytes()).Code; got != api.CodeInternal {
		t.Fatalf("code = %q", got)
	}
}
