package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CorreiaLuan/taskscheduler/internal/schtask"
)

// fakeHost simulates the scheduler backend for one named task, mirroring the
// exit-code contract of the real control scripts.
type fakeHost struct {
	present      bool
	failRegister bool
	listPayload  string
	listExit     int
	listStderr   string
}

func (h *fakeHost) Run(_ context.Context, script string) (schtask.Result, error) {
	switch {
	case strings.HasPrefix(script, "$ErrorActionPreference='SilentlyContinue'; Get-ScheduledTask"):
		if h.present {
			return schtask.Result{ExitCode: 0}, nil
		}
		return schtask.Result{ExitCode: 1}, nil
	case strings.Contains(script, "Register-ScheduledTask"):
		if h.failRegister {
			return schtask.Result{ExitCode: 1, Stderr: "Register-ScheduledTask : Access is denied."}, nil
		}
		h.present = true
		return schtask.Result{}, nil
	case strings.HasPrefix(script, "Unregister-ScheduledTask"):
		h.present = false
		return schtask.Result{}, nil
	case strings.Contains(script, "ConvertTo-Json"):
		return schtask.Result{Stdout: h.listPayload, Stderr: h.listStderr, ExitCode: h.listExit}, nil
	default:
		return schtask.Result{}, nil
	}
}

func newTestServer(host *fakeHost) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tasks := schtask.NewService(host)
	return NewServer("127.0.0.1:0", "", tasks, nil, logger)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateTaskEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeHost{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/tasks",
		`{"name":"nightly-backup","executable":"python.exe","script":"backup.py","frequency":"Daily","at":"02:30"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/tasks/nightly-backup/exists", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("exists status = %d", rec.Code)
	}
	var existsBody map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &existsBody); err != nil {
		t.Fatalf("decode exists response: %v", err)
	}
	if !existsBody["exists"] {
		t.Fatal("task should exist after create")
	}
}

func TestCreateTaskConflicts(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeHost{present: true})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/tasks",
		`{"name":"nightly-backup","executable":"python.exe","script":"backup.py","frequency":"Daily","at":"02:30"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeHost{})

	cases := map[string]string{
		"bad time":      `{"name":"x","executable":"a","script":"b","at":"25:00"}`,
		"bad frequency": `{"name":"x","executable":"a","script":"b","frequency":"Hourly","at":"02:30"}`,
		"bad on_date":   `{"name":"x","executable":"a","script":"b","at":"02:30","frequency":"Once","on_date":"tomorrow"}`,
		"empty name":    `{"executable":"a","script":"b","at":"02:30"}`,
	}
	for name, body := range cases {
		name, body := name, body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/tasks", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateTaskSurfacesSchedulerError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeHost{failRegister: true})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/tasks",
		`{"name":"nightly-backup","executable":"python.exe","script":"backup.py","at":"02:30"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Access is denied.") {
		t.Fatalf("diagnostics lost: %s", rec.Body.String())
	}
}

func TestMutationsOnMissingTaskReturn404(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeHost{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/v1/tasks/ghost"},
		{http.MethodPost, "/v1/tasks/ghost/run"},
		{http.MethodPost, "/v1/tasks/ghost/enable"},
		{http.MethodPost, "/v1/tasks/ghost/disable"},
		{http.MethodPost, "/v1/tasks/ghost/stop"},
	} {
		tc := tc
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, srv.Handler(), tc.method, tc.path, "")
			if rec.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListTasksEndpoint(t *testing.T) {
	t.Parallel()
	host := &fakeHost{listPayload: `[
	  {"Name": "nightly-backup", "Status": 3, "LastRunResult": 0, "Author": "ops",
	   "Triggers": [{"Type": "CalendarTrigger", "StartBoundary": "2026-01-05T02:30:00"}],
	   "Actions": [{"Command": "C:\\Python\\python.exe", "Arguments": "backup.py"}]},
	  {"Name": "defrag", "Status": 1, "LastRunResult": 267011, "Author": "system",
	   "Actions": [{"Command": "defrag.exe"}]}
	]`}
	srv := newTestServer(host)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/tasks?only_python=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var tasks []taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "nightly-backup" {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[0].Status != schtask.StatusReady {
		t.Fatalf("status = %q, want %q", tasks[0].Status, schtask.StatusReady)
	}
}

func TestListFailureReturnsBadGateway(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeHost{listExit: 1, listStderr: "The Task Scheduler service is not available."})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/tasks", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareGuardsRoutes(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tasks := schtask.NewService(&fakeHost{present: true})
	srv := NewServer("127.0.0.1:0", "secret", tasks, nil, logger)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/tasks/nightly-backup/exists", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/nightly-backup/exists", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with bearer token", rr.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/tasks/nightly-backup/exists?token=secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with query token", rec.Code)
	}
}
