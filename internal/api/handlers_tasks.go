package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CorreiaLuan/taskscheduler/internal/schtask"
	"github.com/CorreiaLuan/taskscheduler/internal/store"
)

type createTaskRequest struct {
	Name        string   `json:"name"`
	Executable  string   `json:"executable"`
	Script      string   `json:"script"`
	Args        []string `json:"args"`
	Frequency   string   `json:"frequency"`
	At          string   `json:"at"`
	OnDate      string   `json:"on_date"`
	OnDays      []string `json:"on_days"`
	Description string   `json:"description"`
	User        string   `json:"user"`
	Password    string   `json:"password"`
	Overwrite   bool     `json:"overwrite"`
}

type actionResponse struct {
	Command          string `json:"command"`
	Arguments        string `json:"arguments,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
}

type taskResponse struct {
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Author        string           `json:"author,omitempty"`
	Status        string           `json:"status"`
	LastRunResult string           `json:"last_run_result,omitempty"`
	NextRunTime   string           `json:"next_run_time,omitempty"`
	LastRunTime   string           `json:"last_run_time,omitempty"`
	Created       string           `json:"created,omitempty"`
	Triggers      string           `json:"triggers,omitempty"`
	Actions       []actionResponse `json:"actions,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	spec, err := specFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	started := time.Now()
	err = s.tasks.Create(r.Context(), spec)
	s.record(r.Context(), "create", spec.Name, err, started)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": spec.Name})
}

func specFromRequest(req *createTaskRequest) (*schtask.TaskSpec, error) {
	frequency, err := schtask.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, err
	}
	at, err := schtask.ParseTimeOfDay(req.At)
	if err != nil {
		return nil, err
	}
	spec := &schtask.TaskSpec{
		Name:          strings.TrimSpace(req.Name),
		Executable:    req.Executable,
		Script:        req.Script,
		Args:          req.Args,
		Frequency:     frequency,
		At:            at,
		OnDays:        req.OnDays,
		Description:   req.Description,
		RunAsUser:     req.User,
		RunAsPassword: req.Password,
		Overwrite:     req.Overwrite,
	}
	if req.OnDate != "" {
		day, err := time.Parse("2006-01-02", req.OnDate)
		if err != nil {
			return nil, errors.New("on_date must be YYYY-MM-DD")
		}
		spec.OnDate = &day
	}
	return spec, spec.Validate()
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	opts := schtask.ListOptions{
		Author:       r.URL.Query().Get("author"),
		NameContains: r.URL.Query().Get("contains"),
		OnlyPython:   parseBoolParam(r.URL.Query().Get("only_python")),
	}
	records, err := s.tasks.List(r.Context(), opts)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	res := make([]taskResponse, 0, len(records))
	for i := range records {
		res = append(res, taskToResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "taskName")
	started := time.Now()
	err := s.tasks.Delete(r.Context(), name)
	s.record(r.Context(), "delete", name, err, started)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskExists(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "taskName")
	present, err := s.tasks.Exists(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": present})
}

// taskActionHandler builds the handler for single-purpose task operations
// that share the same request/response shape.
func (s *Server) taskActionHandler(op string, action func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "taskName")
		started := time.Now()
		err := action(r.Context(), name)
		s.record(r.Context(), op, name, err, started)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": name, "op": op})
	}
}

// record appends the invocation to the operation history, best-effort.
func (s *Server) record(ctx context.Context, op, name string, opErr error, started time.Time) {
	if s.history == nil {
		return
	}
	rec := &store.Operation{
		Op:       op,
		TaskName: name,
		OK:       opErr == nil,
		Duration: time.Since(started),
	}
	if opErr != nil {
		rec.Detail = opErr.Error()
	}
	if err := s.history.InsertOperation(ctx, rec); err != nil {
		s.logger.Warn("record operation", "op", op, "task", name, "err", err)
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		regErr  *schtask.RegistrationError
		opErr   *schtask.OperationError
		listErr *schtask.ListingError
	)
	switch {
	case errors.Is(err, schtask.ErrMalformedInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, schtask.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, schtask.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.As(err, &regErr), errors.As(err, &opErr), errors.As(err, &listErr):
		// The host's diagnostic text goes through verbatim.
		writeError(w, http.StatusBadGateway, "scheduler_error", err.Error())
	default:
		s.logger.Error("task operation", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func taskToResponse(rec *schtask.TaskRecord) taskResponse {
	res := taskResponse{
		Name:          rec.Name,
		Description:   rec.Description,
		Author:        rec.Author,
		Status:        rec.Status,
		LastRunResult: rec.LastRunResult,
		NextRunTime:   schtask.FormatHostTime(rec.NextRunTime),
		LastRunTime:   schtask.FormatHostTime(rec.LastRunTime),
		Created:       rec.Created,
		Triggers:      rec.TriggerSummary(),
	}
	for _, a := range rec.Actions {
		res.Actions = append(res.Actions, actionResponse{
			Command:          a.Command,
			Arguments:        a.Arguments,
			WorkingDirectory: a.WorkingDirectory,
		})
	}
	return res
}

func parseBoolParam(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
