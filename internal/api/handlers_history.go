package api

import (
	"net/http"
	"time"
)

type operationResponse struct {
	ID         string `json:"id"`
	Op         string `json:"op"`
	TaskName   string `json:"task_name"`
	OK         bool   `json:"ok"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

type snapshotResponse struct {
	ID          string `json:"id"`
	Total       int    `json:"total"`
	PythonTotal int    `json:"python_total"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "operation history is disabled")
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	taskName := r.URL.Query().Get("task")

	ops, err := s.history.ListOperations(r.Context(), taskName, limit, offset)
	if err != nil {
		s.logger.Error("list operations", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list operations")
		return
	}
	res := make([]operationResponse, 0, len(ops))
	for _, op := range ops {
		res = append(res, operationResponse{
			ID:         op.ID,
			Op:         op.Op,
			TaskName:   op.TaskName,
			OK:         op.OK,
			Detail:     op.Detail,
			DurationMS: op.Duration.Milliseconds(),
			CreatedAt:  op.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "operation history is disabled")
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	snaps, err := s.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		s.logger.Error("list snapshots", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list snapshots")
		return
	}
	res := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		res = append(res, snapshotResponse{
			ID:          snap.ID,
			Total:       snap.Total,
			PythonTotal: snap.PythonTotal,
			CreatedAt:   snap.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, res)
}
