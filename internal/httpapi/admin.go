package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

// handleAdminMetrics enqueues a manual run of one of the scheduled jobs.
// The job id embeds the trigger time, so distinct manual runs are distinct
// jobs while accidental double-submits within the same millisecond are not.
func (s *Server) handleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	action := chi.URLParam(r, "action")
	query := r.URL.Query()

	var jobName string
	payload := ports.ScheduledJob{RepoID: query.Get("repoId")}
	switch action {
	case "compute":
		jobName = "compute-metrics"
		payload.Date = query.Get("date")
		payload.StartDate = query.Get("startDate")
		payload.EndDate = query.Get("endDate")
	case "survival":
		jobName = "track-survival"
	case "saturation":
		jobName = "monitor-saturation"
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "unknown action",
			"valid": []string{"compute", "survival", "saturation"},
		})
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	jobID := fmt.Sprintf("manual-%s-%d", action, s.clock.Now().UnixMilli())
	if err := s.queue.Enqueue(ctx, ports.QueueScheduled, ports.Job{
		ID:      jobID,
		Name:    jobName,
		Payload: data,
	}); err != nil {
		logging.Error(ctx, "admin action failed",
			slog.String("action", action), slog.Any("error", errs.Loggable(err)))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	logging.Info(ctx, "manual job queued",
		slog.String("action", action), slog.String("jobId", jobID))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobId": jobID, "queued": 1})
}
