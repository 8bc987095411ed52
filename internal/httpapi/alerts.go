package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

type alertResponse struct {
	ID             string     `json:"id"`
	RepoID         string     `json:"repoId"`
	RuleName       string     `json:"ruleName"`
	Severity       string     `json:"severity"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	MetricValue    float64    `json:"metricValue"`
	Threshold      float64    `json:"threshold"`
	TriggeredAt    time.Time  `json:"triggeredAt"`
	SentAt         *time.Time `json:"sentAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")
	if alertID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid alert id"})
		return
	}

	actor := r.Header.Get("X-Acknowledged-By")
	if actor == "" {
		actor = "anonymous"
	}

	alert, err := s.alerts.Acknowledge(ctx, alertID, actor, s.clock.Now().UTC())
	if err != nil {
		if errors.Is(err, ports.ErrAlertNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "alert not found"})
			return
		}
		logging.Error(ctx, "failed to acknowledge alert",
			slog.String("alertId", alertID), slog.Any("error", errs.Loggable(err)))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	logging.Info(ctx, "alert acknowledged", slog.String("alertId", alertID))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"alert": alertResponse{
			ID:             alert.ID,
			RepoID:         alert.RepoID,
			RuleName:       alert.RuleName,
			Severity:       alert.Severity,
			Title:          alert.Title,
			Message:        alert.Message,
			MetricValue:    alert.MetricValue,
			Threshold:      alert.Threshold,
			TriggeredAt:    alert.TriggeredAt,
			SentAt:         alert.SentAt,
			AcknowledgedAt: alert.AcknowledgedAt,
			AcknowledgedBy: alert.AcknowledgedBy,
		},
	})
}
