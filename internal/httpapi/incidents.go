package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/ports"
)

type createIncidentRequest struct {
	RepoID             string          `json:"repoId"`
	ExternalID         string          `json:"externalId"`
	Title              string          `json:"title"`
	Severity           string          `json:"severity"`
	Status             string          `json:"status"`
	DetectedAt         *time.Time      `json:"detectedAt"`
	SuspectedCommitSHA string          `json:"suspectedCommitSha"`
	AffectedFiles      []string        `json:"affectedFiles"`
	AIAttributed       bool            `json:"aiAttributed"`
	RootCause          string          `json:"rootCause"`
	Metadata           json.RawMessage `json:"metadata"`
}

func (s *Server) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if req.RepoID == "" || req.Title == "" || req.Severity == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "repoId, title and severity are required"})
		return
	}

	if _, err := s.repos.Get(ctx, req.RepoID); err != nil {
		if errors.Is(err, ports.ErrRepositoryNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "repository not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	detectedAt := s.clock.Now().UTC()
	if req.DetectedAt != nil {
		detectedAt = req.DetectedAt.UTC()
	}
	affected := "[]"
	if req.AffectedFiles != nil {
		if encoded, err := json.Marshal(req.AffectedFiles); err == nil {
			affected = string(encoded)
		}
	}
	metadata := "{}"
	if len(req.Metadata) > 0 {
		metadata = string(req.Metadata)
	}

	incident, err := s.incidents.Create(ctx, ports.IncidentCreate{
		RepoID:             req.RepoID,
		ExternalID:         req.ExternalID,
		Title:              req.Title,
		Severity:           req.Severity,
		Status:             req.Status,
		DetectedAt:         detectedAt,
		SuspectedCommitSHA: req.SuspectedCommitSHA,
		AffectedFilesJSON:  affected,
		AIAttributed:       req.AIAttributed,
		RootCause:          req.RootCause,
		MetadataJSON:       metadata,
	})
	if err != nil {
		logging.Error(ctx, "failed to create incident", slog.Any("error", errs.Loggable(err)))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	eventMeta, _ := json.Marshal(map[string]string{
		"incidentId": incident.ID,
		"severity":   incident.Severity,
	})
	if _, err := s.events.Create(ctx, ports.CodeEventCreate{
		RepoID:       req.RepoID,
		EventType:    ports.EventIncident,
		Timestamp:    detectedAt,
		CommitSHA:    req.SuspectedCommitSHA,
		MetadataJSON: string(eventMeta),
	}); err != nil {
		logging.Error(ctx, "failed to record incident event",
			slog.String("incidentId", incident.ID), slog.Any("error", errs.Loggable(err)))
	}

	if req.AIAttributed {
		if err := s.triggers.IncidentAI(ctx, req.RepoID, req.Title, incident.ID); err != nil {
			logging.Error(ctx, "failed to raise incident alert",
				slog.String("incidentId", incident.ID), slog.Any("error", errs.Loggable(err)))
		}
	}

	logging.Info(ctx, "incident recorded",
		slog.String("incidentId", incident.ID), slog.Bool("aiAttributed", req.AIAttributed))
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": incident.ID})
}
