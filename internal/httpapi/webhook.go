package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"sentinel/internal/bootstrap/logging"
	"sentinel/internal/errs"
	"sentinel/internal/usecase/ingest"
)

const maxWebhookBody = 5 << 20

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if deliveryID == "" {
		deliveryID = "unknown"
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("deliveryId", deliveryID), slog.String("event", event))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}

	if !ingest.VerifySignature(s.cfg.GitHub.WebhookSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		logging.Warn(ctx, "invalid webhook signature")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid signature"})
		return
	}

	result, err := s.router.Route(ctx, event, deliveryID, body)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidPayload) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
		logging.Error(ctx, "webhook routing failed", slog.Any("error", errs.Loggable(err)))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	if result.Skipped != "" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": result.Skipped})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "queued": result.Queued})
}
