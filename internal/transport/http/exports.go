package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type ExportsService interface {
	Create(ctx context.Context, organizerID, eventID string, in app.CreateExportInput) (domain.Export, error)
	Get(ctx context.Context, organizerID, id string) (domain.Export, error)
	Download(ctx context.Context, organizerID, id string) (app.DownloadResult, error)
}

type exportsHandler struct {
	svc     ExportsService
	scope   *scope
	baseURL string
}

type exportJSON struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
	Download string `json:"download"`
}

func (h *exportsHandler) toJSON(org domain.Organizer, ev domain.Event, e domain.Export) exportJSON {
	return exportJSON{
		ID:       e.ID,
		Provider: e.Provider,
		Status:   string(e.Status),
		Download: fmt.Sprintf("%s/api/v1/organizers/%s/events/%s/exports/%s/download",
			h.baseURL, org.Slug, ev.Slug, e.ID),
	}
}

// create accepts the job and answers 202; a worker picks it up later.
func (h *exportsHandler) create(w http.ResponseWriter, r *http.Request) {
	org, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canViewOrders); err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	e, err := h.svc.Create(r.Context(), org.ID, ev.ID, app.CreateExportInput{Provider: req.Provider})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.toJSON(org, ev, e))
}

func (h *exportsHandler) detail(w http.ResponseWriter, r *http.Request) {
	org, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canViewOrders); err != nil {
		respondError(w, err)
		return
	}
	e, err := h.svc.Get(r.Context(), org.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toJSON(org, ev, e))
}

// download implements the async poll protocol: 409 while the job runs, 410
// once it failed, 404 after the artifact expired, 200 streaming otherwise.
func (h *exportsHandler) download(w http.ResponseWriter, r *http.Request) {
	org, _, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canViewOrders); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.svc.Download(r.Context(), org.ID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrExportStillRunning) {
			writeJSON(w, http.StatusConflict, map[string]string{"status": string(result.Export.Status)})
			return
		}
		respondError(w, err)
		return
	}
	defer result.Content.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Export.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, result.Content)
}
