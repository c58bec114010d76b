package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/service"
)

// ContentHandler serves site settings and the funeral program.
type ContentHandler struct {
	content *service.ContentService
	logger  *slog.Logger
}

func NewContentHandler(content *service.ContentService, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{content: content, logger: logger}
}

type settingRequest struct {
	Value string `json:"value"`
}

// HandleSettings returns every stored setting as a key/value object.
//
// HTTP: GET /api/settings
func (h *ContentHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.content.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HTTP: GET /api/settings/{key}
func (h *ContentHandler) HandleGetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.content.GetSetting(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// HandleSite returns the typed settings the public pages render from.
//
// HTTP: GET /api/site
func (h *ContentHandler) HandleSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.content.SiteSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// HTTP: PUT /api/admin/settings/{key}
func (h *ContentHandler) HandleUpsertSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	setting, err := h.content.UpsertSetting(r.Context(), actor(r), chi.URLParam(r, "key"), req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// HTTP: GET /api/program
func (h *ContentHandler) HandleGetProgram(w http.ResponseWriter, r *http.Request) {
	prog, err := h.content.GetProgram(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// HandleUpsertProgram applies a partial update; fields left out of the
// body keep their current value.
//
// HTTP: PUT /api/admin/program
func (h *ContentHandler) HandleUpsertProgram(w http.ResponseWriter, r *http.Request) {
	var patch model.ProgramPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	prog, err := h.content.UpsertProgram(r.Context(), actor(r), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}
