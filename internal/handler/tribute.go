package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/service"
)

// TributeHandler serves the tribute wall and candles.
type TributeHandler struct {
	tributes *service.TributeService
	logger   *slog.Logger
}

func NewTributeHandler(tributes *service.TributeService, logger *slog.Logger) *TributeHandler {
	return &TributeHandler{tributes: tributes, logger: logger}
}

type createTributeRequest struct {
	Content   string          `json:"content"`
	MediaURL  string          `json:"mediaUrl"`
	MediaKind model.MediaKind `json:"mediaKind"`
}

// HandleList returns a page of tributes, newest first. Signed-in viewers
// see hasLitCandle set on the tributes they lit.
//
// HTTP: GET /api/tributes?limit=&offset=
func (h *TributeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tributes, err := h.tributes.ListTributes(r.Context(), actor(r), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tributes)
}

// HandleCreate posts a tribute as the signed-in account.
//
// HTTP: POST /api/tributes
func (h *TributeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTributeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	tribute, err := h.tributes.CreateTribute(r.Context(), actor(r), service.CreateTributeInput{
		Content:   req.Content,
		MediaURL:  req.MediaURL,
		MediaKind: req.MediaKind,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tribute)
}

// HandleDelete removes a tribute. Only its author or an admin may.
//
// HTTP: DELETE /api/tributes/{id}
func (h *TributeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.tributes.DeleteTribute(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleCandle lights the caller's candle, or puts it out if it was
// already lit.
//
// HTTP: POST /api/tributes/{id}/candle
func (h *TributeHandler) HandleToggleCandle(w http.ResponseWriter, r *http.Request) {
	state, err := h.tributes.ToggleCandle(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleListCandles returns who lit a candle on a tribute, oldest first.
//
// HTTP: GET /api/tributes/{id}/candles
func (h *TributeHandler) HandleListCandles(w http.ResponseWriter, r *http.Request) {
	candles, err := h.tributes.ListCandles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candles)
}
