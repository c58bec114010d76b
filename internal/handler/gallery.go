package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/memorial/internal/service"
)

// GalleryHandler serves the public gallery and its admin management.
type GalleryHandler struct {
	gallery *service.GalleryService
	logger  *slog.Logger
}

func NewGalleryHandler(gallery *service.GalleryService, logger *slog.Logger) *GalleryHandler {
	return &GalleryHandler{gallery: gallery, logger: logger}
}

type createImageRequest struct {
	URL          string `json:"url"`
	Caption      string `json:"caption"`
	Featured     bool   `json:"featured"`
	DisplayOrder int    `json:"displayOrder"`
}

// updateImageRequest uses pointers so an absent field stays unchanged.
type updateImageRequest struct {
	URL          *string `json:"url"`
	Caption      *string `json:"caption"`
	Featured     *bool   `json:"featured"`
	DisplayOrder *int    `json:"displayOrder"`
}

// HTTP: GET /api/gallery?limit=&offset=
func (h *GalleryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	images, err := h.gallery.ListAll(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// HTTP: GET /api/gallery/featured
func (h *GalleryHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	images, err := h.gallery.ListFeatured(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// HTTP: GET /api/gallery/{id}
func (h *GalleryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	img, err := h.gallery.GetImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// HTTP: POST /api/admin/gallery
func (h *GalleryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	img, err := h.gallery.CreateImage(r.Context(), actor(r), service.CreateImageInput{
		URL:          req.URL,
		Caption:      req.Caption,
		Featured:     req.Featured,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// HTTP: PUT /api/admin/gallery/{id}
func (h *GalleryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	img, err := h.gallery.UpdateImage(r.Context(), actor(r), chi.URLParam(r, "id"), service.ImagePatch{
		URL:          req.URL,
		Caption:      req.Caption,
		Featured:     req.Featured,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// HTTP: DELETE /api/admin/gallery/{id}
func (h *GalleryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.gallery.DeleteImage(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
