package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/service"
)

// multipartOverhead is the room left above the file limit for the other
// form fields and part headers.
const multipartOverhead = 1 << 20

// UploadHandler accepts admin file uploads.
type UploadHandler struct {
	uploads *service.UploadService
	logger  *slog.Logger
}

func NewUploadHandler(uploads *service.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, logger: logger}
}

// HandleUpload stores the multipart "file" field under "category"
// (gallery, site or program) and returns its public URL.
//
// HTTP: POST /api/admin/uploads
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+multipartOverhead)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperror.ValidationFailed("file", "file is too large"))
			return
		}
		writeError(w, apperror.ValidationFailed("file", "expected a multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "file is required"))
		return
	}
	defer file.Close()

	res, err := h.uploads.Upload(r.Context(), actor(r), header.Filename, file, r.FormValue("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
