package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/storage"
)

// DefaultMaxUploadBytes applies when config does not set a limit.
const DefaultMaxUploadBytes int64 = 10 << 20

// Upload categories decide where a file ends up and which types it may be.
const (
	UploadGallery = "gallery"
	UploadSite    = "site"
	UploadProgram = "program"
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// allowedType returns the file extension for contentType in category, or
// "" if the type is not accepted there.
func allowedType(category, contentType string) string {
	if ext, ok := imageTypes[contentType]; ok {
		return ext
	}
	if category == UploadProgram && contentType == "application/pdf" {
		return ".pdf"
	}
	return ""
}

// UploadService accepts admin uploads (gallery photos, header and portrait
// images, the printable program) and hands them to a FileStore.
type UploadService struct {
	files    storage.FileStore
	scanner  storage.Scanner // optional
	maxBytes int64
	observer Observer
	logger   *slog.Logger
}

// NewUploadService creates an UploadService. scanner may be nil to skip
// malware scanning; maxBytes <= 0 uses DefaultMaxUploadBytes.
func NewUploadService(files storage.FileStore, scanner storage.Scanner, maxBytes int64, observer Observer, logger *slog.Logger) *UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadService{
		files:    files,
		scanner:  scanner,
		maxBytes: maxBytes,
		observer: observerOrNop(observer),
		logger:   logger,
	}
}

// MaxBytes is the largest accepted upload.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// UploadResult describes a stored file.
type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Upload stores one file. The content type is sniffed from the bytes; the
// client's filename and declared type are only logged.
func (s *UploadService) Upload(ctx context.Context, actor *model.Account, filename string, r io.Reader, category string) (*UploadResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	switch category {
	case UploadGallery, UploadSite, UploadProgram:
	default:
		return nil, apperror.ValidationFailed("category", "category must be gallery, site or program")
	}

	// Read one byte past the limit so an oversized file is detected
	// whatever size the client claimed.
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("service/upload: reading file: %w", err)
	}
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("file", "file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperror.ValidationFailed("file",
			fmt.Sprintf("file must be %d bytes or smaller", s.maxBytes))
	}

	contentType := http.DetectContentType(data)
	ext := allowedType(category, contentType)
	if ext == "" {
		return nil, apperror.ValidationFailed("file",
			fmt.Sprintf("file type %s is not allowed for %s uploads", contentType, category))
	}

	if s.scanner != nil {
		if err := s.scanner.Scan(ctx, bytes.NewReader(data)); err != nil {
			if errors.Is(err, storage.ErrInfected) {
				s.logger.Warn("upload rejected by malware scan",
					slog.String("actorID", actor.ID),
					slog.String("filename", filename),
					slog.String("error", err.Error()),
				)
				return nil, apperror.ValidationFailed("file", "file was rejected by the malware scanner")
			}
			return nil, fmt.Errorf("service/upload: %w", err)
		}
	}

	key := category + "/" + uuid.NewString() + ext
	url, err := s.files.Save(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, fmt.Errorf("service/upload: %w", err)
	}

	s.observer.FileUploaded(category)
	s.logger.Info("file uploaded",
		slog.String("actorID", actor.ID),
		slog.String("key", key),
		slog.String("filename", filename),
		slog.String("contentType", contentType),
		slog.Int("size", len(data)),
	)
	return &UploadResult{URL: url, Key: key, ContentType: contentType, Size: int64(len(data))}, nil
}
