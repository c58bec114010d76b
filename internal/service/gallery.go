package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
	"github.com/sakif/memorial/internal/storage"
)

const MaxCaptionLength = 500

// GalleryService manages the photo gallery. Reads are public, writes are
// admin only.
type GalleryService struct {
	repo   repository.GalleryRepository
	files  storage.FileStore
	logger *slog.Logger
}

// NewGalleryService creates a GalleryService. files may be nil, in which
// case deleting an image leaves its uploaded file in place.
func NewGalleryService(repo repository.GalleryRepository, files storage.FileStore, logger *slog.Logger) *GalleryService {
	return &GalleryService{repo: repo, files: files, logger: logger}
}

type CreateImageInput struct {
	URL          string
	Caption      string
	Featured     bool
	DisplayOrder int
}

// ImagePatch updates only the fields that are set.
type ImagePatch struct {
	URL          *string
	Caption      *string
	Featured     *bool
	DisplayOrder *int
}

func validateImageURL(url string) error {
	if url == "" {
		return apperror.ValidationFailed("url", "image URL is required")
	}
	if len(url) > MaxMediaURLLength {
		return apperror.ValidationFailed("url", "image URL is too long")
	}
	return nil
}

func validateCaption(caption string) error {
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return apperror.ValidationFailed("caption",
			fmt.Sprintf("caption must be %d characters or less", MaxCaptionLength))
	}
	return nil
}

func (s *GalleryService) CreateImage(ctx context.Context, actor *model.Account, in CreateImageInput) (*model.GalleryImage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	img := &model.GalleryImage{
		URL:          strings.TrimSpace(in.URL),
		Caption:      strings.TrimSpace(in.Caption),
		Featured:     in.Featured,
		DisplayOrder: in.DisplayOrder,
	}
	if err := validateImageURL(img.URL); err != nil {
		return nil, err
	}
	if err := validateCaption(img.Caption); err != nil {
		return nil, err
	}

	if err := s.repo.CreateImage(ctx, img); err != nil {
		return nil, fmt.Errorf("service/gallery: creating image: %w", err)
	}
	s.logger.Info("gallery image added", slog.String("imageID", img.ID))
	return img, nil
}

func (s *GalleryService) UpdateImage(ctx context.Context, actor *model.Account, id string, patch ImagePatch) (*model.GalleryImage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.URL != nil {
		img.URL = strings.TrimSpace(*patch.URL)
		if err := validateImageURL(img.URL); err != nil {
			return nil, err
		}
	}
	if patch.Caption != nil {
		img.Caption = strings.TrimSpace(*patch.Caption)
		if err := validateCaption(img.Caption); err != nil {
			return nil, err
		}
	}
	if patch.Featured != nil {
		img.Featured = *patch.Featured
	}
	if patch.DisplayOrder != nil {
		img.DisplayOrder = *patch.DisplayOrder
	}

	if err := s.repo.UpdateImage(ctx, img); err != nil {
		return nil, fmt.Errorf("service/gallery: updating image: %w", err)
	}
	return img, nil
}

// DeleteImage removes the image and, when its URL points into the upload
// store, the stored file too. The row goes first: a file left behind by a
// failed delete is only logged, never surfaced as an error.
func (s *GalleryService) DeleteImage(ctx context.Context, actor *model.Account, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteImage(ctx, id); err != nil {
		return err
	}
	s.logger.Info("gallery image removed", slog.String("imageID", id))

	if s.files == nil {
		return nil
	}
	key, ok := s.files.KeyForURL(img.URL)
	if !ok {
		return nil
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("removing gallery file failed",
			slog.String("imageID", id),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (s *GalleryService) GetImage(ctx context.Context, id string) (*model.GalleryImage, error) {
	return s.repo.GetImage(ctx, id)
}

func (s *GalleryService) ListAll(ctx context.Context, limit, offset int) ([]model.GalleryImage, error) {
	images, err := s.repo.ListImages(ctx, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("service/gallery: listing images: %w", err)
	}
	return images, nil
}

func (s *GalleryService) ListFeatured(ctx context.Context) ([]model.GalleryImage, error) {
	images, err := s.repo.ListFeaturedImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/gallery: listing featured images: %w", err)
	}
	return images, nil
}
