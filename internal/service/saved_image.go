package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/repository"
)

// SavedImageService manages a user's saved images. Every operation is
// scoped to the calling user; another user's record is reported as not
// found, never as forbidden.
type SavedImageService struct {
	repo   repository.SavedImageRepository
	logger *slog.Logger
}

func NewSavedImageService(repo repository.SavedImageRepository, logger *slog.Logger) *SavedImageService {
	return &SavedImageService{repo: repo, logger: logger}
}

// Save stores img for userID. Saving an image the user already has is not
// an error: the stored record comes back with created=false.
func (s *SavedImageService) Save(ctx context.Context, userID int64, img model.SavedImage) (*model.SavedImage, bool, error) {
	img = normalizeImage(img)
	if err := validateImage(img); err != nil {
		return nil, false, err
	}
	if !storeUp(ctx, s.repo, s.logger, "save image") {
		return nil, false, errStoreUnavailable()
	}

	img.UserID = userID
	created, err := s.repo.CreateSavedImage(ctx, &img)
	if err != nil {
		return nil, false, fmt.Errorf("saving image: %w", err)
	}

	if created {
		s.logger.Info("image saved",
			slog.Int64("user_id", userID),
			slog.String("image_id", img.ImageID),
		)
	}
	return &img, created, nil
}

// SaveBatch saves each result independently. An item that fails
// validation or persistence is logged and counted in neither Saved nor
// AlreadySaved.
func (s *SavedImageService) SaveBatch(ctx context.Context, userID int64, results []model.SearchResult) (*model.BatchResult, error) {
	if len(results) == 0 {
		return nil, apperror.ValidationFailed("images", "Images array is required")
	}
	if !storeUp(ctx, s.repo, s.logger, "save image batch") {
		return nil, errStoreUnavailable()
	}

	out := &model.BatchResult{Total: len(results)}
	for i, r := range results {
		img := normalizeImage(model.FromResult(r))
		if err := validateImage(img); err != nil {
			s.logger.Warn("skipping invalid batch item",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}

		img.UserID = userID
		created, err := s.repo.CreateSavedImage(ctx, &img)
		if err != nil {
			s.logger.Error("failed to save batch item",
				slog.Int64("user_id", userID),
				slog.String("image_id", img.ImageID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if created {
			out.Saved++
		} else {
			out.AlreadySaved++
		}
	}

	s.logger.Info("image batch processed",
		slog.Int64("user_id", userID),
		slog.Int("saved", out.Saved),
		slog.Int("already_saved", out.AlreadySaved),
		slog.Int("total", out.Total),
	)
	return out, nil
}

// List returns one page of userID's saved images, most recent first. An
// unreachable store yields an empty page with a warning.
func (s *SavedImageService) List(ctx context.Context, userID int64, limit, skip int) (*model.SavedImagePage, error) {
	if !storeUp(ctx, s.repo, s.logger, "list saved images") {
		return &model.SavedImagePage{Images: []model.SavedImage{}, Warning: WarningStoreUnavailable}, nil
	}

	limit, skip = clampPage(limit, skip, DefaultSavedImageLimit)
	images, err := s.repo.ListSavedImages(ctx, userID, repository.ListOptions{Limit: limit, Offset: skip})
	if err != nil {
		queryFailed(s.logger, "list saved images", err)
		return &model.SavedImagePage{Images: []model.SavedImage{}, Limit: limit, Skip: skip, Warning: WarningStoreUnavailable}, nil
	}
	total, err := s.repo.CountSavedImages(ctx, userID)
	if err != nil {
		queryFailed(s.logger, "count saved images", err)
		return &model.SavedImagePage{Images: []model.SavedImage{}, Limit: limit, Skip: skip, Warning: WarningStoreUnavailable}, nil
	}

	return &model.SavedImagePage{Images: images, Total: total, Limit: limit, Skip: skip}, nil
}

// Delete removes the saved image id if userID owns it.
func (s *SavedImageService) Delete(ctx context.Context, userID int64, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "saved image id is required")
	}
	if !storeUp(ctx, s.repo, s.logger, "delete saved image") {
		return errStoreUnavailable()
	}

	if err := s.repo.DeleteSavedImage(ctx, userID, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &apperror.AppError{Err: apperror.ErrNotFound, Message: "Saved image not found"}
		}
		return fmt.Errorf("deleting saved image: %w", err)
	}

	s.logger.Info("saved image removed",
		slog.Int64("user_id", userID),
		slog.String("id", id),
	)
	return nil
}

func normalizeImage(img model.SavedImage) model.SavedImage {
	img.ImageID = strings.TrimSpace(img.ImageID)
	img.Title = strings.TrimSpace(img.Title)
	img.URL = strings.TrimSpace(img.URL)
	return img
}

func validateImage(img model.SavedImage) error {
	switch {
	case img.ImageID == "":
		return apperror.ValidationFailed("imageId", "imageId is required")
	case img.Title == "":
		return apperror.ValidationFailed("title", "title is required")
	case img.URL == "":
		return apperror.ValidationFailed("url", "url is required")
	}
	return nil
}
