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
)

const (
	MaxTributeLength  = 5000
	MaxMediaURLLength = 2048
)

// TributeService handles tributes and the candles lit on them.
//
// The candle count on a tribute is only ever changed by the repository's
// ToggleCandle and delete operations. Nothing here patches it directly.
type TributeService struct {
	repo     repository.TributeRepository
	observer Observer
	logger   *slog.Logger
}

func NewTributeService(repo repository.TributeRepository, observer Observer, logger *slog.Logger) *TributeService {
	return &TributeService{repo: repo, observer: observerOrNop(observer), logger: logger}
}

type CreateTributeInput struct {
	Content   string
	MediaURL  string
	MediaKind model.MediaKind
}

// CreateTribute posts a tribute owned by actor.
func (s *TributeService) CreateTribute(ctx context.Context, actor *model.Account, in CreateTributeInput) (*model.Tribute, error) {
	if err := requireAccount(actor); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "tribute text is required")
	}
	if utf8.RuneCountInString(content) > MaxTributeLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("tribute text must be %d characters or less", MaxTributeLength))
	}

	mediaURL := strings.TrimSpace(in.MediaURL)
	kind := in.MediaKind
	if mediaURL == "" {
		kind = model.MediaNone
	} else {
		if len(mediaURL) > MaxMediaURLLength {
			return nil, apperror.ValidationFailed("mediaUrl", "media URL is too long")
		}
		if kind != model.MediaImage && kind != model.MediaVideo {
			return nil, apperror.ValidationFailed("mediaKind", "media kind must be image or video")
		}
	}

	tribute := &model.Tribute{
		AccountID: actor.ID,
		Content:   content,
		MediaURL:  mediaURL,
		MediaKind: kind,
	}
	if err := s.repo.CreateTribute(ctx, tribute); err != nil {
		return nil, fmt.Errorf("service/tribute: creating tribute: %w", err)
	}
	tribute.AuthorName = actor.Name

	s.observer.TributeCreated()
	s.logger.Info("tribute created",
		slog.String("tributeID", tribute.ID),
		slog.String("accountID", actor.ID),
	)
	return tribute, nil
}

// DeleteTribute removes a tribute and its candles. Only the owner or an
// admin may do it. A missing tribute is reported as NotFound before any
// permission check.
func (s *TributeService) DeleteTribute(ctx context.Context, actor *model.Account, id string) error {
	if err := requireAccount(actor); err != nil {
		return err
	}

	tribute, err := s.repo.GetTribute(ctx, id)
	if err != nil {
		return err
	}
	if tribute.AccountID != actor.ID && !actor.IsAdmin {
		return apperror.Forbidden("you can only delete your own tributes")
	}

	if err := s.repo.DeleteTribute(ctx, id); err != nil {
		return fmt.Errorf("service/tribute: deleting tribute: %w", err)
	}

	s.observer.TributeDeleted()
	s.logger.Info("tribute deleted",
		slog.String("tributeID", id),
		slog.String("actorID", actor.ID),
		slog.Bool("byAdmin", tribute.AccountID != actor.ID),
	)
	return nil
}

// ToggleCandle lights actor's candle on a tribute, or puts it out if it is
// already lit.
func (s *TributeService) ToggleCandle(ctx context.Context, actor *model.Account, tributeID string) (*model.CandleState, error) {
	if err := requireAccount(actor); err != nil {
		return nil, err
	}

	state, err := s.repo.ToggleCandle(ctx, actor.ID, tributeID)
	if err != nil {
		return nil, err
	}

	s.observer.CandleToggled(state.Lit)
	s.logger.Debug("candle toggled",
		slog.String("tributeID", tributeID),
		slog.String("accountID", actor.ID),
		slog.Bool("lit", state.Lit),
		slog.Int("candleCount", state.CandleCount),
	)
	return state, nil
}

// HasLit reports whether viewer has a candle lit on the tribute. Anonymous
// viewers never do.
func (s *TributeService) HasLit(ctx context.Context, viewer *model.Account, tributeID string) (bool, error) {
	if viewer == nil {
		return false, nil
	}
	return s.repo.HasLitCandle(ctx, viewer.ID, tributeID)
}

// ListTributes returns a page of tributes, newest first, each marked with
// whether viewer has lit a candle on it.
func (s *TributeService) ListTributes(ctx context.Context, viewer *model.Account, limit, offset int) ([]model.TributeView, error) {
	tributes, err := s.repo.ListTributes(ctx, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("service/tribute: listing tributes: %w", err)
	}

	lit := map[string]bool{}
	if viewer != nil && len(tributes) > 0 {
		ids := make([]string, len(tributes))
		for i, t := range tributes {
			ids[i] = t.ID
		}
		lit, err = s.repo.LitTributeIDs(ctx, viewer.ID, ids)
		if err != nil {
			return nil, fmt.Errorf("service/tribute: loading candle state: %w", err)
		}
	}

	views := make([]model.TributeView, len(tributes))
	for i, t := range tributes {
		views[i] = model.TributeView{Tribute: t, HasLitCandle: lit[t.ID]}
	}
	return views, nil
}

// ListCandles returns the candles lit on a tribute, oldest first. A
// deleted tribute has none.
func (s *TributeService) ListCandles(ctx context.Context, tributeID string) ([]model.Candle, error) {
	candles, err := s.repo.ListCandles(ctx, tributeID)
	if err != nil {
		return nil, fmt.Errorf("service/tribute: listing candles: %w", err)
	}
	return candles, nil
}
