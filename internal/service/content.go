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
	MaxSettingValueLength = 20000 // the biography is the longest value
	MaxProgramFieldLength = 2000
	MaxProgramDescription = 10000
)

// ContentService manages the site settings and the funeral program.
type ContentService struct {
	settings repository.SettingRepository
	program  repository.ProgramRepository
	logger   *slog.Logger
}

func NewContentService(settings repository.SettingRepository, program repository.ProgramRepository, logger *slog.Logger) *ContentService {
	return &ContentService{settings: settings, program: program, logger: logger}
}

// =========================================================================
// SETTINGS
// =========================================================================

// UpsertSetting sets one recognized key. Unknown keys are rejected so the
// table only ever holds settings something actually reads.
func (s *ContentService) UpsertSetting(ctx context.Context, actor *model.Account, key, value string) (*model.Setting, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !model.IsKnownSetting(key) {
		return nil, apperror.ValidationFailed("key", fmt.Sprintf("unknown setting %q", key))
	}
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) > MaxSettingValueLength {
		return nil, apperror.ValidationFailed("value",
			fmt.Sprintf("value must be %d characters or less", MaxSettingValueLength))
	}

	setting, err := s.settings.UpsertSetting(ctx, key, value)
	if err != nil {
		return nil, fmt.Errorf("service/content: saving setting %s: %w", key, err)
	}

	s.logger.Info("setting updated",
		slog.String("key", key),
		slog.String("actorID", actor.ID),
	)
	return setting, nil
}

func (s *ContentService) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	if !model.IsKnownSetting(key) {
		return nil, apperror.NotFound("setting", key)
	}
	return s.settings.GetSetting(ctx, key)
}

// Settings returns every stored setting as a key → value map.
func (s *ContentService) Settings(ctx context.Context) (map[string]string, error) {
	list, err := s.settings.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/content: listing settings: %w", err)
	}
	values := make(map[string]string, len(list))
	for _, setting := range list {
		values[setting.Key] = setting.Value
	}
	return values, nil
}

// SiteSettings returns the settings as a typed struct for page rendering.
func (s *ContentService) SiteSettings(ctx context.Context) (model.SiteSettings, error) {
	values, err := s.Settings(ctx)
	if err != nil {
		return model.SiteSettings{}, err
	}
	return model.NewSiteSettings(values), nil
}

// =========================================================================
// FUNERAL PROGRAM
// =========================================================================

func (s *ContentService) GetProgram(ctx context.Context) (*model.FuneralProgram, error) {
	return s.program.GetProgram(ctx)
}

// UpsertProgram applies patch to the program, creating it on first write.
// Fields left nil in the patch keep their stored value.
func (s *ContentService) UpsertProgram(ctx context.Context, actor *model.Account, patch model.ProgramPatch) (*model.FuneralProgram, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperror.ValidationFailed("", "no program fields provided")
	}
	if err := validateProgramPatch(patch); err != nil {
		return nil, err
	}

	prog, err := s.program.PatchProgram(ctx, patch)
	if err != nil {
		return nil, fmt.Errorf("service/content: saving program: %w", err)
	}

	s.logger.Info("funeral program updated", slog.String("actorID", actor.ID))
	return prog, nil
}

func validateProgramPatch(p model.ProgramPatch) error {
	fields := []struct {
		name  string
		value *string
		max   int
	}{
		{"date", p.Date, MaxProgramFieldLength},
		{"time", p.Time, MaxProgramFieldLength},
		{"location", p.Location, MaxProgramFieldLength},
		{"address", p.Address, MaxProgramFieldLength},
		{"streamUrl", p.StreamURL, MaxProgramFieldLength},
		{"programUrl", p.ProgramURL, MaxProgramFieldLength},
		{"description", p.Description, MaxProgramDescription},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		*f.value = strings.TrimSpace(*f.value)
		if utf8.RuneCountInString(*f.value) > f.max {
			return apperror.ValidationFailed(f.name,
				fmt.Sprintf("%s must be %d characters or less", f.name, f.max))
		}
	}
	return nil
}
