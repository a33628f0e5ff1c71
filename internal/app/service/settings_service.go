package service

import (
	"context"
	"strings"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"
)

type SettingsService struct {
	settingsRepo repository.SettingsRepository
}

func NewSettingsService(settingsRepo repository.SettingsRepository) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo}
}

type SettingRequest struct {
	Value       string `json:"value"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// Public returns public settings as a key to value map.
func (s *SettingsService) Public(ctx context.Context, category string) (map[string]string, error) {
	settings, err := s.settingsRepo.ListSettings(ctx, true, category)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settings))
	for _, st := range settings {
		out[st.Key] = st.Value
	}
	return out, nil
}

func (s *SettingsService) List(ctx context.Context, category string) ([]model.Setting, error) {
	return s.settingsRepo.ListSettings(ctx, false, category)
}

func (s *SettingsService) Upsert(ctx context.Context, actorID, key string, req SettingRequest) (*model.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, common.Errorf("setting key is required: %w", common.ErrBadRequest)
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "general"
	}
	setting := &model.Setting{
		Key:         key,
		Value:       req.Value,
		Category:    category,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		UpdatedBy:   &actorID,
	}
	if err := s.settingsRepo.UpsertSetting(ctx, setting); err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *SettingsService) Delete(ctx context.Context, key string) error {
	return s.settingsRepo.DeleteSetting(ctx, key)
}
