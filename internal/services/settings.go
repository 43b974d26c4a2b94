package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/igloo/internal/models"
)

// SettingsService wraps the /settings endpoint.
type SettingsService struct {
	api Requester
}

func NewSettingsService(api Requester) *SettingsService {
	return &SettingsService{api: api}
}

func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	if err := s.api.Do(ctx, http.MethodGet, "/settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update validates and saves settings, returning what the server stored.
func (s *SettingsService) Update(ctx context.Context, settings models.Settings) (*models.Settings, error) {
	if err := models.Validate(settings); err != nil {
		return nil, err
	}

	var saved models.Settings
	if err := s.api.Do(ctx, http.MethodPut, "/settings", settings, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}
