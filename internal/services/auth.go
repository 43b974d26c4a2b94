package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/shared"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthService wraps the /auth endpoints.
type AuthService struct {
	api Requester
}

func NewAuthService(api Requester) *AuthService {
	return &AuthService{api: api}
}

// Login exchanges credentials for a user and token pair. Credentials are validated before any request.
func (s *AuthService) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	if err := models.Validate(creds); err != nil {
		return nil, err
	}

	var resp models.AuthResponse
	if err := s.api.Do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new user and token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	var resp models.AuthResponse
	if err := s.api.Do(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the refresh token server-side. An empty token still clears the session cookie.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.api.Do(ctx, http.MethodPost, "/auth/logout", refreshRequest{RefreshToken: refreshToken}, nil)
}

// Me returns the user the server associates with the current credentials.
func (s *AuthService) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.api.Do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
