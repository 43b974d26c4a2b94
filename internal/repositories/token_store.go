package repositories

import (
	"context"
	"errors"

	"github.com/desertthunder/igloo/internal/shared"
)

// RefreshTokenKey is the fixed client_state key holding the refresh token.
const RefreshTokenKey = "auth.refresh_token"

// RefreshTokenStore persists the refresh token through a [StateRepository].
type RefreshTokenStore struct {
	repo *StateRepository
}

// NewRefreshTokenStore creates a new RefreshTokenStore with the given repository
func NewRefreshTokenStore(repo *StateRepository) *RefreshTokenStore {
	return &RefreshTokenStore{repo: repo}
}

// Load returns the stored refresh token or [shared.ErrNoRefreshToken] when there is none.
func (s *RefreshTokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.repo.Get(ctx, RefreshTokenKey)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && token == "") {
		return "", shared.ErrNoRefreshToken
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// Save replaces the stored refresh token. An empty token deletes it.
func (s *RefreshTokenStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return s.Delete(ctx)
	}
	return s.repo.Set(ctx, RefreshTokenKey, token)
}

// Delete removes the stored refresh token.
func (s *RefreshTokenStore) Delete(ctx context.Context) error {
	return s.repo.Delete(ctx, RefreshTokenKey)
}
