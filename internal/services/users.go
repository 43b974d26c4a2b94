package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/igloo/internal/models"
)

// UserService wraps the admin /users endpoints.
type UserService struct {
	api Requester
}

func NewUserService(api Requester) *UserService {
	return &UserService{api: api}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.api.Do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	if err := s.api.Do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create validates in, including the mandatory password, then creates the user.
func (s *UserService) Create(ctx context.Context, in models.UserInput) (*models.User, error) {
	if err := models.ValidateNewUser(in); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.api.Do(ctx, http.MethodPost, "/users", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update validates in and replaces the user's fields. An empty password leaves it unchanged.
func (s *UserService) Update(ctx context.Context, id int, in models.UserInput) (*models.User, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.api.Do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
