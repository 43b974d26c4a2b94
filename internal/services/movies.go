package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/igloo/internal/models"
)

// MovieService wraps the /movies and /transcode endpoints.
type MovieService struct {
	api Requester
}

func NewMovieService(api Requester) *MovieService {
	return &MovieService{api: api}
}

// List returns the whole movie library.
func (s *MovieService) List(ctx context.Context) ([]models.Movie, error) {
	return s.list(ctx, "/movies")
}

// Latest returns recently added movies.
func (s *MovieService) Latest(ctx context.Context) ([]models.Movie, error) {
	return s.list(ctx, "/movies/latest")
}

// NowPlaying returns movies the user started but has not finished.
func (s *MovieService) NowPlaying(ctx context.Context) ([]models.Movie, error) {
	return s.list(ctx, "/movies/now-playing")
}

func (s *MovieService) list(ctx context.Context, path string) ([]models.Movie, error) {
	movies := []models.Movie{}
	if err := s.api.Do(ctx, http.MethodGet, path, nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// Get returns a single movie.
func (s *MovieService) Get(ctx context.Context, id int) (*models.Movie, error) {
	var movie models.Movie
	if err := s.api.Do(ctx, http.MethodGet, fmt.Sprintf("/movies/%d", id), nil, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// StreamURL returns the HLS master playlist URL for a movie.
func (s *MovieService) StreamURL(id int) string {
	return s.api.URL(fmt.Sprintf("/transcode/%d/master.m3u8", id))
}
