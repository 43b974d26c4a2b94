// package models defines the data model for the Igloo media center client
package models

import (
	"fmt"
	"strings"
	"time"
)

// User is an immutable account snapshot from the server.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	IsActive bool   `json:"isActive"`
	Thumb    string `json:"thumb,omitempty"`
}

// DisplayName prefers the user's name and falls back to the username.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Username
}

// Role returns "admin" or "user".
func (u User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}

// Credentials is the login form payload.
type Credentials struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by the login and refresh endpoints.
type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Movie is a library entry.
type Movie struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Year     int       `json:"year,omitempty"`
	Overview string    `json:"overview,omitempty"`
	Runtime  int       `json:"runtime,omitempty"` // minutes
	Genres   []string  `json:"genres,omitempty"`
	Rating   float64   `json:"rating,omitempty"`
	Poster   string    `json:"poster,omitempty"`
	Backdrop string    `json:"backdrop,omitempty"`
	AddedAt  time.Time `json:"addedAt"`
	Progress int       `json:"progress,omitempty"` // seconds watched
	Duration int       `json:"duration,omitempty"` // seconds
}

// Label renders "Title (Year)" or just the title when the year is unknown.
func (m Movie) Label() string {
	if m.Year == 0 {
		return m.Title
	}
	return fmt.Sprintf("%s (%d)", m.Title, m.Year)
}

// Watched returns the fraction of the movie already watched, between 0 and 1.
func (m Movie) Watched() float64 {
	if m.Duration <= 0 || m.Progress <= 0 {
		return 0
	}
	if m.Progress >= m.Duration {
		return 1
	}
	return float64(m.Progress) / float64(m.Duration)
}

// InProgress reports whether playback was started but not finished.
func (m Movie) InProgress() bool {
	w := m.Watched()
	return w > 0 && w < 1
}

// Settings is the server configuration editable by admins.
type Settings struct {
	ServerName           string `json:"serverName" validate:"required,max=64"`
	MoviesDir            string `json:"moviesDir" validate:"omitempty,startswith=/"`
	ShowsDir             string `json:"showsDir" validate:"omitempty,startswith=/"`
	MusicDir             string `json:"musicDir" validate:"omitempty,startswith=/"`
	TranscodeDir         string `json:"transcodeDir" validate:"omitempty,startswith=/"`
	HardwareAcceleration string `json:"hardwareAcceleration" validate:"omitempty,oneof=none vaapi nvenc qsv videotoolbox"`
	TMDBAPIKey           string `json:"tmdbApiKey,omitempty"`
}

// UserInput is the payload for creating or updating a user.
//
// Password is required when creating and optional when updating.
type UserInput struct {
	Name     string `json:"name" validate:"required,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8"`
	IsAdmin  bool   `json:"isAdmin"`
	IsActive bool   `json:"isActive"`
}

// InputFromUser seeds an edit form from an existing user.
func InputFromUser(u User) UserInput {
	return UserInput{
		Name:     u.Name,
		Email:    u.Email,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		IsActive: u.IsActive,
	}
}

// LoginSearch holds the query parameters accepted by the login route.
type LoginSearch struct {
	Redirect string `validate:"omitempty,localpath"`
}
