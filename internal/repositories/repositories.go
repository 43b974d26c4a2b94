// package repositories provides persistence for client state
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/igloo/internal/shared"
)

// StateRepository stores string values by key in the client_state table.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new [StateRepository] with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the value stored under key, or [shared.ErrNotFound].
func (r *StateRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM client_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: state key %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query state: %w", err)
	}
	return value, nil
}

// Set inserts or replaces the value under key.
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM client_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// UpdatedAt returns when key was last written.
func (r *StateRepository) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var updated time.Time
	err := r.db.QueryRowContext(ctx, "SELECT updated_at FROM client_state WHERE key = ?", key).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: state key %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query state: %w", err)
	}
	return updated, nil
}
