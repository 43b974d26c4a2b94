package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/igloo/internal/models"
)

// HistoryEntry is one playback started from this client.
type HistoryEntry struct {
	ID        int64
	MovieID   int
	Title     string
	StartedAt time.Time
}

// HistoryRepository records movies started from this client.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new [HistoryRepository] with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record stores that playback of movie started now.
func (r *HistoryRepository) Record(ctx context.Context, movie models.Movie) error {
	query := `INSERT INTO watch_history (movie_id, title, started_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, movie.ID, movie.Label(), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, most recent first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, movie_id, title, started_at
		FROM watch_history
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.MovieID, &e.Title, &e.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// Clear deletes all history.
func (r *HistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM watch_history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
