package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestStateRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Get Missing Key", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		_, err := repo.Get(ctx, "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Set And Get", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		if err := repo.Set(ctx, "ui.last_route", "/movies"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		value, err := repo.Get(ctx, "ui.last_route")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if value != "/movies" {
			t.Errorf("expected /movies, got %s", value)
		}

		if _, err := repo.UpdatedAt(ctx, "ui.last_route"); err != nil {
			t.Errorf("expected updated_at, got %v", err)
		}
	})

	t.Run("Set Overwrites", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		repo.Set(ctx, "k", "one")
		if err := repo.Set(ctx, "k", "two"); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}
		if value, _ := repo.Get(ctx, "k"); value != "two" {
			t.Errorf("expected two, got %s", value)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		repo.Set(ctx, "k", "v")
		if err := repo.Delete(ctx, "k"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(ctx, "k"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected key to be gone, got %v", err)
		}
		if err := repo.Delete(ctx, "k"); err != nil {
			t.Errorf("deleting a missing key should succeed, got %v", err)
		}
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewStateRepository(db)
		db.Close()

		if err := repo.Set(ctx, "k", "v"); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.Get(ctx, "k"); err == nil || errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected query error, got %v", err)
		}
	})
}

func TestRefreshTokenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Load Without Token", func(t *testing.T) {
		store := NewRefreshTokenStore(NewStateRepository(setupTestDB(t)))

		if _, err := store.Load(ctx); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("Save Load Delete", func(t *testing.T) {
		state := NewStateRepository(setupTestDB(t))
		store := NewRefreshTokenStore(state)

		if err := store.Save(ctx, "refresh-1"); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		token, err := store.Load(ctx)
		if err != nil || token != "refresh-1" {
			t.Fatalf("expected refresh-1, got %q (%v)", token, err)
		}

		if raw, _ := state.Get(ctx, RefreshTokenKey); raw != "refresh-1" {
			t.Errorf("expected token under %s, got %q", RefreshTokenKey, raw)
		}

		if err := store.Delete(ctx); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := store.Load(ctx); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken after delete, got %v", err)
		}
	})

	t.Run("Saving Empty Token Deletes", func(t *testing.T) {
		store := NewRefreshTokenStore(NewStateRepository(setupTestDB(t)))

		store.Save(ctx, "refresh-1")
		if err := store.Save(ctx, ""); err != nil {
			t.Fatalf("failed to save empty token: %v", err)
		}
		if _, err := store.Load(ctx); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Record And Recent", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))

		for _, m := range []models.Movie{{ID: 1, Title: "Heat", Year: 1995}, {ID: 2, Title: "Alien", Year: 1979}} {
			if err := repo.Record(ctx, m); err != nil {
				t.Fatalf("failed to record: %v", err)
			}
		}

		entries, err := repo.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Title != "Alien (1979)" {
			t.Errorf("expected most recent first, got %s", entries[0].Title)
		}

		limited, _ := repo.Recent(ctx, 1)
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		repo.Record(ctx, models.Movie{ID: 1, Title: "Heat"})

		if err := repo.Clear(ctx); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if entries, _ := repo.Recent(ctx, 0); len(entries) != 0 {
			t.Errorf("expected no entries, got %d", len(entries))
		}
	})
}
