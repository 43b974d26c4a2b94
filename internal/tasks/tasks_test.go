package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/shared"
	tu "github.com/desertthunder/igloo/internal/testing"
)

// newProvider boots a provider against a fake backend. userID 0 starts signed out.
func newProvider(t *testing.T, userID int) (*app.Provider, *tu.Backend) {
	t.Helper()
	backend := tu.NewBackend(t)

	cfg := shared.DefaultConfig()
	cfg.Server.URL = backend.URL()
	cfg.Server.APIPrefix = tu.APIPrefix
	cfg.Query.Retry = 0
	cfg.Query.RetryDelay = time.Millisecond

	token := ""
	if userID != 0 {
		token = backend.IssueRefreshToken(userID)
	}

	p, err := app.New(app.Options{Config: cfg, Tokens: tu.NewMemoryTokenStore(token)})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	p.Boot(context.Background())
	return p, backend
}

func TestExport(t *testing.T) {
	tests := []struct {
		name        string
		userID      int
		opts        ExportOpts
		wantSuccess int
		wantFiles   []string
		wantMissing []string
	}{
		{
			name:        "viewer json export",
			userID:      2,
			opts:        ExportOpts{Format: formatter.FormatJSON},
			wantSuccess: 5,
			wantFiles:   []string{"movies.json", "latest.json", "now-playing.json", "history.json", "profile.json"},
			wantMissing: []string{"users.json", "settings.json"},
		},
		{
			name:        "admin csv export includes admin sections",
			userID:      1,
			opts:        ExportOpts{Format: formatter.FormatCSV, NumWorkers: 2},
			wantSuccess: 7,
			wantFiles:   []string{"movies.csv", "users.csv", "settings.csv"},
		},
		{
			name:        "markdown export with movie details",
			userID:      2,
			opts:        ExportOpts{Format: formatter.FormatMarkdown, Details: true},
			wantSuccess: 8,
			wantFiles:   []string{"movies.md", filepath.Join("movies", "1.md"), filepath.Join("movies", "3.md")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newProvider(t, tt.userID)
			dir := t.TempDir()
			tt.opts.OutputDir = dir
			tt.opts.RateLimit = 1000

			summary, err := NewExporter(p, nil).Export(context.Background(), nil, tt.opts)
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}

			if summary.Succeeded != tt.wantSuccess || summary.Failed != 0 {
				t.Errorf("expected %d succeeded and 0 failed, got %d and %d (%+v)",
					tt.wantSuccess, summary.Succeeded, summary.Failed, summary.Results)
			}
			if summary.TotalSections != len(summary.Results) {
				t.Errorf("expected %d results, got %d", summary.TotalSections, len(summary.Results))
			}
			for _, f := range tt.wantFiles {
				tu.AssertFileExists(t, filepath.Join(dir, f))
			}
			for _, f := range tt.wantMissing {
				if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
					t.Errorf("%s should not be exported", f)
				}
			}

			var manifest ExportSummary
			if err := json.Unmarshal([]byte(tu.MustReadFile(t, summary.ManifestPath)), &manifest); err != nil {
				t.Fatalf("invalid manifest: %v", err)
			}
			if manifest.Succeeded != tt.wantSuccess || len(manifest.Results) != summary.TotalSections {
				t.Errorf("manifest does not match summary: %+v", manifest)
			}
		})
	}
}

func TestExport_SectionContents(t *testing.T) {
	p, _ := newProvider(t, 2)
	dir := t.TempDir()

	if _, err := NewExporter(p, nil).Export(context.Background(), nil, ExportOpts{OutputDir: dir, RateLimit: 1000}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	nowPlaying := tu.MustReadFile(t, filepath.Join(dir, "now-playing.json"))
	if !strings.Contains(nowPlaying, "Alien") || strings.Contains(nowPlaying, "Heat") {
		t.Errorf("now-playing should hold only movies in progress, got %s", nowPlaying)
	}

	profile := tu.MustReadFile(t, filepath.Join(dir, "profile.json"))
	if !strings.Contains(profile, `"username": "viewer"`) {
		t.Errorf("unexpected profile %s", profile)
	}
}

func TestExport_PartialFailure(t *testing.T) {
	p, backend := newProvider(t, 1)
	backend.Fail("GET /users", 500, "users table locked", 1)
	dir := t.TempDir()

	summary, err := NewExporter(p, nil).Export(context.Background(), nil, ExportOpts{OutputDir: dir, RateLimit: 1000})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if summary.Failed != 1 || summary.Succeeded != 6 {
		t.Fatalf("expected 1 failure and 6 successes, got %d and %d", summary.Failed, summary.Succeeded)
	}
	for _, res := range summary.Results {
		if res.Name != "users" {
			continue
		}
		if res.Success || res.Error != "users table locked" {
			t.Errorf("unexpected users result %+v", res)
		}
		if res.File != "" {
			t.Errorf("failed section should have no file, got %s", res.File)
		}
	}
	if !strings.Contains(tu.MustReadFile(t, summary.ManifestPath), "users table locked") {
		t.Error("manifest should record the failure")
	}
}

func TestExport_SignedOut(t *testing.T) {
	p, backend := newProvider(t, 0)
	dir := filepath.Join(t.TempDir(), "out")

	_, err := NewExporter(p, nil).Export(context.Background(), nil, ExportOpts{OutputDir: dir})
	if !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := os.Stat(dir); err == nil {
		t.Error("output directory should not be created")
	}
	if backend.Calls("GET /movies") != 0 {
		t.Error("no section should be loaded")
	}
}

func TestExport_Progress(t *testing.T) {
	p, _ := newProvider(t, 2)
	progress := make(chan ProgressUpdate, 32)

	summary, err := NewExporter(p, nil).Export(context.Background(), progress, ExportOpts{OutputDir: t.TempDir(), RateLimit: 1000})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	close(progress)

	var updates []ProgressUpdate
	for u := range progress {
		updates = append(updates, u)
	}

	if len(updates) != summary.TotalSections+2 {
		t.Fatalf("expected %d updates, got %d", summary.TotalSections+2, len(updates))
	}
	if updates[0].Phase != CheckSession {
		t.Errorf("first update should check the session, got %s", updates[0].Phase)
	}
	if last := updates[len(updates)-1]; last.Phase != WriteManifest {
		t.Errorf("last update should write the manifest, got %s", last.Phase)
	}
	for i, u := range updates[1 : len(updates)-1] {
		if u.Phase != ExportSection {
			t.Errorf("update %d: expected export_section, got %s", i, u.Phase)
		}
		if u.Step != i+1 || u.Total != summary.TotalSections {
			t.Errorf("update %d: expected step %d/%d, got %d/%d", i, i+1, summary.TotalSections, u.Step, u.Total)
		}
		if _, ok := u.Data.(ExportResult); !ok {
			t.Errorf("update %d: expected ExportResult data, got %T", i, u.Data)
		}
	}
}

func TestExport_FullChannelDoesNotBlock(t *testing.T) {
	p, _ := newProvider(t, 2)
	progress := make(chan ProgressUpdate)

	done := make(chan error, 1)
	go func() {
		_, err := NewExporter(p, nil).Export(context.Background(), progress, ExportOpts{OutputDir: t.TempDir(), RateLimit: 1000})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("export blocked on an unread progress channel")
	}
}

func TestWithDefaults(t *testing.T) {
	tests := []struct {
		name        string
		in          ExportOpts
		wantWorkers int
		wantRate    float64
		wantFormat  formatter.Format
	}{
		{name: "zero values", in: ExportOpts{OutputDir: "x"}, wantWorkers: 4, wantRate: 5, wantFormat: formatter.FormatJSON},
		{name: "workers capped", in: ExportOpts{OutputDir: "x", NumWorkers: 50}, wantWorkers: 8, wantRate: 5, wantFormat: formatter.FormatJSON},
		{name: "explicit values kept", in: ExportOpts{OutputDir: "x", NumWorkers: 2, RateLimit: 1, Format: formatter.FormatCSV}, wantWorkers: 2, wantRate: 1, wantFormat: formatter.FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := withDefaults(tt.in)
			if got.NumWorkers != tt.wantWorkers || got.RateLimit != tt.wantRate || got.Format != tt.wantFormat {
				t.Errorf("withDefaults() = %+v", got)
			}
		})
	}

	if dir := withDefaults(ExportOpts{}).OutputDir; !strings.HasPrefix(dir, "igloo_export_") {
		t.Errorf("default output directory should start with igloo_export_, got %s", dir)
	}
}

func TestExtension(t *testing.T) {
	for format, want := range map[formatter.Format]string{
		formatter.FormatJSON:     "json",
		formatter.FormatCSV:      "csv",
		formatter.FormatMarkdown: "md",
		formatter.FormatText:     "txt",
	} {
		if got := Extension(format); got != want {
			t.Errorf("Extension(%s) = %s, want %s", format, got, want)
		}
	}
}
