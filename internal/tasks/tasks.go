package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/repositories"
	"github.com/desertthunder/igloo/internal/services"
	"github.com/desertthunder/igloo/internal/shared"
	"golang.org/x/time/rate"
)

// ManifestFile is written to the output directory after every export.
const ManifestFile = "export_manifest.json"

// Navigator resolves frontend locations. [*app.Provider] implements it.
type Navigator interface {
	Navigate(ctx context.Context, href string) (*app.Navigation, error)
}

// ExportOpts contains configuration for a library export.
type ExportOpts struct {
	Format     formatter.Format // Output format (default: json)
	OutputDir  string           // Base output directory (default: igloo_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 4, at most 8)
	RateLimit  float64          // Section loads per second (default: 5)
	Details    bool             // Also write one file per movie
}

// ExportResult describes one exported section.
type ExportResult struct {
	Name    string `json:"name"`
	Href    string `json:"href"`
	File    string `json:"file,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExportSummary aggregates an export run. It is also the manifest's contents.
type ExportSummary struct {
	User            string         `json:"user"`
	Format          string         `json:"format"`
	StartedAt       time.Time      `json:"startedAt"`
	TotalSections   int            `json:"totalSections"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	OutputDirectory string         `json:"outputDirectory"`
	ManifestPath    string         `json:"-"`
	Results         []ExportResult `json:"results"`
}

// section is one unit of export work.
type section struct {
	name  string
	href  string
	title string
	// pick extracts the exported value from the route's data.
	pick func(data any) any
}

// Exporter writes library sections to disk.
type Exporter struct {
	nav    Navigator
	logger *log.Logger
}

// NewExporter creates an exporter that loads sections through nav.
func NewExporter(nav Navigator, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Exporter{nav: nav, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Exporter) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Export writes every section visible to the signed-in user into opts.OutputDir.
//
// It fails only when no one is signed in or the output cannot be written; failed sections
// are recorded in the summary and the manifest.
func (e *Exporter) Export(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportSummary, error) {
	opts = withDefaults(opts)

	e.sendProgress(progress, checkingSessionUpdate())
	user, err := e.profile(ctx)
	if err != nil {
		return nil, err
	}

	sections := baseSections(user.IsAdmin)
	if opts.Details {
		details, err := e.detailSections(ctx)
		if err != nil {
			e.logger.Warn("skipping movie details", "err", err)
		}
		sections = append(sections, details...)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if opts.Details {
		if err := os.MkdirAll(filepath.Join(opts.OutputDir, "movies"), 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	summary := &ExportSummary{
		User:            user.Username,
		Format:          string(opts.Format),
		StartedAt:       time.Now().UTC(),
		TotalSections:   len(sections),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ExportResult, 0, len(sections)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan section, len(sections))
	results := make(chan ExportResult, len(sections))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	for _, s := range sections {
		jobs <- s
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		summary.Results = append(summary.Results, res)
		if res.Success {
			summary.Succeeded++
			e.sendProgress(progress, sectionExportedUpdate(completed, len(sections), res))
		} else {
			summary.Failed++
			e.sendProgress(progress, sectionFailedUpdate(completed, len(sections), res))
		}
	}
	sort.Slice(summary.Results, func(i, j int) bool { return summary.Results[i].Name < summary.Results[j].Name })

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestFile)
	e.sendProgress(progress, writingManifestUpdate(manifestPath))
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return summary, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := formatter.WriteExport(manifestPath, data); err != nil {
		return summary, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	summary.ManifestPath = manifestPath

	e.logger.Info("export finished", "dir", opts.OutputDir, "ok", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

func withDefaults(opts ExportOpts) ExportOpts {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("igloo_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	return opts
}

// profile returns the signed-in user, or ErrNotAuthenticated when the guard redirects.
func (e *Exporter) profile(ctx context.Context) (*models.User, error) {
	nav, err := e.nav.Navigate(ctx, "/profile")
	if err != nil {
		return nil, err
	}
	if nav.Redirected || nav.Match == nil || nav.Match.User == nil {
		return nil, fmt.Errorf("%w: sign in before exporting", shared.ErrNotAuthenticated)
	}
	return nav.Match.User, nil
}

func baseSections(admin bool) []section {
	same := func(data any) any { return data }
	home := func(pick func(app.HomePage) []models.Movie) func(any) any {
		return func(data any) any {
			page, _ := data.(app.HomePage)
			return pick(page)
		}
	}

	sections := []section{
		{name: "movies", href: "/movies", title: "Movies", pick: same},
		{name: "latest", href: "/", title: "Recently added", pick: home(func(p app.HomePage) []models.Movie { return p.Latest })},
		{name: "now-playing", href: "/", title: "Continue watching", pick: home(func(p app.HomePage) []models.Movie { return p.NowPlaying })},
		{name: "history", href: "/history", pick: same},
		{name: "profile", href: "/profile", pick: same},
	}
	if admin {
		sections = append(sections,
			section{name: "users", href: "/users", pick: same},
			section{name: "settings", href: "/settings", pick: same},
		)
	}
	return sections
}

// detailSections lists one section per movie in the library.
func (e *Exporter) detailSections(ctx context.Context) ([]section, error) {
	nav, err := e.nav.Navigate(ctx, "/movies")
	if err != nil {
		return nil, err
	}
	if nav.Err != nil {
		return nil, nav.Err
	}
	movies, _ := nav.Match.Data.([]models.Movie)

	sections := make([]section, 0, len(movies))
	for _, m := range movies {
		id := strconv.Itoa(m.ID)
		sections = append(sections, section{
			name: filepath.Join("movies", id),
			href: "/movies/" + id,
			pick: func(data any) any { return data },
		})
	}
	return sections, nil
}

// exportWorker is a worker goroutine that exports sections from the jobs channel.
func (e *Exporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan section,
	results chan<- ExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		res := ExportResult{Name: job.name, Href: job.href}
		if err := limiter.Wait(ctx); err != nil {
			res.Error = err.Error()
			results <- res
			continue
		}
		results <- e.exportSection(ctx, job, opts)
	}
}

// exportSection loads one section and writes it in the requested format.
func (e *Exporter) exportSection(ctx context.Context, s section, opts ExportOpts) ExportResult {
	res := ExportResult{Name: s.name, Href: s.href}
	fail := func(err error) ExportResult {
		e.logger.Debug("section failed", "section", s.name, "err", err)
		res.Error = services.ErrorMessage(err)
		return res
	}

	nav, err := e.nav.Navigate(ctx, s.href)
	if err != nil {
		return fail(err)
	}
	if nav.Redirected {
		return fail(fmt.Errorf("%w: redirected to %s", shared.ErrForbidden, nav.Href))
	}
	if nav.Err != nil {
		return fail(nav.Err)
	}

	data, err := render(opts.Format, s.title, s.pick(nav.Match.Data))
	if err != nil {
		return fail(err)
	}

	path := filepath.Join(opts.OutputDir, s.name+"."+Extension(opts.Format))
	if err := formatter.WriteExport(path, data); err != nil {
		return fail(err)
	}

	res.File = path
	res.Success = true
	return res
}

// render formats route data with the matching formatter.
func render(format formatter.Format, title string, data any) ([]byte, error) {
	switch v := data.(type) {
	case []models.Movie:
		return formatter.Movies(format, title, v)
	case *models.Movie:
		return formatter.Movie(format, *v)
	case []repositories.HistoryEntry:
		return formatter.History(format, v)
	case []models.User:
		return formatter.Users(format, v)
	case *models.User:
		return formatter.User(format, *v)
	case *models.Settings:
		return formatter.Settings(format, *v)
	}
	return nil, fmt.Errorf("%w: cannot export %T", shared.ErrInvalidArgument, data)
}

// Extension returns the file extension used for format.
func Extension(format formatter.Format) string {
	switch format {
	case formatter.FormatMarkdown:
		return "md"
	case formatter.FormatText:
		return "txt"
	}
	return string(format)
}
