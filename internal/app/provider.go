package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/auth"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/player"
	"github.com/desertthunder/igloo/internal/query"
	"github.com/desertthunder/igloo/internal/repositories"
	"github.com/desertthunder/igloo/internal/router"
	"github.com/desertthunder/igloo/internal/services"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/desertthunder/igloo/internal/views"
)

// MaxRedirects bounds how many redirects a single navigation follows.
const MaxRedirects = 5

// Options configures a [Provider]. Config is required; so is one of Tokens or DB.
type Options struct {
	Config     *shared.Config
	Logger     *log.Logger
	HTTPClient *http.Client
	// Tokens persists the refresh token. When nil it is stored in DB.
	Tokens auth.TokenStore
	// DB is the client state database. Watch history is disabled without it.
	DB *sql.DB
}

// Provider is the application root shared by every frontend.
type Provider struct {
	Config    *shared.Config
	Logger    *log.Logger
	API       *services.APIService
	Auth      *services.AuthService
	Movies    *services.MovieService
	Users     *services.UserService
	Settings  *services.SettingsService
	Session   *auth.Store
	Refresher *auth.Refresher
	Queries   *query.Client
	Router    *router.Router
	Banners   *views.Banners
	Player    *player.Player
	History   *repositories.HistoryRepository
	State     *repositories.StateRepository
}

// New wires a provider from opts.
func New(opts Options) (*Provider, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: config is required", shared.ErrMissingConfig)
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	p := &Provider{Config: cfg, Logger: logger}

	tokens := opts.Tokens
	if opts.DB != nil {
		p.State = repositories.NewStateRepository(opts.DB)
		p.History = repositories.NewHistoryRepository(opts.DB)
		if tokens == nil {
			tokens = repositories.NewRefreshTokenStore(p.State)
		}
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: a token store or database is required", shared.ErrInvalidConfig)
	}

	p.Queries = query.NewClient(query.Options{
		StaleTime:   cfg.Query.StaleTime,
		Retry:       cfg.Query.Retry,
		RetryDelay:  cfg.Query.RetryDelay,
		ShouldRetry: services.IsRetryable,
	}, shared.WithLogger(logger, "component", "query"))

	p.Session = auth.NewStore(tokens, p.Queries, shared.WithLogger(logger, "component", "session"))

	p.API = services.NewAPIService(cfg.Server.BaseURL(), opts.HTTPClient,
		services.WithTokenSource(p.Session),
		services.WithRateLimit(cfg.Server.RequestsPerSecond),
		services.WithLogger(shared.WithLogger(logger, "component", "api")),
	)
	p.Auth = services.NewAuthService(p.API)
	p.Movies = services.NewMovieService(p.API)
	p.Users = services.NewUserService(p.API)
	p.Settings = services.NewSettingsService(p.API)

	p.Refresher = auth.NewRefresher(p.Auth, p.Session, p.Queries, cfg.Auth.RefreshInterval,
		shared.WithLogger(logger, "component", "refresher"))
	p.Router = router.New(shared.WithLogger(logger, "component", "router"), p.routes()...)
	p.Banners = views.NewBanners(cfg.UI.BannerTimeout)
	p.Player = player.New(cfg.Player, p.Session, shared.WithLogger(logger, "component", "player"))

	return p, nil
}

// Boot settles the session from the stored refresh token before the first navigation.
func (p *Provider) Boot(ctx context.Context) auth.State {
	state := p.Refresher.Boot(ctx)
	p.Logger.Debug("booted", "state", state)
	return state
}

// Start runs the refresh loop in the background until ctx is done.
func (p *Provider) Start(ctx context.Context) {
	go func() {
		if err := p.Refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.Logger.Error("refresh loop stopped", "err", err)
		}
	}()
}

// Login authenticates and starts a session.
func (p *Provider) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	resp, err := p.Auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := p.Session.Login(ctx, resp); err != nil {
		p.Logger.Warn("session will not survive a restart", "err", err)
	}
	user := resp.User
	return &user, nil
}

// Logout revokes the refresh token server-side, then clears the local session regardless.
func (p *Provider) Logout(ctx context.Context) error {
	token, _ := p.Session.RefreshToken(ctx)
	if err := p.Auth.Logout(ctx, token); err != nil {
		p.Logger.Warn("server logout failed", "err", err)
	}
	return p.Session.Logout(ctx)
}

// WhoAmI confirms the session with the server. It always makes a round trip; concurrent
// callers share it through the auth query. A rejected session is expired locally.
func (p *Provider) WhoAmI(ctx context.Context) (*models.User, error) {
	user, err := query.Fetch(ctx, p.Queries, auth.AuthKey, p.Auth.Me, query.WithStaleTime(0))
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) && p.Session.Snapshot().IsAuthenticated {
			if expErr := p.Session.Expire(ctx, err); expErr != nil {
				p.Logger.Error("failed to clear session", "err", expErr)
			}
		}
		return nil, err
	}
	p.Session.Confirmed(*user)
	return user, nil
}

// Navigation is the outcome of [Provider.Navigate].
type Navigation struct {
	Match *router.Match
	// Href is the location finally rendered, after redirects.
	Href string
	// Redirected is true when Href differs from the requested location.
	Redirected bool
	// Cause is why the first redirect happened, if it was a failure.
	Cause error
	// Err is a loader failure for the view to render.
	Err error
}

// Navigate resolves href and follows redirects until a route loads.
func (p *Provider) Navigate(ctx context.Context, href string) (*Navigation, error) {
	nav := &Navigation{Href: href}

	for range MaxRedirects + 1 {
		m, err := p.Router.Navigate(ctx, nav.Href)

		var redirect *router.Redirect
		if errors.As(err, &redirect) {
			if !nav.Redirected {
				nav.Cause = redirect.Cause
			}
			nav.Redirected = true
			nav.Href = redirect.To
			continue
		}

		if m == nil {
			return nav, err
		}
		nav.Match = m
		nav.Err = err
		return nav, nil
	}

	return nav, fmt.Errorf("%w: last location %s", shared.ErrRedirectLoop, nav.Href)
}

// UpdateSettings saves settings and invalidates the cached copy.
func (p *Provider) UpdateSettings(ctx context.Context, s models.Settings) (*models.Settings, error) {
	return views.Mutate(ctx, p.Queries, p.Settings.Update, s, SettingsKey)
}

// CreateUser creates a user and invalidates the user list.
func (p *Provider) CreateUser(ctx context.Context, in models.UserInput) (*models.User, error) {
	return views.Mutate(ctx, p.Queries, p.Users.Create, in, UsersKey)
}

// UpdateUser updates a user and invalidates the list, the user and, when editing
// oneself, the auth query.
func (p *Provider) UpdateUser(ctx context.Context, id int, in models.UserInput) (*models.User, error) {
	keys := []query.Key{UsersKey, UserKey(id)}
	if snap := p.Session.Snapshot(); snap.User != nil && snap.User.ID == id {
		keys = append(keys, auth.AuthKey)
	}

	update := func(ctx context.Context, in models.UserInput) (*models.User, error) {
		return p.Users.Update(ctx, id, in)
	}
	return views.Mutate(ctx, p.Queries, update, in, keys...)
}

// RecordPlay adds a movie to the local watch history when a database is configured.
func (p *Provider) RecordPlay(ctx context.Context, movie models.Movie) {
	if p.History == nil {
		return
	}
	if err := p.History.Record(ctx, movie); err != nil {
		p.Logger.Warn("failed to record history", "movie", movie.ID, "err", err)
	}
}

// Play starts the external player for a movie and blocks until it exits.
func (p *Provider) Play(ctx context.Context, movie models.Movie) error {
	p.RecordPlay(ctx, movie)
	return p.Player.Play(ctx, p.Movies.StreamURL(movie.ID))
}

// LastLocation returns the location saved by [Provider.SaveLocation], or "/".
func (p *Provider) LastLocation(ctx context.Context) string {
	if p.State == nil {
		return "/"
	}
	href, err := p.State.Get(ctx, lastLocationKey)
	if err != nil || !models.IsLocalPath(href) {
		return "/"
	}
	return href
}

// SaveLocation remembers href so the next run can reopen it.
func (p *Provider) SaveLocation(ctx context.Context, href string) {
	if p.State == nil || !models.IsLocalPath(href) {
		return
	}
	if err := p.State.Set(ctx, lastLocationKey, href); err != nil {
		p.Logger.Debug("failed to save location", "err", err)
	}
}

const lastLocationKey = "ui.last_location"

func paramID(m *router.Match) (int, error) {
	id, err := strconv.Atoi(m.Params["id"])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", shared.ErrNotFound, m.Params["id"])
	}
	return id, nil
}
