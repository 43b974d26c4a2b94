package app

import (
	"context"
	"strconv"

	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/query"
	"github.com/desertthunder/igloo/internal/repositories"
	"github.com/desertthunder/igloo/internal/router"
	"golang.org/x/sync/errgroup"
)

// Route names.
const (
	RouteLogin      = "login"
	RouteAuthed     = "authenticated"
	RouteHome       = "home"
	RouteMovies     = "movies"
	RouteMovie      = "movie"
	RoutePlay       = "play"
	RouteHistory    = "history"
	RouteProfile    = "profile"
	RouteAdmin      = "admin"
	RouteSettings   = "settings"
	RouteUsers      = "users"
	RouteUserNew    = "user-new"
	RouteUserDetail = "user"
)

// Query keys.
var (
	MoviesKey     = query.Key{"movies"}
	LatestKey     = query.Key{"movies", "latest"}
	NowPlayingKey = query.Key{"movies", "now-playing"}
	SettingsKey   = query.Key{"settings"}
	UsersKey      = query.Key{"users"}
)

// MovieKey is the query key for a single movie.
func MovieKey(id int) query.Key { return query.Key{"movie", strconv.Itoa(id)} }

// UserKey is the query key for a single user.
func UserKey(id int) query.Key { return query.Key{"user", strconv.Itoa(id)} }

// HomePage is the home route's data.
type HomePage struct {
	Latest     []models.Movie
	NowPlaying []models.Movie
}

// PlayTarget is the play route's data.
type PlayTarget struct {
	Movie models.Movie
	URL   string
}

func (p *Provider) routes() []*router.Route {
	return []*router.Route{
		{
			Path:           router.LoginPath,
			Name:           RouteLogin,
			ValidateSearch: router.LoginSearch,
			BeforeLoad: func(ctx context.Context, m *router.Match) error {
				if !p.Session.Snapshot().IsAuthenticated {
					return nil
				}
				if _, err := p.WhoAmI(ctx); err != nil {
					return nil
				}
				return &router.Redirect{To: router.AfterLogin(m)}
			},
		},
		{
			Name:       RouteAuthed,
			BeforeLoad: router.RequireAuth(p.WhoAmI),
			Children: []*router.Route{
				{Path: "/", Name: RouteHome, Loader: p.loadHome},
				{Path: "movies", Name: RouteMovies, Loader: p.loadMovies},
				{Path: "movies/:id", Name: RouteMovie, Loader: p.loadMovie},
				{Path: "movies/:id/play", Name: RoutePlay, Loader: p.loadPlay},
				{Path: "history", Name: RouteHistory, Loader: p.loadHistory},
				{Path: "profile", Name: RouteProfile, Loader: p.loadProfile},
				{
					Name:       RouteAdmin,
					BeforeLoad: router.RequireAdmin(),
					Children: []*router.Route{
						{Path: "settings", Name: RouteSettings, Loader: p.loadSettings},
						{Path: "users", Name: RouteUsers, Loader: p.loadUsers},
						{Path: "users/new", Name: RouteUserNew},
						{Path: "users/:id", Name: RouteUserDetail, Loader: p.loadUser},
					},
				},
			},
		},
	}
}

func (p *Provider) loadHome(ctx context.Context, _ *router.Match) (any, error) {
	var page HomePage
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		page.Latest, err = query.Fetch(ctx, p.Queries, LatestKey, p.Movies.Latest)
		return err
	})
	g.Go(func() (err error) {
		page.NowPlaying, err = query.Fetch(ctx, p.Queries, NowPlayingKey, p.Movies.NowPlaying)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func (p *Provider) loadMovies(ctx context.Context, _ *router.Match) (any, error) {
	return query.Fetch(ctx, p.Queries, MoviesKey, p.Movies.List)
}

func (p *Provider) loadMovie(ctx context.Context, m *router.Match) (any, error) {
	id, err := paramID(m)
	if err != nil {
		return nil, err
	}
	return query.Fetch(ctx, p.Queries, MovieKey(id), func(ctx context.Context) (*models.Movie, error) {
		return p.Movies.Get(ctx, id)
	})
}

func (p *Provider) loadPlay(ctx context.Context, m *router.Match) (any, error) {
	movie, err := p.loadMovie(ctx, m)
	if err != nil {
		return nil, err
	}
	mv := *movie.(*models.Movie)
	return PlayTarget{Movie: mv, URL: p.Movies.StreamURL(mv.ID)}, nil
}

func (p *Provider) loadHistory(ctx context.Context, _ *router.Match) (any, error) {
	if p.History == nil {
		return []repositories.HistoryEntry{}, nil
	}
	return p.History.Recent(ctx, 0)
}

func (p *Provider) loadProfile(_ context.Context, m *router.Match) (any, error) {
	return m.User, nil
}

func (p *Provider) loadSettings(ctx context.Context, _ *router.Match) (any, error) {
	return query.Fetch(ctx, p.Queries, SettingsKey, p.Settings.Get)
}

func (p *Provider) loadUsers(ctx context.Context, _ *router.Match) (any, error) {
	return query.Fetch(ctx, p.Queries, UsersKey, p.Users.List)
}

func (p *Provider) loadUser(ctx context.Context, m *router.Match) (any, error) {
	id, err := paramID(m)
	if err != nil {
		return nil, err
	}
	return query.Fetch(ctx, p.Queries, UserKey(id), func(ctx context.Context) (*models.User, error) {
		return p.Users.Get(ctx, id)
	})
}
