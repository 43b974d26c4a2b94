package router

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/shared"
)

// Params holds values of ":param" segments.
type Params map[string]string

// Location is a parsed in-app URL.
type Location struct {
	Path   string
	Search url.Values
}

// ParseLocation parses an in-app href such as "/movies/42?tab=info".
func ParseLocation(href string) (Location, error) {
	u, err := url.Parse(href)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if u.IsAbs() || u.Host != "" {
		return Location{}, fmt.Errorf("%w: %q is not an in-app location", shared.ErrInvalidArgument, href)
	}

	p := "/" + strings.Trim(u.Path, "/")
	return Location{Path: p, Search: u.Query()}, nil
}

// Href renders the location back into a path with its query string.
func (l Location) Href() string {
	if len(l.Search) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Search.Encode()
}

// BeforeLoadFunc runs before a route loads. Returning an error aborts the navigation.
type BeforeLoadFunc func(ctx context.Context, m *Match) error

// LoaderFunc fetches the data a leaf route renders.
type LoaderFunc func(ctx context.Context, m *Match) (any, error)

// SearchFunc parses and sanitizes query parameters into a typed value.
type SearchFunc func(search url.Values) (any, error)

// Route is one node of the route tree.
//
// Path is relative to the parent: "" marks a pathless layout route that groups children
// under shared hooks, "/" marks the parent's index, and segments starting with ':' capture params.
type Route struct {
	Path           string
	Name           string
	BeforeLoad     BeforeLoadFunc
	Loader         LoaderFunc
	ValidateSearch SearchFunc
	Children       []*Route
}

func (r *Route) segments() []string {
	p := strings.Trim(r.Path, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (r *Route) isLayout() bool { return r.Path == "" }

// Match is the result of a navigation.
type Match struct {
	Route    *Route
	Chain    []*Route
	Params   Params
	Location Location
	// Search is the value returned by the deepest ValidateSearch in the chain.
	Search any
	// User is set by [RequireAuth] for the rest of the subtree.
	User *models.User
	Data any
}

// Name returns the leaf route's name.
func (m *Match) Name() string {
	if m == nil || m.Route == nil {
		return ""
	}
	return m.Route.Name
}

// Router resolves locations against a route tree.
type Router struct {
	routes []*Route
	logger *log.Logger
}

// New creates a router over the given top-level routes.
func New(logger *log.Logger, routes ...*Route) *Router {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Router{routes: routes, logger: logger}
}

// Resolve matches loc without running any hooks.
func (r *Router) Resolve(loc Location) (*Match, bool) {
	var segs []string
	if p := strings.Trim(loc.Path, "/"); p != "" {
		segs = strings.Split(p, "/")
	}

	for _, route := range r.routes {
		params := Params{}
		if chain, ok := match(route, segs, params); ok {
			return &Match{Route: chain[len(chain)-1], Chain: chain, Params: params, Location: loc}, true
		}
	}
	return nil, false
}

func match(route *Route, segs []string, params Params) ([]*Route, bool) {
	own := route.segments()
	if len(own) > len(segs) {
		return nil, false
	}

	captured := map[string]string{}
	for i, s := range own {
		switch {
		case strings.HasPrefix(s, ":"):
			v, err := url.PathUnescape(segs[i])
			if err != nil {
				return nil, false
			}
			captured[s[1:]] = v
		case s != segs[i]:
			return nil, false
		}
	}
	rest := segs[len(own):]

	for _, child := range route.Children {
		if chain, ok := match(child, rest, params); ok {
			for k, v := range captured {
				params[k] = v
			}
			return append([]*Route{route}, chain...), true
		}
	}

	if len(rest) == 0 && !route.isLayout() {
		for k, v := range captured {
			params[k] = v
		}
		return []*Route{route}, true
	}
	return nil, false
}

// Navigate resolves href, validates its search, runs BeforeLoad hooks root to leaf and then the
// leaf loader. A hook error, including a [*Redirect], is returned as is.
func (r *Router) Navigate(ctx context.Context, href string) (*Match, error) {
	loc, err := ParseLocation(href)
	if err != nil {
		return nil, err
	}

	m, ok := r.Resolve(loc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrRouteNotFound, loc.Path)
	}

	for _, route := range m.Chain {
		if route.ValidateSearch == nil {
			continue
		}
		search, err := route.ValidateSearch(loc.Search)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		m.Search = search
	}

	for _, route := range m.Chain {
		if route.BeforeLoad == nil {
			continue
		}
		if err := route.BeforeLoad(ctx, m); err != nil {
			r.logger.Debug("navigation stopped", "href", href, "route", route.Name, "err", err)
			return nil, err
		}
	}

	if m.Route.Loader != nil {
		data, err := m.Route.Loader(ctx, m)
		if err != nil {
			return m, err
		}
		m.Data = data
	}

	r.logger.Debug("navigated", "href", href, "route", m.Route.Name)
	return m, nil
}
