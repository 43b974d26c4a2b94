package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/router"
	"github.com/desertthunder/igloo/internal/services"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/desertthunder/igloo/internal/views"
	"github.com/go-chi/chi/v5"
)

// pageData is what every template receives.
type pageData struct {
	Title    string
	Href     string
	User     *models.User
	Banner   *views.Banner
	Data     any
	Error    string
	Form     any
	Fields   map[string]string
	Redirect string
}

// Frontend renders provider routes as HTML pages and handles form posts.
type Frontend struct {
	provider *app.Provider
	pages    map[string]*template.Template
	logger   *log.Logger
}

// NewFrontend parses the embedded templates.
func NewFrontend(p *app.Provider, logger *log.Logger) (*Frontend, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Frontend{provider: p, pages: pages, logger: logger}, nil
}

// Register adds the frontend's routes to r.
func (f *Frontend) Register(r *BasicRouter) {
	page := http.HandlerFunc(f.page)

	for path, action := range map[string]http.HandlerFunc{
		"/login":                f.login,
		"/logout":               f.logout,
		"/settings":             f.saveSettings,
		"/users":                f.createUser,
		"/users/{id}":           f.updateUser,
		"/movies/{id}/play":     f.play,
		"/banners/{id}/dismiss": f.dismiss,
	} {
		r.Handle(http.MethodPost, path, action)
		r.Handle(http.MethodGet, path, page)
	}
	r.Handle(http.MethodGet, "/", page)
	r.Handle(http.MethodGet, "/*", page)
	r.NotFound(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.renderError(w, r, fmt.Errorf("%w: %s", shared.ErrRouteNotFound, r.URL.Path))
	}))
}

func (f *Frontend) page(w http.ResponseWriter, r *http.Request) {
	nav, err := f.provider.Navigate(r.Context(), r.URL.RequestURI())
	if err != nil {
		f.renderError(w, r, err)
		return
	}
	if nav.Redirected {
		http.Redirect(w, r, nav.Href, http.StatusSeeOther)
		return
	}

	data := f.data(nav.Match, r)
	data.Data = nav.Match.Data
	if nav.Err != nil {
		data.Error = services.ErrorMessage(nav.Err)
	}

	switch nav.Match.Name() {
	case app.RouteLogin:
		data.Redirect = router.AfterLogin(nav.Match)
	case app.RouteSettings:
		if s, ok := nav.Match.Data.(*models.Settings); ok {
			data.Form = *s
		}
	case app.RouteUserNew:
		data.Form = models.UserInput{IsActive: true}
	case app.RouteUserDetail:
		if u, ok := nav.Match.Data.(*models.User); ok {
			data.Form = models.InputFromUser(*u)
		}
	}

	f.render(w, nav.Match.Name(), data, statusFor(nav.Err))
}

func (f *Frontend) login(w http.ResponseWriter, r *http.Request) {
	creds := models.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	search, _ := router.LoginSearch(url.Values{"redirect": {r.PostFormValue("redirect")}})
	to := router.AfterLogin(&router.Match{Search: search})

	if _, err := f.provider.Login(r.Context(), creds); err != nil {
		data := f.data(nil, r)
		data.Form = models.Credentials{Username: creds.Username}
		data.Redirect = to
		f.fail(w, app.RouteLogin, data, err)
		return
	}

	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (f *Frontend) logout(w http.ResponseWriter, r *http.Request) {
	if err := f.provider.Logout(r.Context()); err != nil {
		f.logger.Warn("logout did not clear stored token", "err", err)
	}
	http.Redirect(w, r, router.LoginPath, http.StatusSeeOther)
}

func (f *Frontend) saveSettings(w http.ResponseWriter, r *http.Request) {
	s := models.Settings{
		ServerName:           r.PostFormValue("serverName"),
		MoviesDir:            r.PostFormValue("moviesDir"),
		ShowsDir:             r.PostFormValue("showsDir"),
		MusicDir:             r.PostFormValue("musicDir"),
		TranscodeDir:         r.PostFormValue("transcodeDir"),
		HardwareAcceleration: r.PostFormValue("hardwareAcceleration"),
		TMDBAPIKey:           r.PostFormValue("tmdbApiKey"),
	}

	if _, err := f.provider.UpdateSettings(r.Context(), s); err != nil {
		if f.redirectIfUnauthorized(w, r, err) {
			return
		}
		data := f.data(nil, r)
		data.Form = s
		f.fail(w, app.RouteSettings, data, err)
		return
	}

	f.provider.Banners.Success("Settings saved.")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (f *Frontend) createUser(w http.ResponseWriter, r *http.Request) {
	in := userInput(r)

	user, err := f.provider.CreateUser(r.Context(), in)
	if err != nil {
		if f.redirectIfUnauthorized(w, r, err) {
			return
		}
		data := f.data(nil, r)
		data.Form = in
		f.fail(w, app.RouteUserNew, data, err)
		return
	}

	f.provider.Banners.Success(fmt.Sprintf("Created %s.", user.Username))
	http.Redirect(w, r, fmt.Sprintf("/users/%d", user.ID), http.StatusSeeOther)
}

func (f *Frontend) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		f.renderError(w, r, fmt.Errorf("%w: user %q", shared.ErrNotFound, chi.URLParam(r, "id")))
		return
	}
	in := userInput(r)

	user, err := f.provider.UpdateUser(r.Context(), id, in)
	if err != nil {
		if f.redirectIfUnauthorized(w, r, err) {
			return
		}
		data := f.data(nil, r)
		data.Form = in
		f.fail(w, app.RouteUserDetail, data, err)
		return
	}

	f.provider.Banners.Success(fmt.Sprintf("Saved %s.", user.Username))
	http.Redirect(w, r, fmt.Sprintf("/users/%d", user.ID), http.StatusSeeOther)
}

func (f *Frontend) play(w http.ResponseWriter, r *http.Request) {
	nav, err := f.provider.Navigate(r.Context(), r.URL.Path)
	if err != nil {
		f.renderError(w, r, err)
		return
	}
	if nav.Redirected {
		http.Redirect(w, r, nav.Href, http.StatusSeeOther)
		return
	}
	if nav.Err != nil {
		f.render(w, app.RoutePlay, pageData{Title: "Play", Error: services.ErrorMessage(nav.Err)}, statusFor(nav.Err))
		return
	}

	target := nav.Match.Data.(app.PlayTarget)
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := f.provider.Play(ctx, target.Movie); err != nil {
			f.logger.Error("playback failed", "movie", target.Movie.ID, "err", err)
			f.provider.Banners.Error(err)
		}
	}()

	f.provider.Banners.Show(views.BannerInfo, "Playing "+target.Movie.Label()+".")
	http.Redirect(w, r, fmt.Sprintf("/movies/%d", target.Movie.ID), http.StatusSeeOther)
}

func (f *Frontend) dismiss(w http.ResponseWriter, r *http.Request) {
	if id, err := strconv.Atoi(chi.URLParam(r, "id")); err == nil {
		f.provider.Banners.Dismiss(id)
	}

	to := r.PostFormValue("redirect")
	if !models.IsLocalPath(to) {
		to = "/"
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// redirectIfUnauthorized sends the browser to log in when a write failed because the session ended.
func (f *Frontend) redirectIfUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, shared.ErrNotAuthenticated) {
		return false
	}
	http.Redirect(w, r, router.LoginRedirect(r.URL.Path, err).To, http.StatusSeeOther)
	return true
}

// fail re-renders a form page with err. Validation errors are shown per field.
func (f *Frontend) fail(w http.ResponseWriter, name string, data pageData, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		data.Fields = fieldErrors(verr)
	}
	data.Error = services.ErrorMessage(err)
	f.render(w, name, data, statusFor(err))
}

func (f *Frontend) renderError(w http.ResponseWriter, r *http.Request, err error) {
	data := f.data(nil, r)
	data.Error = services.ErrorMessage(err)

	name := pageError
	if errors.Is(err, shared.ErrRouteNotFound) || errors.Is(err, shared.ErrNotFound) {
		name = pageNotFound
	}

	status := statusFor(err)
	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	f.render(w, name, data, status)
}

func (f *Frontend) data(m *router.Match, r *http.Request) pageData {
	data := pageData{Href: r.URL.RequestURI(), User: f.provider.Session.Snapshot().User}
	if m != nil {
		data.Title = title(m.Name())
		if m.User != nil {
			data.User = m.User
		}
	}
	if b, ok := f.provider.Banners.Current(); ok {
		data.Banner = &b
	}
	return data
}

func (f *Frontend) render(w http.ResponseWriter, name string, data pageData, status int) {
	t, ok := f.pages[name]
	if !ok {
		t = f.pages[pageError]
	}
	if data.Title == "" {
		data.Title = title(name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		f.logger.Error("failed to render page", "page", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func userInput(r *http.Request) models.UserInput {
	return models.UserInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
		IsAdmin:  r.PostFormValue("isAdmin") != "",
		IsActive: r.PostFormValue("isActive") != "",
	}
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusBadGateway
	}

	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 500 {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

var titles = map[string]string{
	app.RouteLogin:      "Log in",
	app.RouteHome:       "Home",
	app.RouteMovies:     "Movies",
	app.RouteMovie:      "Movie",
	app.RoutePlay:       "Play",
	app.RouteHistory:    "History",
	app.RouteProfile:    "Profile",
	app.RouteSettings:   "Settings",
	app.RouteUsers:      "Users",
	app.RouteUserNew:    "New user",
	app.RouteUserDetail: "User",
	pageNotFound:        "Not found",
	pageError:           "Error",
}

func title(name string) string {
	if t, ok := titles[name]; ok {
		return t
	}
	return "Igloo"
}
