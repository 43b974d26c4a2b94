package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/shared"
	tu "github.com/desertthunder/igloo/internal/testing"
	"github.com/desertthunder/igloo/internal/views"
)

type harness struct {
	backend *tu.Backend
	web     *httptest.Server
	client  *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := tu.NewBackend(t)
	cfg := shared.DefaultConfig()
	cfg.Server.URL = backend.URL()
	cfg.Server.APIPrefix = tu.APIPrefix
	cfg.Query.Retry = 0
	cfg.Query.RetryDelay = time.Millisecond

	p, err := app.New(app.Options{Config: cfg, Tokens: tu.NewMemoryTokenStore("")})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	srv, err := New(p, "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	web := httptest.NewServer(srv.Handler())
	t.Cleanup(web.Close)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	return &harness{backend: backend, web: web, client: client}
}

func (h *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.Get(h.web.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (h *harness) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.PostForm(h.web.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (h *harness) login(t *testing.T, username string) {
	t.Helper()
	resp, _ := h.post(t, "/login", url.Values{"username": {username}, "password": {tu.Password}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login failed with status %d", resp.StatusCode)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}

func expectRedirect(t *testing.T, resp *http.Response, to string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != to {
		t.Errorf("expected redirect to %q, got %q", to, got)
	}
}

func TestFrontend(t *testing.T) {
	t.Run("protected pages redirect to login", func(t *testing.T) {
		h := newHarness(t)

		resp, _ := h.get(t, "/movies?sort=title")
		expectRedirect(t, resp, "/login?redirect=%2Fmovies%3Fsort%3Dtitle")

		resp, body := h.get(t, "/login?redirect=%2Fmovies%3Fsort%3Dtitle")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, `name="redirect" value="/movies?sort=title"`) {
			t.Errorf("expected login form to carry the redirect, got %s", body)
		}
	})

	t.Run("login returns to the requested page", func(t *testing.T) {
		h := newHarness(t)

		resp, _ := h.post(t, "/login", url.Values{
			"username": {"viewer"}, "password": {tu.Password}, "redirect": {"/movies"},
		})
		expectRedirect(t, resp, "/movies")

		resp, body := h.get(t, "/movies")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		for _, want := range []string{"Heat (1995)", "Alien (1979)", "Viewer"} {
			if !strings.Contains(body, want) {
				t.Errorf("expected page to contain %q", want)
			}
		}
	})

	t.Run("login drops external redirects", func(t *testing.T) {
		h := newHarness(t)

		resp, _ := h.post(t, "/login", url.Values{
			"username": {"viewer"}, "password": {tu.Password}, "redirect": {"//evil.example"},
		})
		expectRedirect(t, resp, "/")
	})

	t.Run("bad credentials show the server message", func(t *testing.T) {
		h := newHarness(t)

		resp, body := h.post(t, "/login", url.Values{"username": {"viewer"}, "password": {"nope-nope"}})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "invalid username or password") {
			t.Errorf("expected server message, got %s", body)
		}
	})

	t.Run("missing credentials never reach the server", func(t *testing.T) {
		h := newHarness(t)

		resp, body := h.post(t, "/login", url.Values{"username": {"viewer"}})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "password is required") {
			t.Errorf("expected field error, got %s", body)
		}
		if n := h.backend.Calls("POST /auth/login"); n != 0 {
			t.Errorf("expected no login request, got %d", n)
		}
	})

	t.Run("home lists latest and in-progress movies", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "viewer")

		_, body := h.get(t, "/")
		if !strings.Contains(body, "Continue watching") || !strings.Contains(body, "Arrival (2016)") {
			t.Errorf("unexpected home page: %s", body)
		}
	})

	t.Run("empty sections use the shared messages", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "viewer")
		h.backend.Fail("GET /movies/latest", 200, "", 0)
		h.backend.Fail("GET /movies/now-playing", 200, "", 0)

		_, body := h.get(t, "/")
		if !strings.Contains(body, views.EmptyNowPlaying) || !strings.Contains(body, views.EmptyLatest) {
			t.Errorf("unexpected home page: %s", body)
		}

		_, body = h.get(t, "/history")
		if !strings.Contains(body, views.EmptyHistory) {
			t.Errorf("unexpected history page: %s", body)
		}
	})

	t.Run("unknown pages are not found", func(t *testing.T) {
		h := newHarness(t)

		resp, _ := h.get(t, "/nowhere")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("missing movie renders not found", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "viewer")

		resp, body := h.get(t, "/movies/99")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "Back to movies") {
			t.Errorf("expected movie error state, got %s", body)
		}
	})

	t.Run("non-admins are sent home from settings", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "viewer")

		resp, _ := h.get(t, "/settings")
		expectRedirect(t, resp, "/")
	})

	t.Run("logout ends the session", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "viewer")

		resp, _ := h.post(t, "/logout", nil)
		expectRedirect(t, resp, "/login")

		resp, _ = h.get(t, "/movies")
		expectRedirect(t, resp, "/login?redirect=%2Fmovies")
	})
}

func TestFrontendMutations(t *testing.T) {
	settingsForm := func(name string) url.Values {
		return url.Values{
			"serverName":           {name},
			"moviesDir":            {"/media/movies"},
			"hardwareAcceleration": {"vaapi"},
		}
	}

	t.Run("settings are saved", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "admin")

		resp, _ := h.post(t, "/settings", settingsForm("den"))
		expectRedirect(t, resp, "/settings")

		_, body := h.get(t, "/settings")
		if !strings.Contains(body, `value="den"`) {
			t.Errorf("expected saved server name, got %s", body)
		}
		if !strings.Contains(body, "Settings saved.") {
			t.Errorf("expected success banner, got %s", body)
		}
		if got := h.backend.Settings().HardwareAcceleration; got != "vaapi" {
			t.Errorf("expected backend to store vaapi, got %q", got)
		}
	})

	t.Run("invalid settings show field errors", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "admin")

		resp, body := h.post(t, "/settings", settingsForm(""))
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "serverName is required") {
			t.Errorf("expected field error, got %s", body)
		}
		if n := h.backend.Calls("PUT /settings"); n != 0 {
			t.Errorf("expected no settings request, got %d", n)
		}
	})

	t.Run("server failures keep the form", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "admin")
		h.backend.Fail("PUT /settings", http.StatusInternalServerError, "disk full", 1)

		resp, body := h.post(t, "/settings", settingsForm("den"))
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "disk full") || !strings.Contains(body, `value="den"`) {
			t.Errorf("expected error and submitted values, got %s", body)
		}
	})

	t.Run("users are created", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "admin")

		resp, _ := h.post(t, "/users", url.Values{
			"name": {"Guest"}, "email": {"guest@igloo.local"}, "username": {"guest"},
			"password": {"password456"}, "isActive": {"on"},
		})
		if resp.StatusCode != http.StatusSeeOther || !strings.HasPrefix(resp.Header.Get("Location"), "/users/") {
			t.Fatalf("expected redirect to the new user, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}

		_, body := h.get(t, "/users")
		if !strings.Contains(body, "guest@igloo.local") {
			t.Errorf("expected new user in list, got %s", body)
		}
	})

	t.Run("cross-origin posts are rejected", func(t *testing.T) {
		h := newHarness(t)

		req, _ := http.NewRequest(http.MethodPost, h.web.URL+"/logout", nil)
		req.Header.Set("Origin", "https://evil.example")
		resp, err := h.client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("applies middleware in order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("recovers from panics", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewBasicRouter()
		r.Use(RequestID, RequestLogger(shared.NewLogger(&buf)), Recoverer)
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if out := buf.String(); !strings.Contains(out, "handler panicked") || !strings.Contains(out, "/boom") {
			t.Errorf("panic should be logged with the request path, got %q", out)
		}
	})
}
