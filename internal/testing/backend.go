package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/igloo/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// APIPrefix is where [Backend] mounts its endpoints.
	APIPrefix = "/api/v1"
	// Password is the password of every seeded account.
	Password = "password123"
)

var signingKey = []byte("igloo-test-signing-key")

type failure struct {
	status  int
	message string
	times   int
}

// Backend is an in-memory Igloo server for tests.
//
// Seeded accounts: "admin" (id 1, admin) and "viewer" (id 2). Both use [Password].
type Backend struct {
	Server *httptest.Server
	// AccessTTL is the lifetime of issued access tokens.
	AccessTTL time.Duration

	mu       sync.Mutex
	users    map[int]models.User
	secrets  map[string]string
	movies   []models.Movie
	settings models.Settings
	access   map[string]int
	refresh  map[string]int
	calls    map[string]int
	failures map[string]*failure
	seq      int
}

// NewBackend starts a seeded [Backend] that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	added := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &Backend{
		AccessTTL: 15 * time.Minute,
		users: map[int]models.User{
			1: {ID: 1, Name: "Admin", Email: "admin@igloo.local", Username: "admin", IsAdmin: true, IsActive: true},
			2: {ID: 2, Name: "Viewer", Email: "viewer@igloo.local", Username: "viewer", IsActive: true},
		},
		secrets: map[string]string{"admin": Password, "viewer": Password},
		movies: []models.Movie{
			{ID: 1, Title: "Heat", Year: 1995, Runtime: 170, Genres: []string{"Crime"}, AddedAt: added, Duration: 10200},
			{ID: 2, Title: "Alien", Year: 1979, Runtime: 117, Genres: []string{"Horror", "Sci-Fi"}, AddedAt: added.Add(24 * time.Hour), Progress: 1800, Duration: 7020},
			{ID: 3, Title: "Arrival", Year: 2016, Runtime: 116, Genres: []string{"Sci-Fi"}, AddedAt: added.Add(48 * time.Hour), Duration: 6960},
		},
		settings: models.Settings{ServerName: "igloo", MoviesDir: "/media/movies", HardwareAcceleration: "none"},
		access:   map[string]int{},
		refresh:  map[string]int{},
		calls:    map[string]int{},
		failures: map[string]*failure{},
		seq:      2,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.login)
	mux.HandleFunc("POST /auth/refresh", b.refreshTokens)
	mux.HandleFunc("POST /auth/logout", b.logout)
	mux.HandleFunc("GET /auth/me", b.authed(b.me))
	mux.HandleFunc("GET /movies", b.authed(b.listMovies))
	mux.HandleFunc("GET /movies/latest", b.authed(b.latestMovies))
	mux.HandleFunc("GET /movies/now-playing", b.authed(b.nowPlaying))
	mux.HandleFunc("GET /movies/{id}", b.authed(b.getMovie))
	mux.HandleFunc("GET /settings", b.admin(b.getSettings))
	mux.HandleFunc("PUT /settings", b.admin(b.putSettings))
	mux.HandleFunc("GET /users", b.admin(b.listUsers))
	mux.HandleFunc("POST /users", b.admin(b.createUser))
	mux.HandleFunc("GET /users/{id}", b.admin(b.getUser))
	mux.HandleFunc("PUT /users/{id}", b.admin(b.putUser))
	mux.HandleFunc("GET /transcode/{id}/master.m3u8", b.authed(b.playlist))

	b.Server = httptest.NewServer(http.StripPrefix(APIPrefix, b.track(mux)))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the server URL without the API prefix.
func (b *Backend) URL() string { return b.Server.URL }

// BaseURL returns the server URL including the API prefix.
func (b *Backend) BaseURL() string { return b.Server.URL + APIPrefix }

// Calls returns how many times route (e.g. "POST /auth/refresh") was requested.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Fail makes the next times requests to route answer with status and, when non-empty, message.
// A times of 0 or less fails until [Backend.Recover] is called.
func (b *Backend) Fail(route string, status int, message string, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = &failure{status: status, message: message, times: times}
}

// Recover clears a failure installed with [Backend.Fail].
func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// IssueRefreshToken creates a valid refresh token for the user, as if they had logged in earlier.
func (b *Backend) IssueRefreshToken(userID int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	token := fmt.Sprintf("refresh-%d", b.seq)
	b.refresh[token] = userID
	return token
}

// RevokeAccess invalidates every access token, as when the server restarts.
func (b *Backend) RevokeAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = map[string]int{}
}

// RefreshTokenValid reports whether token can still be exchanged.
func (b *Backend) RefreshTokenValid(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.refresh[token]
	return ok
}

// Settings returns the stored settings.
func (b *Backend) Settings() models.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings
}

// User returns the stored user.
func (b *Backend) User(id int) (models.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	return u, ok
}

func (b *Backend) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.calls[route]++
		f := b.failures[route]
		if f != nil && f.times > 0 {
			f.times--
			if f.times == 0 {
				delete(b.failures, route)
			}
		}
		b.mu.Unlock()

		if f != nil {
			if f.message != "" {
				writeJSON(w, f.status, map[string]string{"error": f.message})
			} else {
				w.WriteHeader(f.status)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// issue must be called with b.mu held.
func (b *Backend) issue(user models.User) models.AuthResponse {
	b.seq++
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(user.ID),
		ID:        strconv.Itoa(b.seq),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(b.AccessTTL)),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	refresh := fmt.Sprintf("refresh-%d", b.seq)

	b.access[access] = user.ID
	b.refresh[refresh] = user.ID
	return models.AuthResponse{User: user, AccessToken: access, RefreshToken: refresh}
}

func (b *Backend) currentUser(r *http.Request) (models.User, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return models.User{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.access[token]
	if !ok {
		return models.User{}, false
	}
	u, ok := b.users[id]
	return u, ok && u.IsActive
}

type handlerWithUser func(w http.ResponseWriter, r *http.Request, u models.User)

func (b *Backend) authed(h handlerWithUser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := b.currentUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h(w, r, u)
	}
}

func (b *Backend) admin(h handlerWithUser) http.HandlerFunc {
	return b.authed(func(w http.ResponseWriter, r *http.Request, u models.User) {
		if !u.IsAdmin {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		h(w, r, u)
	})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if secret, ok := b.secrets[creds.Username]; !ok || secret != creds.Password {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	for _, u := range b.users {
		if u.Username == creds.Username {
			writeJSON(w, http.StatusOK, b.issue(u))
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "invalid username or password")
}

func (b *Backend) refreshTokens(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.refresh[body.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	delete(b.refresh, body.RefreshToken)
	writeJSON(w, http.StatusOK, b.issue(b.users[id]))
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	delete(b.refresh, body.RefreshToken)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request, u models.User) {
	writeJSON(w, http.StatusOK, u)
}

func (b *Backend) moviesCopy() []models.Movie {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Movie(nil), b.movies...)
}

func (b *Backend) listMovies(w http.ResponseWriter, r *http.Request, _ models.User) {
	writeJSON(w, http.StatusOK, b.moviesCopy())
}

func (b *Backend) latestMovies(w http.ResponseWriter, r *http.Request, _ models.User) {
	movies := b.moviesCopy()
	sort.Slice(movies, func(i, j int) bool { return movies[i].AddedAt.After(movies[j].AddedAt) })
	writeJSON(w, http.StatusOK, movies)
}

func (b *Backend) nowPlaying(w http.ResponseWriter, r *http.Request, _ models.User) {
	playing := []models.Movie{}
	for _, m := range b.moviesCopy() {
		if m.InProgress() {
			playing = append(playing, m)
		}
	}
	writeJSON(w, http.StatusOK, playing)
}

func (b *Backend) getMovie(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	for _, m := range b.moviesCopy() {
		if m.ID == id {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeError(w, http.StatusNotFound, "movie not found")
}

func (b *Backend) playlist(w http.ResponseWriter, r *http.Request, _ models.User) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=2000000\nstream.m3u8\n")
}

func (b *Backend) getSettings(w http.ResponseWriter, r *http.Request, _ models.User) {
	writeJSON(w, http.StatusOK, b.Settings())
}

func (b *Backend) putSettings(w http.ResponseWriter, r *http.Request, _ models.User) {
	var s models.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	b.mu.Lock()
	b.settings = s
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request, _ models.User) {
	b.mu.Lock()
	users := make([]models.User, 0, len(b.users))
	for _, u := range b.users {
		users = append(users, u)
	}
	b.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	writeJSON(w, http.StatusOK, users)
}

func (b *Backend) getUser(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	if u, ok := b.User(id); ok {
		writeJSON(w, http.StatusOK, u)
		return
	}
	writeError(w, http.StatusNotFound, "user not found")
}

func (b *Backend) createUser(w http.ResponseWriter, r *http.Request, _ models.User) {
	var in models.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.secrets[in.Username]; taken {
		writeError(w, http.StatusBadRequest, "username already taken")
		return
	}
	b.seq++
	u := models.User{ID: b.seq, Name: in.Name, Email: in.Email, Username: in.Username, IsAdmin: in.IsAdmin, IsActive: in.IsActive}
	b.users[u.ID] = u
	b.secrets[u.Username] = in.Password
	writeJSON(w, http.StatusCreated, u)
}

func (b *Backend) putUser(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	var in models.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	secret := b.secrets[u.Username]
	delete(b.secrets, u.Username)
	if in.Password != "" {
		secret = in.Password
	}
	b.secrets[in.Username] = secret
	u.Name, u.Email, u.Username, u.IsAdmin, u.IsActive = in.Name, in.Email, in.Username, in.IsAdmin, in.IsActive
	b.users[id] = u
	writeJSON(w, http.StatusOK, u)
}
