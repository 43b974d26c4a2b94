package router

import (
	"context"
	"fmt"
	"net/url"

	"github.com/desertthunder/igloo/internal/models"
)

// LoginPath is where unauthenticated navigations are sent.
const LoginPath = "/login"

// Redirect aborts a navigation in favor of another location.
type Redirect struct {
	To string
	// Cause is why the navigation was redirected, if it failed.
	Cause error
}

func (r *Redirect) Error() string {
	if r.Cause != nil {
		return fmt.Sprintf("redirect to %s: %v", r.To, r.Cause)
	}
	return "redirect to " + r.To
}

func (r *Redirect) Unwrap() error { return r.Cause }

// LoginRedirect builds the redirect to the login route that returns to from after login.
func LoginRedirect(from string, cause error) *Redirect {
	to := LoginPath
	if from != "" && models.IsLocalPath(from) {
		to += "?" + url.Values{"redirect": {from}}.Encode()
	}
	return &Redirect{To: to, Cause: cause}
}

// ConfirmFunc asks the server who the current user is.
type ConfirmFunc func(ctx context.Context) (*models.User, error)

// RequireAuth confirms the session with a server round trip before the subtree loads.
// On failure it redirects to the login route with the requested location preserved.
// On success the user is placed on the match for the rest of the subtree.
func RequireAuth(confirm ConfirmFunc) BeforeLoadFunc {
	return func(ctx context.Context, m *Match) error {
		user, err := confirm(ctx)
		if err != nil || user == nil {
			return LoginRedirect(m.Location.Href(), err)
		}
		m.User = user
		return nil
	}
}

// RequireAdmin sends non-administrators home. It must run below [RequireAuth].
func RequireAdmin() BeforeLoadFunc {
	return func(ctx context.Context, m *Match) error {
		if m.User == nil {
			return LoginRedirect(m.Location.Href(), nil)
		}
		if !m.User.IsAdmin {
			return &Redirect{To: "/"}
		}
		return nil
	}
}

// LoginSearch parses the login route's query, dropping a redirect that is not a local path.
func LoginSearch(search url.Values) (any, error) {
	s := models.LoginSearch{Redirect: search.Get("redirect")}
	if err := models.Validate(s); err != nil {
		s.Redirect = ""
	}
	return s, nil
}

// AfterLogin returns where to go once logged in, given the login route's match.
func AfterLogin(m *Match) string {
	if m != nil {
		if s, ok := m.Search.(models.LoginSearch); ok && s.Redirect != "" {
			return s.Redirect
		}
	}
	return "/"
}
