package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/query"
	"github.com/desertthunder/igloo/internal/shared"
	"golang.org/x/oauth2"
)

// AuthKey is the query key for "who am I".
var AuthKey = query.Key{"auth"}

// ErrSessionChanged is returned by [Store.Refreshed] when the session was replaced while the refresh was in flight.
var ErrSessionChanged = errors.New("session changed during refresh")

// Snapshot is a read-only view of the session.
type Snapshot struct {
	User            *models.User
	IsAuthenticated bool
	// ExpiresAt is the access token expiry, zero when unknown.
	ExpiresAt time.Time
}

// Store is the single owner of session state.
type Store struct {
	mu      sync.RWMutex
	user    *models.User
	token   *oauth2.Token
	session uint64

	tokens  TokenStore
	queries *query.Client
	logger  *log.Logger

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

// NewStore creates an empty, unauthenticated session.
func NewStore(tokens TokenStore, queries *query.Client, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Store{
		tokens:  tokens,
		queries: queries,
		logger:  logger,
		subs:    make(map[chan Snapshot]struct{}),
	}
}

// Login starts a session from a login response. Cached query data from any previous
// session is dropped.
//
// The session is set in memory even if persisting the refresh token fails; the error is
// returned so the caller can warn that the session will not survive a restart.
func (s *Store) Login(ctx context.Context, resp *models.AuthResponse) error {
	user := resp.User

	s.mu.Lock()
	s.user = &user
	s.token = newAccessToken(resp.AccessToken)
	s.session++
	s.mu.Unlock()

	s.queries.Clear()
	s.publish()
	s.logger.Info("logged in", "user", resp.User.Username)

	if err := s.tokens.Save(ctx, resp.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return nil
}

// Session returns a counter that changes on every login and logout.
func (s *Store) Session() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Refreshed replaces tokens and user after a successful refresh started during session.
func (s *Store) Refreshed(ctx context.Context, session uint64, resp *models.AuthResponse) error {
	user := resp.User

	s.mu.Lock()
	if s.session != session {
		s.mu.Unlock()
		return ErrSessionChanged
	}
	s.user = &user
	s.token = newAccessToken(resp.AccessToken)
	s.mu.Unlock()

	s.publish()
	if err := s.tokens.Save(ctx, resp.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return nil
}

// Confirmed replaces the user with a fresh server snapshot, if a session is active.
func (s *Store) Confirmed(user models.User) {
	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return
	}
	s.user = &user
	s.mu.Unlock()

	s.publish()
}

// Logout clears the session, deletes the refresh token and drops all cached query data.
func (s *Store) Logout(ctx context.Context) error {
	s.clear()
	s.logger.Info("logged out")
	return s.deleteToken(ctx)
}

// Expire clears the session after the server rejected it. It behaves like [Store.Logout].
func (s *Store) Expire(ctx context.Context, reason error) error {
	s.clear()
	s.logger.Warn("session expired", "err", reason)
	return s.deleteToken(ctx)
}

// ExpireSession is [Store.Expire] for a refresh that failed during session. It returns
// [ErrSessionChanged] and leaves the current session alone when a login or logout
// happened since.
func (s *Store) ExpireSession(ctx context.Context, session uint64, reason error) error {
	s.mu.Lock()
	if s.session != session {
		s.mu.Unlock()
		return ErrSessionChanged
	}
	s.reset()
	s.mu.Unlock()

	s.queries.Clear()
	s.publish()
	s.logger.Warn("session expired", "err", reason)
	return s.deleteToken(ctx)
}

func (s *Store) clear() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()

	s.queries.Clear()
	s.publish()
}

// reset must be called with s.mu held.
func (s *Store) reset() {
	s.user = nil
	s.token = nil
	s.session++
}

func (s *Store) deleteToken(ctx context.Context) error {
	if err := s.tokens.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// RefreshToken returns the persisted refresh token.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.tokens.Load(ctx)
}

// Snapshot returns the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) snapshot() Snapshot {
	snap := Snapshot{IsAuthenticated: s.token != nil}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.token != nil {
		snap.ExpiresAt = s.token.Expiry
	}
	return snap
}

// Token implements [oauth2.TokenSource] over the in-memory access token.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, shared.ErrNotAuthenticated
	}
	tok := *s.token
	return &tok, nil
}

// Subscribe returns a channel receiving the latest snapshot after each change, and a
// function that unsubscribes. Slow readers miss intermediate snapshots, never the latest.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish() {
	snap := s.Snapshot()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

var _ oauth2.TokenSource = (*Store)(nil)
