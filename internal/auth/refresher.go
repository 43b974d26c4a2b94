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
)

// RefreshKey is the query key refresh requests run under.
var RefreshKey = query.Key{"auth", "refresh"}

// DefaultRefreshInterval is used when no interval is configured.
const DefaultRefreshInterval = 4 * time.Minute

// State is the refresh loop state.
type State int

const (
	StateIdle State = iota
	StateRefreshing
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Exchanger trades a refresh token for a new token pair.
type Exchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
}

// Refresher keeps the session alive by exchanging the refresh token on an interval.
type Refresher struct {
	exchanger Exchanger
	store     *Store
	queries   *query.Client
	interval  time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	state   State
	lastErr error
	subs    map[chan State]struct{}
}

// NewRefresher creates a refresher in the Idle state.
func NewRefresher(exchanger Exchanger, store *Store, queries *query.Client, interval time.Duration, logger *log.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Refresher{
		exchanger: exchanger,
		store:     store,
		queries:   queries,
		interval:  interval,
		logger:    logger,
		subs:      make(map[chan State]struct{}),
	}
}

// State returns the current state.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error of the last failed refresh.
func (r *Refresher) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Boot performs the first refresh synchronously so the session is settled before any
// navigation. With no stored refresh token it returns Idle without a request.
func (r *Refresher) Boot(ctx context.Context) State {
	return r.Tick(ctx)
}

// Run refreshes every interval until ctx is done. It does not refresh immediately; call Boot first.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one refresh.
func (r *Refresher) Tick(ctx context.Context) State {
	token, err := r.store.RefreshToken(ctx)
	if err != nil {
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			r.logger.Error("failed to load refresh token", "err", err)
		}
		return r.transition(StateIdle, nil)
	}

	session := r.store.Session()
	r.transition(StateRefreshing, nil)

	resp, err := query.Fetch(ctx, r.queries, RefreshKey, func(ctx context.Context) (*models.AuthResponse, error) {
		return r.exchanger.Refresh(ctx, token)
	}, query.WithRetry(0), query.WithStaleTime(0))

	switch {
	case errors.Is(err, query.ErrDiscarded), errors.Is(err, context.Canceled):
		r.logger.Debug("refresh abandoned", "err", err)
		return r.settle()
	case err != nil:
		if expErr := r.store.ExpireSession(ctx, session, err); expErr != nil {
			if errors.Is(expErr, ErrSessionChanged) {
				r.logger.Debug("refresh failed for a replaced session", "err", err)
				return r.settle()
			}
			r.logger.Error("failed to clear session", "err", expErr)
		}
		return r.transition(StateUnauthenticated, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err))
	}

	r.queries.Remove(RefreshKey)
	if err := r.store.Refreshed(ctx, session, resp); err != nil {
		if errors.Is(err, ErrSessionChanged) {
			return r.settle()
		}
		r.logger.Error("refreshed session was not persisted", "err", err)
	}
	r.logger.Debug("session refreshed", "user", resp.User.Username)
	return r.transition(StateAuthenticated, nil)
}

// settle derives the state from the session after an abandoned refresh.
func (r *Refresher) settle() State {
	if r.store.Snapshot().IsAuthenticated {
		return r.transition(StateAuthenticated, nil)
	}
	return r.transition(StateUnauthenticated, nil)
}

func (r *Refresher) transition(to State, err error) State {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.lastErr = err
	r.mu.Unlock()

	if from != to {
		r.logger.Debug("refresh state", "from", from, "to", to)
		r.publish(to)
	}
	return to
}

// Subscribe returns a channel receiving state changes and a function that unsubscribes.
func (r *Refresher) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
		})
	}
}

func (r *Refresher) publish(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}
