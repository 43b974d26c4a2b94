package views

import (
	"sync"
	"time"

	"github.com/desertthunder/igloo/internal/services"
)

// DefaultBannerTimeout applies when no timeout is configured.
const DefaultBannerTimeout = 5 * time.Second

// BannerKind selects a banner's styling.
type BannerKind int

const (
	BannerInfo BannerKind = iota
	BannerSuccess
	BannerError
)

func (k BannerKind) String() string {
	switch k {
	case BannerSuccess:
		return "success"
	case BannerError:
		return "error"
	default:
		return "info"
	}
}

// Banner is a transient message.
type Banner struct {
	ID        int
	Kind      BannerKind
	Text      string
	ExpiresAt time.Time
}

// Banners holds the current banner. Every banner expires after the same timeout.
type Banners struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	current *Banner
	seq     int
}

// NewBanners creates a banner holder. A timeout of zero or less uses [DefaultBannerTimeout].
func NewBanners(timeout time.Duration) *Banners {
	if timeout <= 0 {
		timeout = DefaultBannerTimeout
	}
	return &Banners{timeout: timeout, now: time.Now}
}

// Timeout returns how long banners stay visible.
func (b *Banners) Timeout() time.Duration { return b.timeout }

// Show replaces the current banner.
func (b *Banners) Show(kind BannerKind, text string) Banner {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	banner := Banner{ID: b.seq, Kind: kind, Text: text, ExpiresAt: b.now().Add(b.timeout)}
	b.current = &banner
	return banner
}

// Error shows the normalized message for err.
func (b *Banners) Error(err error) Banner {
	return b.Show(BannerError, services.ErrorMessage(err))
}

// Success shows a confirmation.
func (b *Banners) Success(text string) Banner {
	return b.Show(BannerSuccess, text)
}

// Current returns the banner unless it has expired.
func (b *Banners) Current() (Banner, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return Banner{}, false
	}
	if !b.now().Before(b.current.ExpiresAt) {
		b.current = nil
		return Banner{}, false
	}
	return *b.current, true
}

// Dismiss clears the banner with the given id, leaving newer banners in place.
func (b *Banners) Dismiss(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil && b.current.ID == id {
		b.current = nil
	}
}
