package views

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/query"
	"github.com/desertthunder/igloo/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState(t *testing.T) {
	t.Run("mutually exclusive statuses", func(t *testing.T) {
		states := []State[[]models.Movie]{
			Pending[[]models.Movie](),
			Failure[[]models.Movie](errors.New("boom")),
			Success([]models.Movie{{ID: 1}}),
		}
		for _, s := range states {
			n := 0
			for _, b := range []bool{s.IsPending(), s.IsError(), s.IsSuccess()} {
				if b {
					n++
				}
			}
			assert.Equal(t, 1, n, s.Status.String())
		}
	})

	t.Run("message uses normalized error text", func(t *testing.T) {
		s := Failure[int](&services.APIError{Kind: services.KindStatus, StatusCode: 404, Message: services.MsgNotFound})
		assert.Equal(t, services.MsgNotFound, s.Message())
		assert.Empty(t, Success(1).Message())
	})

	t.Run("empty list", func(t *testing.T) {
		assert.True(t, IsEmpty(Success([]models.Movie{})))
		assert.True(t, IsEmpty(Success[[]models.Movie](nil)))
		assert.False(t, IsEmpty(Success([]models.Movie{{ID: 1}})))
		assert.False(t, IsEmpty(Pending[[]models.Movie]()))
		assert.False(t, IsEmpty(Failure[[]models.Movie](errors.New("x"))))
	})

	t.Run("FromResult and FromAny", func(t *testing.T) {
		assert.True(t, FromResult(1, nil).IsSuccess())
		assert.True(t, FromResult(0, errors.New("x")).IsError())

		assert.Equal(t, 3, FromAny[int](3, nil).Data)
		assert.True(t, FromAny[int]("three", nil).IsPending())
		assert.True(t, FromAny[int](nil, errors.New("x")).IsError())
	})
}

func TestBanners(t *testing.T) {
	t.Run("expires after the configured timeout", func(t *testing.T) {
		b := NewBanners(3 * time.Second)
		now := time.Now()
		b.now = func() time.Time { return now }

		shown := b.Success("Settings saved")
		got, ok := b.Current()
		require.True(t, ok)
		assert.Equal(t, shown, got)
		assert.Equal(t, BannerSuccess, got.Kind)

		now = now.Add(2 * time.Second)
		_, ok = b.Current()
		assert.True(t, ok)

		now = now.Add(time.Second)
		_, ok = b.Current()
		assert.False(t, ok)
	})

	t.Run("default timeout", func(t *testing.T) {
		assert.Equal(t, DefaultBannerTimeout, NewBanners(0).Timeout())
	})

	t.Run("error banner text", func(t *testing.T) {
		b := NewBanners(time.Minute)
		banner := b.Error(&services.APIError{Kind: services.KindUnreachable, Message: services.MsgUnreachable})
		assert.Equal(t, BannerError, banner.Kind)
		assert.Equal(t, services.MsgUnreachable, banner.Text)
	})

	t.Run("dismiss only clears matching banner", func(t *testing.T) {
		b := NewBanners(time.Minute)
		first := b.Show(BannerInfo, "one")
		second := b.Show(BannerInfo, "two")

		b.Dismiss(first.ID)
		got, ok := b.Current()
		require.True(t, ok)
		assert.Equal(t, "two", got.Text)

		b.Dismiss(second.ID)
		_, ok = b.Current()
		assert.False(t, ok)
	})
}

func TestMutate(t *testing.T) {
	ctx := context.Background()

	prime := func(q *query.Client) {
		_, err := query.Fetch(ctx, q, query.Key{"settings"}, func(context.Context) (string, error) { return "old", nil })
		require.NoError(t, err)
	}

	t.Run("success invalidates", func(t *testing.T) {
		q := query.NewClient(query.Options{StaleTime: time.Minute}, nil)
		prime(q)

		out, err := Mutate(ctx, q, func(ctx context.Context, in string) (string, error) { return in, nil }, "new", query.Key{"settings"})
		require.NoError(t, err)
		assert.Equal(t, "new", out)
		assert.True(t, q.Snapshot(query.Key{"settings"}).Stale)
	})

	t.Run("server failure invalidates to resync", func(t *testing.T) {
		q := query.NewClient(query.Options{StaleTime: time.Minute}, nil)
		prime(q)

		_, err := Mutate(ctx, q, func(ctx context.Context, in string) (string, error) {
			return "", &services.APIError{Kind: services.KindStatus, StatusCode: 500, Message: services.MsgServerError}
		}, "new", query.Key{"settings"})
		require.Error(t, err)
		assert.True(t, q.Snapshot(query.Key{"settings"}).Stale)
	})

	t.Run("validation failure leaves cache alone", func(t *testing.T) {
		q := query.NewClient(query.Options{StaleTime: time.Minute}, nil)
		prime(q)

		_, err := Mutate(ctx, q, func(ctx context.Context, in models.Settings) (*models.Settings, error) {
			return nil, models.Validate(in)
		}, models.Settings{}, query.Key{"settings"})
		require.Error(t, err)
		assert.False(t, q.Snapshot(query.Key{"settings"}).Stale)
	})
}
