package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

type fakeVenue struct {
	snap  domain.MarketSnapshot
	err   error
	calls int
}

func (f *fakeVenue) Snapshot(_ context.Context, marketURL string) (domain.MarketSnapshot, error) {
	f.calls++
	if f.err != nil {
		return domain.MarketSnapshot{}, f.err
	}
	s := f.snap
	s.URL = marketURL
	return s, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDetectVenue(t *testing.T) {
	tests := []struct {
		url   string
		venue domain.Venue
		err   bool
	}{
		{"https://polymarket.com/event/x", domain.VenuePolymarket, false},
		{"https://www.Polymarket.com/event/x", domain.VenuePolymarket, false},
		{"https://kalshi.com/markets/abc", domain.VenueKalshi, false},
		{"https://example.com/market", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			v, err := DetectVenue(tt.url)
			if tt.err {
				require.ErrorIs(t, err, domain.ErrUnsupportedHost)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.venue, v)
		})
	}
}

func TestFetchDispatches(t *testing.T) {
	pm := &fakeVenue{snap: domain.MarketSnapshot{ID: "pm", Venue: domain.VenuePolymarket}}
	ks := &fakeVenue{snap: domain.MarketSnapshot{ID: "ks", Venue: domain.VenueKalshi}}
	r := NewRouter(pm, ks, false, testLogger())

	snap, err := r.Fetch(context.Background(), "https://kalshi.com/markets/abc")
	require.NoError(t, err)
	require.Equal(t, "ks", snap.ID)
	require.Equal(t, 0, pm.calls)
	require.Equal(t, 1, ks.calls)
}

func TestFetchUnsupportedHost(t *testing.T) {
	r := NewRouter(&fakeVenue{}, &fakeVenue{}, false, testLogger())
	_, err := r.Fetch(context.Background(), "https://example.com/x")

	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	require.ErrorIs(t, err, domain.ErrUnsupportedHost)
	require.Contains(t, err.Error(), "unsupported market host: example.com")
}

func TestFetchWrapsClientError(t *testing.T) {
	r := NewRouter(&fakeVenue{err: domain.ErrNotFound}, nil, false, testLogger())
	_, err := r.Fetch(context.Background(), "https://polymarket.com/event/x")

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchOffline(t *testing.T) {
	pm := &fakeVenue{}
	r := NewRouter(pm, nil, true, testLogger())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	snap, err := r.Fetch(context.Background(), "https://polymarket.com/event/x")
	require.NoError(t, err)
	require.Equal(t, 0, pm.calls)
	require.Equal(t, "offline-polymarket", snap.ID)
	require.Equal(t, "Offline Polymarket market", snap.Title)
	require.Equal(t, now.Add(7*24*time.Hour), *snap.Deadline)
	require.InDelta(t, 0.5, *snap.Prices.Yes, 1e-9)
}
