package kalshi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

func TestSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets/FED-25DEC", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("kalshi-access-key"))
		_, _ = w.Write([]byte(`{"market":{
			"ticker":"FED-25DEC",
			"event_ticker":"FED",
			"title":"Fed cuts in December?",
			"rules_primary":"Resolves Yes if the Fed cuts.",
			"yes_bid":40,"yes_ask":44,
			"liquidity":250000,"volume_24h":1200,
			"close_time":"2025-12-10T19:00:00Z"
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", time.Second)
	snap, err := c.Snapshot(context.Background(), "https://kalshi.com/markets/fed/fed-25dec")
	require.NoError(t, err)

	require.Equal(t, "FED-25DEC", snap.ID)
	require.Equal(t, "Fed cuts in December?", snap.Title)
	require.Equal(t, "FED", snap.Category)
	require.Equal(t, "Resolves Yes if the Fed cuts.", snap.Rules)
	require.InDelta(t, 0.42, *snap.Prices.Yes, 1e-9)
	require.InDelta(t, 0.58, *snap.Prices.No, 1e-9)
	require.InDelta(t, 250000, *snap.Liquidity, 1e-9)
	require.InDelta(t, 1200, *snap.Volume24h, 1e-9)
	require.NotNil(t, snap.Deadline)
	require.Equal(t, domain.VenueKalshi, snap.Venue)
}

func TestSnapshotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"not_found","message":"market not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Snapshot(context.Background(), "https://kalshi.com/markets/nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSignedRequest(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key-2", r.Header.Get("KALSHI-ACCESS-KEY"))
		require.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		require.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-TIMESTAMP"))
		_, _ = w.Write([]byte(`{"market":{"ticker":"X","last_price":70}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-2", time.Second)
	require.NoError(t, c.SetRSAPrivateKey(pemBytes))

	m, err := c.GetMarket(context.Background(), "X")
	require.NoError(t, err)
	require.InDelta(t, 0.7, *m.YesProbability(), 1e-9)
	require.InDelta(t, 0.3, *m.NoProbability(), 1e-9)
}

func TestSetRSAPrivateKeyRejectsGarbage(t *testing.T) {
	c := NewClient("http://example.invalid", "", time.Second)
	require.Error(t, c.SetRSAPrivateKey([]byte("not pem")))
}

func TestTickerFromURL(t *testing.T) {
	ticker, err := TickerFromURL("https://kalshi.com/markets/kxbtc/kxbtc-25")
	require.NoError(t, err)
	require.Equal(t, "KXBTC-25", ticker)
}
