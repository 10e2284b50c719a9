package pyth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parzival1821/CredBook/internal/domain"
)

func TestLatestUpdates(t *testing.T) {
	payload := []byte{0x50, 0x4e, 0x41, 0x55, 0x01}
	var gotIDs []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/latest_vaas", r.URL.Path)
		gotIDs = r.URL.Query()["ids[]"]
		_ = json.NewEncoder(w).Encode([]string{base64.StdEncoding.EncodeToString(payload)})
	}))
	defer srv.Close()

	client := NewHermesClient(srv.URL+"/", 0)
	updates, err := client.LatestUpdates(context.Background(), ETHUSDFeedID)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, payload, updates[0])
	assert.Equal(t, []string{ETHUSDFeedID}, gotIDs)
}

func TestLatestUpdatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHermesClient(srv.URL, 60).LatestUpdates(context.Background(), ETHUSDFeedID)
	require.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}

func TestLatestUpdatesRejectsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewHermesClient(srv.URL, 0).LatestUpdates(context.Background(), ETHUSDFeedID)
	require.Error(t, err)

	_, err = NewHermesClient(srv.URL, 0).LatestUpdates(context.Background())
	require.Error(t, err)
}

func TestLatestUpdatesBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown price feed", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHermesClient(srv.URL, 0).LatestUpdates(context.Background(), "0xdead")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNetworkUnavailable)
	assert.Contains(t, err.Error(), "404")
}
