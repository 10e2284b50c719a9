package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	name   string
	err    error
	titles []string
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return c.err
}

func (c *captureSender) Name() string { return c.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{"tx_failed", " relay_failed "}, quietLogger())

	require.NoError(t, n.Notify(context.Background(), "tx_confirmed", "ok", ""))
	require.NoError(t, n.Notify(context.Background(), "relay_failed", "stale", ""))
	require.NoError(t, n.NotifyAll(context.Background(), "boot", ""))

	assert.Equal(t, []string{"stale", "boot"}, s.titles)
}

func TestNotifyEmptyFilterForwardsAll(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, quietLogger())
	require.NoError(t, n.Notify(context.Background(), "anything", "t", ""))
	assert.Len(t, s.titles, 1)
}

func TestNotifyCooldown(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, quietLogger(),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "relay_failed", "stale", ""))
	require.NoError(t, n.Notify(ctx, "relay_failed", "stale", ""))
	require.NoError(t, n.Notify(ctx, "relay_failed", "other", ""))
	now = now.Add(61 * time.Second)
	require.NoError(t, n.Notify(ctx, "relay_failed", "stale", ""))

	assert.Equal(t, []string{"stale", "other", "stale"}, s.titles)
}

func TestDispatchContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	bad := &captureSender{name: "bad", err: boom}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.Notify(context.Background(), "tx_failed", "t", "m")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.titles, 1)
	assert.True(t, n.Enabled())
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithBaseURL(srv.URL + "/")
	require.NoError(t, s.Send(context.Background(), "Borrow failed", "reverted"))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Borrow failed*\nreverted", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}

func TestDiscordSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 429: slow down")
}

func TestDiscordSenderTruncates(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "t", strings.Repeat("x", 3000)))
	assert.Len(t, []rune(got["content"]), discordLimit)
}
