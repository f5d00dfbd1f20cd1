package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-pushrelay/internal/storage/memory"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/eventstore"
	"github.com/goliatone/go-pushrelay/pkg/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPush struct {
	id string
}

func (s *stubPush) ServePush(w http.ResponseWriter, _ *http.Request, id string) {
	s.id = id
	w.WriteHeader(http.StatusCreated)
}

type stubClicks struct {
	id  string
	err error
}

func (s *stubClicks) HandleNotificationClick(_ context.Context, id string) error {
	s.id = id
	return s.err
}

func newTestServer(t *testing.T) (*Server, *stubPush, *stubClicks, *eventstore.Store, *hub.Hub) {
	t.Helper()
	events, err := eventstore.New(eventstore.Dependencies{KV: memory.NewKVStore()})
	require.NoError(t, err)
	push := &stubPush{}
	clicks := &stubClicks{}
	h := hub.New()
	srv, err := New(Dependencies{Push: push, Contexts: h, Clicks: clicks, Events: events})
	require.NoError(t, err)
	return srv, push, clicks, events, h
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestPushRouteForwardsID(t *testing.T) {
	srv, push, _, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/push/abc-123", strings.NewReader("x")))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "abc-123", push.id)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/push/abc-123", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventsRouteReturnsPersistedList(t *testing.T) {
	srv, _, _, events, _ := newTestServer(t)
	ctx := context.Background()
	_, err := events.Append(ctx, "a")
	require.NoError(t, err)
	_, err = events.Append(ctx, "b")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var items []domain.EventItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Text)
	assert.Equal(t, "a", items[1].Text)
}

func TestEventsRouteEmptyIsArray(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestClickRoute(t *testing.T) {
	srv, _, clicks, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/n1/click", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "n1", clicks.id)

	clicks.err = errors.New("no launcher")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/n1/click", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebSocketRouteRegistersContext(t *testing.T) {
	srv, _, _, _, h := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	remote, err := hub.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/contexts/ws", nil)
	require.NoError(t, err)
	defer remote.Close()

	require.Eventually(t, func() bool { return h.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
