package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcal/internal/config"
	"agentcal/internal/feed"
	"agentcal/internal/mapper"
	"agentcal/internal/model"
)

type recordingNotifier struct {
	got []mapper.Notification
	err error
}

func (n *recordingNotifier) Handle(_ context.Context, m mapper.Notification) error {
	n.got = append(n.got, m)
	return n.err
}

func newTestServer(t *testing.T, cfg *config.Config, notifier Notifier) (*Server, *feed.Router) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := feed.NewRouter(feed.Options{
		Dir:          t.TempDir(),
		CalendarName: "test",
		Combined:     true,
		PerSource:    true,
	})
	return NewServer(cfg, r, notifier), r
}

func TestHealthWithoutAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Token = "secret"
	s, _ := newTestServer(t, cfg, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAuthRejectsAnonymous(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	cfg.Token = "tok"
	s, _ := newTestServer(t, cfg, nil)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feeds", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
}

func TestAuthAcceptsEachCredentialKind(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	cfg.Token = "tok"
	s, _ := newTestServer(t, cfg, nil)
	h := s.Handler()

	basic := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	basic.SetBasicAuth("u", "p")

	bearer := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	bearer.Header.Set("Authorization", "Bearer tok")

	query := httptest.NewRequest(http.MethodGet, "/api/feeds?token=tok", nil)

	for _, req := range []*http.Request{basic, bearer, query} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	wrong := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	wrong.SetBasicAuth("u", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, wrong)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFeedsListing(t *testing.T) {
	s, r := newTestServer(t, nil, nil)
	_, err := r.AddEvent(model.Event{Title: "x", Start: time.Now().UTC(), Agent: "dev"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feeds", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body struct {
		Feeds []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"feeds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Feeds, 2)
	assert.Equal(t, "combined", body.Feeds[0].Name)
	assert.Equal(t, "/feeds/combined.ics", body.Feeds[0].URL)
	assert.Equal(t, "dev", body.Feeds[1].Name)
}

func TestFeedDocument(t *testing.T) {
	s, r := newTestServer(t, nil, nil)
	_, err := r.AddEvent(model.Event{UID: "e1", Title: "Tweet", Start: time.Now().UTC(), Agent: "dev"})
	require.NoError(t, err)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feeds/dev.ics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "UID:e1@agentcal")

	head := httptest.NewRecorder()
	h.ServeHTTP(head, httptest.NewRequest(http.MethodHead, "/feeds/dev.ics", nil))
	assert.Equal(t, http.StatusOK, head.Code)
	assert.Empty(t, head.Body.String())
}

func TestFeedDocumentNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	h := s.Handler()

	for _, path := range []string{"/feeds/nope.ics", "/feeds/dev", "/feeds/a/b.ics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestNotifyIngest(t *testing.T) {
	notifier := &recordingNotifier{}
	s, _ := newTestServer(t, nil, notifier)

	body := `{"kind":"schedule","uid":"e1","title":"Tweet","starts_at":"2025-02-25T12:00:00Z","agent":"dev"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, mapper.KindSchedule, notifier.got[0].Kind)
	assert.Equal(t, "e1", notifier.got[0].UID)
	assert.Equal(t, "dev", notifier.got[0].Agent)
}

func TestNotifyRejectsBadInput(t *testing.T) {
	notifier := &recordingNotifier{}
	s, _ := newTestServer(t, nil, notifier)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notify", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNotifyWithoutNotifier(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader(`{"kind":"schedule"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
