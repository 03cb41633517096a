// Package web serves the rendered feed documents and a small JSON
// directory listing. Authentication is rejected here, before the feed
// router is ever touched.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"agentcal/internal/config"
	"agentcal/internal/feed"
	appLog "agentcal/internal/log"
	"agentcal/internal/mapper"
)

// Notifier ingests one upstream notification; the bus handler implements
// it. Optional: without one the ingest endpoint answers 404.
type Notifier interface {
	Handle(ctx context.Context, n mapper.Notification) error
}

// Server provides the feed HTTP surface.
type Server struct {
	cfg      *config.Config
	router   *feed.Router
	notifier Notifier
	mux      *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, router *feed.Router, notifier Notifier) *Server {
	s := &Server{
		cfg:      cfg,
		router:   router,
		notifier: notifier,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.authEnabled() {
		appLog.Info("HTTP auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.authMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/feeds", s.handleFeeds)
	s.mux.HandleFunc("/api/notify", s.handleNotify)
	s.mux.HandleFunc("/feeds/", s.handleFeedDocument)
}

func (s *Server) authEnabled() bool {
	if s.cfg == nil {
		return false
	}
	if s.cfg.Token != "" {
		return true
	}
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// authMiddleware guards all handlers except /health. A request passes with
// valid basic auth credentials, a bearer token, or a token query parameter
// (calendar clients often cannot send headers on subscribe URLs).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health is always exposed without auth.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.basicAuthOK(r) || s.tokenOK(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="agentcal", charset="UTF-8"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) basicAuthOK(r *http.Request) bool {
	ba := s.cfg.BasicAuth
	if ba == nil || ba.Username == "" || ba.Password == "" {
		return false
	}
	u, p, ok := r.BasicAuth()
	return ok && secureCompare(u, ba.Username) && secureCompare(p, ba.Password)
}

func (s *Server) tokenOK(r *http.Request) bool {
	if s.cfg.Token == "" {
		return false
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if secureCompare(strings.TrimPrefix(h, "Bearer "), s.cfg.Token) {
			return true
		}
	}
	return secureCompare(r.URL.Query().Get("token"), s.cfg.Token)
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// feedEntry is one row in the JSON directory listing.
type feedEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	names := s.router.Names()
	entries := make([]feedEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, feedEntry{Name: name, URL: "/feeds/" + name + ".ics"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"feeds": entries})
}

// handleFeedDocument serves GET /feeds/<name>.ics as a static calendar
// document.
func (s *Server) handleFeedDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/feeds/")
	if !strings.HasSuffix(name, ".ics") || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	name = strings.TrimSuffix(name, ".ics")

	doc, ok := s.router.Render(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(doc)
	}
}

// handleNotify ingests one notification as JSON. This is the thin adapter
// for hosts that deliver activity over HTTP instead of an in-process bus.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var n mapper.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "malformed notification body")
		return
	}
	if err := s.notifier.Handle(r.Context(), n); err != nil {
		appLog.Error("notification handling failed", err, "kind", string(n.Kind))
		writeError(w, http.StatusInternalServerError, "notification handling failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("json response encode failed", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
