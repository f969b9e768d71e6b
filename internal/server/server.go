// Package server serves chart specifications from a fixture directory with the
// same routes as the dashboard backend, plus an editor websocket that
// acknowledges every payload it receives.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rshade/statdash/internal/api"
	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/handshake"
)

// DefaultVersion is reported by /api/version.
const DefaultVersion = "1.0.0"

// EditorPath is the websocket route of the fixture editor.
const EditorPath = "/editor"

const shutdownTimeout = 5 * time.Second

// Server is the fixture API server.
type Server struct {
	dir      string
	cat      *catalog.Catalog
	version  string
	log      zerolog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	mu         sync.Mutex
	lastEditor *handshake.EditorPayload
	editorSeen int
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported by /api/version. An empty version
// makes the route answer 404.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New returns a server for the views of cat backed by dir.
func New(dir string, cat *catalog.Catalog, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		dir:     dir,
		cat:     cat,
		version: DefaultVersion,
		log:     log,
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.Path(api.VersionPath).Methods(http.MethodGet).HandlerFunc(s.handleVersion)
	s.router.Path(EditorPath).Methods(http.MethodGet).HandlerFunc(s.handleEditor)

	for _, v := range s.cat.Views() {
		s.router.Path(v.Endpoint).Methods(http.MethodGet).HandlerFunc(s.handleView(v))
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Str("dir", s.dir).Msg("fixture server listening")
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", ln.Addr(), err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

// LastEditorPayload returns the most recent payload received on the editor
// websocket and the number of payloads seen.
func (s *Server) LastEditorPayload() (handshake.EditorPayload, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastEditor == nil {
		return handshake.EditorPayload{}, s.editorSeen, false
	}
	return *s.lastEditor, s.editorSeen, true
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	if s.version == "" {
		writeError(w, http.StatusNotFound, "version not available")
		return
	}
	writeJSON(w, http.StatusOK, api.VersionInfo{Version: s.version})
}

func (s *Server) handleView(v catalog.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		query := r.URL.Query()

		values := make([]string, 0, len(v.Controls))
		for _, name := range v.Controls {
			ctl, _ := s.cat.Control(name)
			val, ok := vars[name]
			if !ok {
				val = query.Get(ctl.QueryKey())
			}
			if val == "" {
				val = ctl.Default
			}
			if !safeSegment(val) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid value for %s", ctl.QueryKey()))
				return
			}
			values = append(values, val)
		}

		path, err := s.lookup(v, values)
		if err != nil {
			s.log.Debug().Err(err).Str("view", v.Name).Strs("values", values).Msg("fixture not found")
			writeError(w, http.StatusNotFound, fmt.Sprintf("no chart for %s", strings.Join(values, ", ")))
			return
		}

		data, err := os.ReadFile(path)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "reading fixture")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// lookup returns <dir>/<endpoint>/<v1>_<v2>.json or, failing that,
// <dir>/<endpoint>.json. Placeholders are dropped from the endpoint.
func (s *Server) lookup(v catalog.View, values []string) (string, error) {
	base := filepath.Join(s.dir, filepath.FromSlash(FixtureKey(v.Endpoint)))
	candidates := []string{base + ".json"}
	if len(values) > 0 {
		candidates = append([]string{filepath.Join(base, strings.Join(values, "_")+".json")}, candidates...)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("no fixture among %v: %w", candidates, os.ErrNotExist)
}

// FixtureKey returns the fixture path of an endpoint, relative to the fixture
// directory and without extension.
func FixtureKey(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	kept := parts[:0]
	for _, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}

func safeSegment(v string) bool {
	return v != "." && v != ".." && !strings.ContainsAny(v, `/\`) && !strings.Contains(v, "\x00")
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("editor upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	for {
		var payload handshake.EditorPayload
		if err := conn.ReadJSON(&payload); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("editor connection ended")
			}
			return
		}

		s.mu.Lock()
		s.lastEditor = &payload
		s.editorSeen++
		s.mu.Unlock()

		s.log.Info().Str("mode", payload.Mode).Int("bytes", len(payload.Spec)).Msg("editor received chart")
		if err := conn.WriteJSON(map[string]string{"status": "ok"}); err != nil {
			s.log.Debug().Err(err).Msg("editor ack failed")
			return
		}
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Str("trace_id", r.Header.Get("X-Trace-Id")).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
