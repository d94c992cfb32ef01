// Package server exposes the calendar over HTTP and pushes live views to
// websocket sessions.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/services"
	"github.com/jakechorley/shift-calendar/pkg/db"
	"github.com/jakechorley/shift-calendar/pkg/metrics"
)

// AccessKeyHeader carries the shared workspace key
const AccessKeyHeader = "X-Workspace-Key"

// Options configures a Server
type Options struct {
	// AccessKey, when set, must accompany every request in AccessKeyHeader or ?key=
	AccessKey      string
	AllowedOrigins []string
	HistoryLimit   int
	VisibleDays    string
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
}

// Server serves the JSON API, the live view socket and metrics
type Server struct {
	store    db.Database
	engine   *services.Engine
	logger   *zap.Logger
	opts     Options
	upgrader websocket.Upgrader

	// mu guards closed so no session is added once Close is waiting
	mu       sync.Mutex
	closed   bool
	closing  chan struct{}
	sessions sync.WaitGroup
}

// New creates a server backed by store. Transitions go through engine.
func New(store db.Database, engine *services.Engine, logger *zap.Logger, opts Options) *Server {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = services.MaxHistoryLimit
	}
	if opts.VisibleDays == "" {
		opts.VisibleDays = "FREQ=DAILY"
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		store:   store,
		engine:  engine,
		logger:  logger,
		opts:    opts,
		closing: make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(opts.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}
	return s
}

// Router builds the route table. API routes are gzipped; the socket is not,
// since the upgrade needs the raw connection.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requireAccessKey)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(gziphandler.GzipHandler)
	api.HandleFunc("/calendar", s.handleCalendar).Methods(http.MethodGet)
	api.HandleFunc("/members", s.handleListMembers).Methods(http.MethodGet)
	api.HandleFunc("/members", s.handleAddMember).Methods(http.MethodPost)
	api.HandleFunc("/members/{id}", s.handleUpdateMember).Methods(http.MethodPut)
	api.HandleFunc("/members/{id}", s.handleRemoveMember).Methods(http.MethodDelete)
	api.HandleFunc("/days/{date}/assign", s.handleAssign).Methods(http.MethodPost)
	api.HandleFunc("/days/{date}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{date}", s.handleDateHistory).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.handleLive).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler(s.opts.Gatherer)).Methods(http.MethodGet)

	r.NotFoundHandler = s.requireAccessKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Code: services.KindNotFound, Message: "no such route"})
	}))
	return r
}

// Handler is the router behind CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", AccessKeyHeader},
	})
	return c.Handler(s.Router())
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down and
// waits for live sessions to end
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// Close ends every live session and waits for them
func (s *Server) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.closing)
	}
	s.mu.Unlock()
	s.sessions.Wait()
}

// openSession registers a live session, or reports false once the server
// is closing
func (s *Server) openSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Server) requireAccessKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AccessKey == "" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(AccessKeyHeader)
		if key == "" {
			key = r.URL.Query().Get("key")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.AccessKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "missing or wrong workspace key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, "*") || slices.Contains(s.opts.AllowedOrigins, origin)
}
