// Package server exposes the daemon HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/gorilla/mux"
)

// PushEndpoint serves POST /push/{id}.
type PushEndpoint interface {
	ServePush(w http.ResponseWriter, req *http.Request, id string)
}

// Contexts serves the foreground WebSocket.
type Contexts interface {
	ServeWS(w http.ResponseWriter, req *http.Request)
}

// Clicks handles notification activation.
type Clicks interface {
	HandleNotificationClick(ctx context.Context, notificationID string) error
}

// Events reads the persisted event list.
type Events interface {
	Load(ctx context.Context) error
	Items() []domain.EventItem
}

// Dependencies wires handlers into the router.
type Dependencies struct {
	Push     PushEndpoint
	Contexts Contexts
	Clicks   Clicks
	Events   Events
	Logger   logger.Logger
}

// Server owns the router and its HTTP listener.
type Server struct {
	deps   Dependencies
	router *mux.Router
}

func New(deps Dependencies) (*Server, error) {
	switch {
	case deps.Push == nil:
		return nil, errors.New("server: push endpoint is required")
	case deps.Contexts == nil:
		return nil, errors.New("server: contexts hub is required")
	case deps.Clicks == nil:
		return nil, errors.New("server: click handler is required")
	case deps.Events == nil:
		return nil, errors.New("server: events are required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	s := &Server{deps: deps}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/push/{id}", s.push).Methods(http.MethodPost)
	r.HandleFunc("/contexts/ws", s.deps.Contexts.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}/click", s.click).Methods(http.MethodPost)
	r.HandleFunc("/", s.events).Methods(http.MethodGet)
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	s.deps.Push.ServePush(w, r, mux.Vars(r)["id"])
}

func (s *Server) click(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Clicks.HandleNotificationClick(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.deps.Logger.Warn("notification click failed", logger.Field{Key: "error", Value: err})
		http.Error(w, "could not open a foreground context", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Events.Load(r.Context()); err != nil {
		s.deps.Logger.Error("load events failed", logger.Field{Key: "error", Value: err})
		http.Error(w, "events unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.deps.Events.Items())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for WebSocket upgrades.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/contexts/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.deps.Logger.Debug("http request",
			logger.Field{Key: "method", Value: r.Method},
			logger.Field{Key: "path", Value: r.URL.Path},
			logger.Field{Key: "status", Value: rec.status},
			logger.Field{Key: "duration", Value: time.Since(start)},
		)
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("daemon listening", logger.Field{Key: "addr", Value: ln.Addr().String()})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
