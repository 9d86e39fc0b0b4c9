// Package fakeapi is an in-memory stand-in for the Tulip tables API.
//
// It serves the subset of /api/v3 the client uses (tables, records, table
// links and attribute reports) with the same status codes, so the client
// can be exercised end to end in tests and locally without an instance.
package fakeapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tulipapi/internal/fakeapi/middleware"
)

// Options configures a Server.
type Options struct {
	// Tokens are the accepted basic auth tokens; none disables auth.
	Tokens []string

	// RequestTimeout bounds each request (default: 30s).
	RequestTimeout time.Duration
}

// Server is the HTTP front of a Store.
type Server struct {
	store  *Store
	router *chi.Mux
	server *http.Server
}

// NewServer wires the routes for store.
func NewServer(store *Store, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		store:  store,
		router: chi.NewRouter(),
	}
	s.setupMiddleware(opts)
	s.setupRoutes(opts)
	return s
}

func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(opts.RequestTimeout))
}

func (s *Server) setupRoutes(opts Options) {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/v3", func(r chi.Router) {
		r.Use(middleware.BasicToken(opts.Tokens...))

		r.Get("/tables/{tableID}", s.handleGetTable)
		r.Put("/tables/{tableID}", s.handleUpdateTable)

		r.Get("/tables/{tableID}/records", s.handleListRecords)
		r.Post("/tables/{tableID}/records", s.handleCreateRecord)
		r.Get("/tables/{tableID}/records/{recordID}", s.handleGetRecord)
		r.Put("/tables/{tableID}/records/{recordID}", s.handleUpdateRecord)
		r.Delete("/tables/{tableID}/records/{recordID}", s.handleDeleteRecord)
		r.Patch("/tables/{tableID}/records/{recordID}/increment", s.handleIncrement)

		r.Get("/tableLinks/{linkID}", s.handleGetLink)
		r.Put("/tableLinks/{linkID}/link", s.handleLink(true))
		r.Put("/tableLinks/{linkID}/unlink", s.handleLink(false))

		r.Post("/attributes/report", s.handleAttributesReport)
	})
}

// Handler returns the router, for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the server's state.
func (s *Server) Store() *Store {
	return s.store
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("fake api listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
