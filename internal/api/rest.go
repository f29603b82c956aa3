// Package api exposes the daemon's topic bus and collaborators over HTTP:
// a REST GET/PUT surface over every registered topic, a WebSocket push bus
// for subscriptions, an SSE journal stream, and a PNG display-content pull
// endpoint, routed with gorilla/mux and chained with justinas/alice ahead of
// each handler.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/linux-automation/tacd/internal/broker"
	"github.com/linux-automation/tacd/internal/errkind"
	"github.com/linux-automation/tacd/internal/topic"
)

// Server bundles the HTTP surface's dependencies.
type Server struct {
	br        *broker.Broker
	setupMode *topic.Topic[bool]
	journal   JournalSource
	display   *topic.Topic[[]byte]
	log       zerolog.Logger

	router *mux.Router
}

// JournalSource is the subset of internal/journal.Tailer the SSE endpoint
// needs, declared here so api does not import journal's exec-wrapping
// concerns directly.
type JournalSource interface {
	Stream(ctx context.Context, historyLen int, unit string, onEntry func(json.RawMessage)) error
}

// New builds a Server and registers all routes.
func New(br *broker.Broker, setupMode *topic.Topic[bool], journal JournalSource, display *topic.Topic[[]byte], log zerolog.Logger) *Server {
	s := &Server{br: br, setupMode: setupMode, journal: journal, display: display, log: log.With().Str("component", "api").Logger()}
	s.router = mux.NewRouter()
	s.routes()
	return s
}

// Handler returns the fully wrapped net/http handler, ready to pass to
// http.Server.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost},
	})
	chain := alice.New(s.recoverMiddleware, s.logMiddleware, c.Handler)
	return chain.Then(s.router)
}

func (s *Server) routes() {
	// Dedicated routes must be registered ahead of the catch-all below:
	// gorilla/mux matches in registration order, and the catch-all
	// pattern matches all three of these paths too.
	s.router.HandleFunc("/v1/mqtt", s.handleWebSocket)
	s.router.HandleFunc("/v1/tac/journal", s.handleJournalSSE).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/tac/display/content", s.handleDisplayContent).Methods(http.MethodGet)

	s.router.HandleFunc("/v1/{path:.*}", s.handleGet).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/{path:.*}", s.handlePut).Methods(http.MethodPut)
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("recovered from handler panic")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path := "/v1/" + mux.Vars(r)["path"]
	data, err := s.br.GetExternal(path)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	path := "/v1/" + mux.Vars(r)["path"]
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeErr(w, errkind.Wrap(errkind.BadRequest, "read body", err))
		return
	}
	setup, _, _ := s.setupMode.TryGet()
	if err := s.br.SetExternal(path, body, setup); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisplayContent(w http.ResponseWriter, r *http.Request) {
	png, _, ok := s.display.TryGet()
	if !ok {
		http.Error(w, "no display content yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func writeErr(w http.ResponseWriter, err error) {
	kind := errkind.Of(err)
	w.WriteHeader(errkind.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
