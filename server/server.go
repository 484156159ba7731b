package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	"github.com/noeguerin/bistro-concierge/agent/orchestrator"
	"github.com/noeguerin/bistro-concierge/restaurant/order"
	"github.com/noeguerin/bistro-concierge/restaurant/reservation"
)

type Config struct {
	Addr           string        `envconfig:"ADDR" split_words:"true" default:":8080"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" split_words:"true" default:"*"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"15s"`
	// Must outlast a full handler loop: 6 iterations at the 30s
	// reasoning timeout, plus tool time.
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"210s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
}

// Server exposes the concierge over HTTP: the conversation endpoint the
// telephony gateway calls, and a small back-office surface for staff.
type Server struct {
	orch *orchestrator.Orchestrator
	res  *reservation.Manager
	ord  *order.Manager
	cfg  Config
}

func New(orch *orchestrator.Orchestrator, res *reservation.Manager, ord *order.Manager, cfg Config) *Server {
	return &Server{orch: orch, res: res, ord: ord, cfg: cfg}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions/{id}/turns", s.handleTurn).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", s.handleEndSession).Methods(http.MethodDelete)

	// Back office.
	v1.HandleFunc("/reservations", s.handleListReservations).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}/advance", s.handleAdvanceOrder).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type turnRequest struct {
	Utterance string `json:"utterance"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.orch.RouteTurn(r.Context(), sessionID, req.Utterance)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.EndSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	views, err := s.res.List(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAdvanceOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "order id must be numeric")
		return
	}

	ord, err := s.ord.Advance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contractx.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contractx.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, contractx.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, contractx.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, contractx.ErrUpstream):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled request error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
