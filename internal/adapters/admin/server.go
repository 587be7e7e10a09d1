package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	appadmin "github.com/andrescamacho/commuter-go/internal/application/admin"
	"github.com/andrescamacho/commuter-go/internal/application/logging"
	"github.com/andrescamacho/commuter-go/internal/application/mediator"
	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Server is the read-only admin HTTP surface. Every endpoint dispatches a
// query through the mediator; nothing here mutates core state.
type Server struct {
	mediator mediator.Mediator
	health   func() interface{}
}

// NewServer creates the admin server. health supplies the /health payload
// and may be nil.
func NewServer(m mediator.Mediator, health func() interface{}) *Server {
	return &Server{mediator: m, health: health}
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/passengers", s.handlePassengers)
	mux.HandleFunc("/reservoirs/stats", s.handleStats)
	mux.HandleFunc("/containers/", s.handleContainerLogs)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Serve runs the admin endpoint until the context is cancelled
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handlePassengers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	s.dispatch(w, r, appadmin.PassengersQuery{
		RouteID: r.URL.Query().Get("route_id"),
		Status:  r.URL.Query().Get("status"),
		Limit:   limit,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, appadmin.ReservoirStatsQuery{})
}

// handleContainerLogs serves /containers/{id}/logs
func (s *Server) handleContainerLogs(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/containers/")
	id, ok := strings.CutSuffix(rest, "/logs")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	s.dispatch(w, r, appadmin.ContainerLogsQuery{ContainerID: id, Limit: limit})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, query mediator.Request) {
	resp, err := s.mediator.Send(r.Context(), query)
	if err != nil {
		status := http.StatusInternalServerError
		if shared.IsNotFoundError(err) {
			status = http.StatusNotFound
		}
		logging.LoggerFromContext(r.Context()).Log("WARN", "admin query failed", map[string]interface{}{
			"path": r.URL.Path, "error": err.Error(),
		})
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
