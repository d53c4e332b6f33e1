package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Agrid-Dev/vdizone/internal/ports"
	"github.com/Agrid-Dev/vdizone/internal/simulator"
)

type Server struct {
	svc    ports.SimulationService
	srv    *http.Server
	zoneID string
	log    *slog.Logger

	upgrader websocket.Upgrader
	clients  sync.Map // *streamClient -> struct{}
	interval time.Duration
}

type Option func(*Server)

// WithStreamInterval sets how often /v1/stream polls the service for changes.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns a runnable server.
func New(svc ports.SimulationService, addr string, zoneID string, opts ...Option) *Server {
	mux := http.NewServeMux()
	s := &Server{
		svc:      svc,
		zoneID:   zoneID,
		log:      slog.Default(),
		interval: time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "http")

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)
	mux.HandleFunc("GET /v1/cases", s.handleGetCases)
	mux.HandleFunc("GET /v1/stream", s.handleStream)

	// Write
	mux.HandleFunc("POST /v1/selected", s.handlePostSelected)
	mux.HandleFunc("POST /v1/runs", s.handlePostRun)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	go s.watch(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		s.closeClients()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type snapshotDTO struct {
	ZoneID   string             `json:"zone_id"`
	Cases    []string           `json:"cases"`
	Selected string             `json:"selected"`
	Running  int                `json:"running"`
	Runs     int                `json:"runs"`
	Last     *simulator.Summary `json:"last,omitempty"`
}

func (s *Server) toDTO(snap simulator.Snapshot) snapshotDTO {
	return snapshotDTO{
		ZoneID:   s.zoneID,
		Cases:    snap.Cases,
		Selected: snap.Selected,
		Running:  snap.Running,
		Runs:     snap.Runs,
		Last:     snap.Last,
	}
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondSnapshot(w)
}

func (s *Server) handleGetCases(w http.ResponseWriter, _ *http.Request) {
	snap := s.svc.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"cases":    s.svc.Cases(),
		"selected": snap.Selected,
	})
}

func (s *Server) handlePostSelected(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "case10-staged"}
	value, ok := decodeValue[string](w, r)
	if !ok {
		return
	}
	if err := s.svc.Select(value); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondSnapshot(w)
}

func (s *Server) handlePostRun(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "case10"}; an empty value runs the selected case
	value, ok := decodeValue[string](w, r)
	if !ok {
		return
	}
	sum, err := s.svc.RunCase(r.Context(), value)
	switch {
	case errors.Is(err, simulator.ErrUnknownCase):
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("run failed", "case", value, "err", err)
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ---- generic helpers ----
func (s *Server) respondSnapshot(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.toDTO(s.svc.Get()))
}

func decodeValue[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var zero T
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return zero, false
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return zero, false
	}
	return *req.Value, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
