// Package server exposes stored model outputs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vigilator/vigil/pkg/core"
	"github.com/vigilator/vigil/pkg/vigil"
)

// Server answers record lookups and top-k queries.
type Server struct {
	db          *vigil.DB
	logger      core.Logger
	defaultTopK int
}

// New returns a server backed by db. defaultTopK applies when a request
// omits top_k.
func New(db *vigil.DB, logger core.Logger, defaultTopK int) *Server {
	if logger == nil {
		logger = core.NopLogger()
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Server{db: db, logger: logger, defaultTopK: defaultTopK}
}

// RegisterRoutes registers the API on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleTopK)
	mux.HandleFunc("GET /records", s.handleGetRecord)
	mux.HandleFunc("POST /records", s.handlePutRecord)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type topKResponse struct {
	core.RecordJSON
	TopK []core.TokenScore `json:"top_k"`
}

type recordRequest struct {
	Text     string    `json:"text"`
	TokenIDs []uint32  `json:"token_ids"`
	Logits   []float32 `json:"logits"`
}

// handleTopK serves GET /?text=...&top_k=N
func (s *Server) handleTopK(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("text") {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}
	text := q.Get("text")

	k := s.defaultTopK
	if raw := q.Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid top_k", http.StatusBadRequest)
			return
		}
		k = n
	}

	rec, err := s.db.FetchByText(r.Context(), text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	top, err := s.db.TopK(rec, k)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, topKResponse{RecordJSON: rec.JSON(), TopK: top})
}

// handleGetRecord serves GET /records?field=uuid&value=...
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field := q.Get("field")
	if field == "" {
		field = core.FieldText.String()
	}

	rec, err := s.db.FetchByField(r.Context(), field, q.Get("value"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.JSON())
}

// handlePutRecord serves POST /records with a JSON body.
func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rec, err := s.db.StoreRecord(r.Context(), req.Text, req.TokenIDs, req.Logits)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec.JSON())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.db.Store().Count(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": n})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDecodeFailure):
		return http.StatusInternalServerError
	case errors.Is(err, core.ErrFieldType),
		errors.Is(err, core.ErrInvalidK),
		errors.Is(err, core.ErrCodec):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
