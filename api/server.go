// Package api - Thin HTTP layer over the rating engine
// The API is ONLY responsible for: input ingestion, engine orchestration, output serialization.
// The API NEVER performs rating logic.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"premium-rater/core/rating"
	"premium-rater/core/tables"
	"premium-rater/internal/errors"
	"premium-rater/internal/logging"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 4 << 20

// Options configures a Server
type Options struct {
	Version string

	// MaxBatch caps the requests accepted by POST /rate/batch
	MaxBatch int

	// Workers bounds concurrent rating inside a batch
	Workers int

	Logger *zap.Logger
}

// Server is the API server
type Server struct {
	provider tables.Provider
	mux      *http.ServeMux
	opts     Options
	log      *zap.Logger
}

// NewServer creates a new API server rating against provider
func NewServer(provider tables.Provider, opts Options) *Server {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	log := opts.Logger
	if log == nil {
		log = logging.Named("api")
	}

	s := &Server{
		provider: provider,
		mux:      http.NewServeMux(),
		opts:     opts,
		log:      log,
	}

	s.registerRoutes()
	return s
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("POST /rate", s.handleRate)
	s.mux.HandleFunc("POST /rate/batch", s.handleBatch)
	s.mux.HandleFunc("GET /tables", s.handleTables)

	// Supporting endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /version", s.handleVersion)
}

// engine binds a rating engine to the provider's current tables
func (s *Server) engine(r *http.Request) (*rating.Engine, error) {
	t, err := s.provider.Tables(r.Context())
	if err != nil {
		return nil, err
	}
	return rating.NewEngine(t, rating.WithLogger(s.log))
}

// handleRate handles POST /rate
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, "INVALID_JSON", err.Error(), http.StatusBadRequest)
		return
	}
	raw, err := rating.ParseRequest(body)
	if err != nil {
		s.writeError(w, "INVALID_JSON", "request body must be a JSON object", http.StatusBadRequest)
		return
	}

	engine, err := s.engine(r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	q, err := engine.Quote(raw)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.log.Info("quote issued",
		zap.String("id", id),
		zap.Int64("premium", q.Premium),
		zap.Duration("duration", time.Since(start)),
	)
	s.writeJSON(w, newRateResponse(id, q), http.StatusOK)
}

// handleBatch handles POST /rate/batch
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	var req BatchRequest
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, "INVALID_JSON", err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Requests) > s.opts.MaxBatch {
		s.writeError(w, "BATCH_TOO_LARGE",
			fmt.Sprintf("batch holds %d requests, the maximum is %d", len(req.Requests), s.opts.MaxBatch),
			http.StatusRequestEntityTooLarge)
		return
	}

	engine, err := s.engine(r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	results, err := engine.RateBatch(r.Context(), req.Requests, s.opts.Workers)
	if err != nil {
		s.writeError(w, "CANCELLED", err.Error(), http.StatusServiceUnavailable)
		return
	}

	resp := &BatchResponse{ID: id, Results: make([]BatchItem, len(results))}
	for i, res := range results {
		item := BatchItem{Index: res.Index}
		if res.Err != nil {
			resp.Failed++
			item.Error = &ErrorDetail{Code: string(errors.TypeOf(res.Err)), Message: res.Err.Error()}
		} else {
			resp.Rated++
			premium, amount := res.Quote.Premium, res.Quote.Amount
			item.Premium = &premium
			item.Amount = &amount
		}
		resp.Results[i] = item
	}

	s.log.Info("batch rated", zap.String("id", id), zap.Int("rated", resp.Rated), zap.Int("failed", resp.Failed))
	s.writeJSON(w, resp, http.StatusOK)
}

// handleTables handles GET /tables
func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	t, err := s.provider.Tables(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, &TablesResponse{
		Document:    tables.ToDocument(t),
		Industries:  t.Industries(),
		Fingerprint: t.Fingerprint().Hex(),
	}, http.StatusOK)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "healthy",
		"version": s.opts.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if t, err := s.provider.Tables(r.Context()); err != nil {
		resp["status"], code = "degraded", http.StatusServiceUnavailable
	} else {
		resp["tables"] = t.Fingerprint().Short()
	}
	s.writeJSON(w, resp, code)
}

// handleVersion handles GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"version":     s.opts.Version,
		"engine":      "premium-rater",
		"api_version": "v1",
	}, http.StatusOK)
}

// writeFailure maps a typed error to a status code
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	t := errors.TypeOf(err)
	switch {
	case t == errors.TypeMissingField:
		s.writeError(w, string(t), err.Error(), http.StatusBadRequest)
	case t.IsInput():
		s.writeError(w, string(t), err.Error(), http.StatusUnprocessableEntity)
	case t == errors.TypeTableLoad:
		s.log.Error("calibration tables unavailable", zap.Error(err))
		s.writeError(w, string(t), "calibration tables unavailable", http.StatusServiceUnavailable)
	default:
		s.log.Error("rating failed", zap.Error(err))
		s.writeError(w, string(t), err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		s.log.Error("encoding response", zap.Error(err))
		http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"encoding response"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeError(w http.ResponseWriter, code, message string, status int) {
	s.writeJSON(w, &ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}, status)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
