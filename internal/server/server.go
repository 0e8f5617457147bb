// Package server exposes the PDF service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mocca-flames/flame-pdf/internal/ingest"
	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/internal/service"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Generator runs one batch.
type Generator interface {
	Generate(ctx context.Context, req service.Request) (*service.Result, error)
}

// Server holds the HTTP handlers.
type Server struct {
	gen     Generator
	name    string
	version string
	started time.Time
	log     *slog.Logger
}

// New returns a server that reports itself as name/version on GET /.
func New(gen Generator, name, version string, log *slog.Logger) *Server {
	return &Server{
		gen:     gen,
		name:    name,
		version: version,
		started: time.Now(),
		log:     logging.OrDiscard(log),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate-pdf", s.handleGenerate)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return mux
}

type generateRequest struct {
	UserID   string `json:"userId"`
	ImageDir string `json:"imageDir"`
}

type generateResponse struct {
	Success   bool   `json:"success"`
	UseDemo   bool   `json:"useDemo,omitempty"`
	DemoImage string `json:"demoImage,omitempty"`
	PDFPath   string `json:"pdfPath,omitempty"`
	PageCount int    `json:"pageCount,omitempty"`
	FileSize  string `json:"fileSize,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	log := s.log.With("request_id", id)

	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}

	start := time.Now()
	res, err := s.gen.Generate(r.Context(), service.Request{
		ID:       id,
		UserID:   body.UserID,
		ImageDir: body.ImageDir,
	})
	if err != nil {
		status, detail := classify(err)
		log.Warn("generate failed", "status", status, "error", err, "elapsed", time.Since(start))
		s.writeJSON(w, status, errorResponse{Detail: detail})
		return
	}

	if res.UseDemo {
		s.writeJSON(w, http.StatusOK, generateResponse{Success: true, UseDemo: true, DemoImage: res.PlaceholderPath})
		return
	}
	s.writeJSON(w, http.StatusOK, generateResponse{
		Success:   true,
		PDFPath:   res.PDFPath,
		PageCount: res.PageCount,
		FileSize:  fmt.Sprintf("%d bytes", res.FileSize),
	})
}

// classify maps a service error to a status code and client-facing message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ingest.ErrReadyTimeout):
		return http.StatusRequestTimeout, "Timeout waiting for images"
	case errors.Is(err, ingest.ErrNoImages):
		return http.StatusBadRequest, "No images found"
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Processing failed: " + err.Error()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"Running Code": s.name,
		"version":      s.version,
		"uptime":       int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent.
		s.log.Debug("failed to encode response", "status", status, "error", err)
	}
}
