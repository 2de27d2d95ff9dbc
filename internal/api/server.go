// Package api exposes the review pipeline over HTTP for the browser
// extension: page detection, patch fetching, connection testing, and the
// review history.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/difflens/difflens/internal/config"
	"github.com/difflens/difflens/internal/review"
	"github.com/difflens/difflens/internal/storage"
)

// RecordLister is the slice of storage the history endpoint needs.
type RecordLister interface {
	ListReviewRecords(ctx context.Context, limit int) ([]storage.ReviewRecord, error)
}

type Server struct {
	config  *config.Config
	service *review.Service
	records RecordLister
	logger  *slog.Logger
}

func NewServer(cfg *config.Config, service *review.Service, records RecordLister, logger *slog.Logger) *Server {
	return &Server{
		config:  cfg,
		service: service,
		records: records,
		logger:  logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/detect", s.handleDetect)
	mux.HandleFunc("POST /api/v1/review/patch", s.handleFetchPatch)
	mux.HandleFunc("POST /api/v1/connection/test", s.handleTestConnection)
	mux.HandleFunc("GET /api/v1/reviews", s.handleListReviews)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
