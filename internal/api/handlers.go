package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/difflens/difflens/internal/platform"
	"github.com/difflens/difflens/internal/review"
)

// reviewRequest is the shared body for endpoints that touch a platform
// API. The token may come in the body or as a bearer Authorization
// header; it is used for this request and discarded.
type reviewRequest struct {
	Page  review.PageInfo `json:"page"`
	Token string          `json:"token,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var page review.PageInfo
	if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if page.URL == "" {
		s.sendError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.service.Detect(page)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

func (s *Server) handleFetchPatch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReviewRequest(w, r)
	if !ok {
		return
	}

	result, err := s.service.FetchPatch(r.Context(), req)
	if err != nil {
		s.sendPlatformError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]any{
		"review_id":    result.ReviewID,
		"identity":     result.Identity,
		"header":       result.Patch.Header,
		"files":        result.Patch.Files,
		"total_lines":  result.Patch.TotalLines,
		"provenance":   result.Patch.Provenance,
		"conversation": result.Conversation,
	})
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReviewRequest(w, r)
	if !ok {
		return
	}

	identity, err := s.service.TestConnection(r.Context(), req)
	if err != nil {
		s.sendPlatformError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"identity": identity,
	})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.records.ListReviewRecords(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list review records", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"reviews": records})
}

func (s *Server) decodeReviewRequest(w http.ResponseWriter, r *http.Request) (review.Request, bool) {
	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return review.Request{}, false
	}
	if body.Page.URL == "" {
		s.sendError(w, http.StatusBadRequest, "page.url is required")
		return review.Request{}, false
	}

	token := body.Token
	if auth := r.Header.Get("Authorization"); auth != "" {
		if bearer, found := strings.CutPrefix(auth, "Bearer "); found {
			token = bearer
		}
	}
	if token == "" {
		s.sendError(w, http.StatusUnauthorized, "no credential provided")
		return review.Request{}, false
	}

	return review.Request{Page: body.Page, Token: token}, true
}

// sendPlatformError maps the shared error taxonomy onto HTTP statuses.
// Upstream failures are the platform's fault, not the caller's, so they
// come back as 502 unless the taxonomy says otherwise.
func (s *Server) sendPlatformError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, platform.ErrAuthentication):
		status = http.StatusUnauthorized
	case errors.Is(err, platform.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, platform.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, platform.ErrAmbiguous):
		status = http.StatusConflict
	case errors.Is(err, platform.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, platform.ErrUnsupportedPage):
		status = http.StatusUnprocessableEntity
	}

	s.logger.Warn("review request failed", "status", status, "error", err)
	s.sendError(w, status, err.Error())
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
