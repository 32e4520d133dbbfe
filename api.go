package newsvote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// APIServer represents the HTTP API server consumed by the browser client.
type APIServer struct {
	engine *Engine
	query  *QueryService
}

// NewAPIServer creates a new API server over the given engine and query
// surface.
func NewAPIServer(engine *Engine, query *QueryService) *APIServer {
	return &APIServer{
		engine: engine,
		query:  query,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitRequest is the body of POST /news.
type SubmitRequest struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
	Author   string `json:"author"`
}

// VoteRequest is the body of POST /vote/{id}.
type VoteRequest struct {
	Action string `json:"action"`
	Voter  string `json:"voter,omitempty"`
}

// HandleSubmit handles POST /news.
func (s *APIServer) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, string(KindValidation), "Invalid JSON body: "+err.Error())
		return
	}

	article, created, err := s.engine.Submit(req.Headline, req.Body, req.Author)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// Resubmitted content returns the article that already exists rather
	// than a second pending copy.
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}

	s.writeJSON(w, status, article)
}

// HandleVote handles POST /vote/{id}.
func (s *APIServer) HandleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	id, err := s.parseArticleID(r.URL.Path, "/vote/")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(KindValidation), "Invalid article ID: "+err.Error())
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, string(KindValidation), "Invalid JSON body: "+err.Error())
		return
	}

	action, ok := ParseAction(req.Action)
	if !ok {
		s.writeError(w, http.StatusBadRequest, string(KindValidation), "Invalid action. Use 'approve' or 'disapprove'")
		return
	}

	voter := req.Voter
	if voter == "" {
		// No authentication exists; fall back to the caller's address as a
		// best-effort identity for duplicate suppression.
		voter = remoteHost(r)
	}

	result, err := s.engine.CastVote(id, voter, action)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// HandleApprovedNews handles GET /approved_news.
func (s *APIServer) HandleApprovedNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	limit, offset, err := s.parsePagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(KindValidation), err.Error())
		return
	}

	page, err := s.query.ListApproved(limit, offset)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, page)
}

// HandleSearch handles GET /search?q=term.
func (s *APIServer) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	limit, offset, err := s.parsePagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(KindValidation), err.Error())
		return
	}

	page, err := s.query.Search(r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, page)
}

// HandleToVerify handles GET /toverify. The response is a bare array of
// pending articles with their approval rates, which is what the verification
// page renders.
func (s *APIServer) HandleToVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	limit, offset, err := s.parsePagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(KindValidation), err.Error())
		return
	}

	pending, err := s.query.ListPending(limit, offset)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, pending)
}

// HandlePendingNews handles GET /pending_news, the moderator status view:
// pending articles with tallies in the standard envelope.
func (s *APIServer) HandlePendingNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	limit, offset, err := s.parsePagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(KindValidation), err.Error())
		return
	}

	pending, err := s.query.ListPending(limit, offset)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	total, err := s.query.CountPending()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, PendingPage{
		Results: pending,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// PendingPage is the envelope for the moderator status view.
type PendingPage struct {
	Results []PendingArticle `json:"results"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// parsePagination reads limit/offset query parameters.
func (s *APIServer) parsePagination(r *http.Request) (limit, offset int, err error) {
	query := r.URL.Query()

	limit = DefaultLimit
	if limitParam := query.Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			return 0, 0, fmt.Errorf("invalid limit parameter")
		}
		limit = parsed
	}

	offset = 0
	if offsetParam := query.Get("offset"); offsetParam != "" {
		parsed, err := strconv.Atoi(offsetParam)
		if err != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter")
		}
		offset = parsed
	}

	return limit, offset, nil
}

// parseArticleID extracts a UUID from the URL path.
func (s *APIServer) parseArticleID(path, prefix string) (uuid.UUID, error) {
	path = strings.TrimPrefix(path, prefix)

	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		return uuid.Nil, fmt.Errorf("no ID provided")
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// remoteHost returns the caller's address without the port.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeDomainError maps a domain error to an HTTP status and writes the
// standard error envelope.
func (s *APIServer) writeDomainError(w http.ResponseWriter, err error) {
	kind := KindOf(err)

	var status int
	switch kind {
	case KindValidation:
		status = http.StatusBadRequest
	case KindNotFound:
		status = http.StatusNotFound
	case KindDuplicateVote, KindNotVotable:
		status = http.StatusConflict
	case KindStorageUnavailable:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	message := err.Error()
	var de *Error
	if errors.As(err, &de) {
		message = de.Message
	}

	s.writeError(w, status, string(kind), message)
}

// writeError writes an error response.
func (s *APIServer) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *APIServer) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// CORSMiddleware adds CORS headers to responses so the browser client can
// call the API from another origin.
func (s *APIServer) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler builds the HTTP handler with all routes registered.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/news", s.HandleSubmit)
	mux.HandleFunc("/vote/", s.HandleVote)
	mux.HandleFunc("/approved_news", s.HandleApprovedNews)
	mux.HandleFunc("/search", s.HandleSearch)
	mux.HandleFunc("/toverify", s.HandleToVerify)
	mux.HandleFunc("/pending_news", s.HandlePendingNews)

	return s.CORSMiddleware(mux)
}

// Start starts the HTTP server on the given address.
func (s *APIServer) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}
