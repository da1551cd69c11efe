// Package chi exposes the search and admission API over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vanban-cloud/docdex/internal/domain"
	documentuc "github.com/vanban-cloud/docdex/internal/usecase/document"
	healthuc "github.com/vanban-cloud/docdex/internal/usecase/health"
	searchuc "github.com/vanban-cloud/docdex/internal/usecase/search"
)

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was ready.
const statusClientClosedRequest = 499

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server routes HTTP requests to the use case services.
type Server struct {
	documents     *documentuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *documentuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		documents: documents,
		search:    search,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		parseErrorHandler,
		unknownFieldHandler,
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeQueryTimeout),
		sentinelHandler(domain.ErrCancelled, statusClientClosedRequest, codeCancelled),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrSemanticNotConfigured, http.StatusNotImplemented, codeSemanticNotAvailable),
		sentinelHandler(domain.ErrSemanticUnavailable, http.StatusBadGateway, codeSemanticUnavailable),
	}
	return s
}

// Routes mounts all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.SearchDocuments)
	r.Post("/v1/documents", s.AdmitDocument)
	r.Put("/v1/documents/{id}", s.UpdateDocument)
	r.Delete("/v1/documents/{id}", s.DeleteDocument)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchDocuments handles POST /v1/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var dto searchRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := searchRequestFromDTO(dto)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	page, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFromPage(page))
}

// AdmitDocument handles POST /v1/documents.
func (s *Server) AdmitDocument(w http.ResponseWriter, r *http.Request) {
	var dto documentRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, err := documentFromDTO(dto)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	out, err := s.documents.Admit(r.Context(), doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, admitResponseFromOutcome(doc.ID(), out))
}

// UpdateDocument handles PUT /v1/documents/{id}.
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var dto documentRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if dto.ID != "" && dto.ID != id {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "document id in body does not match path")
		return
	}
	dto.ID = id

	doc, err := documentFromDTO(dto)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	out, err := s.documents.Update(r.Context(), doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, admitResponseFromOutcome(doc.ID(), out))
}

// DeleteDocument handles DELETE /v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.documents.Remove(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponseFromReport(report))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrAlreadyExists,
		domain.ErrTimeout,
		domain.ErrCancelled,
		domain.ErrIndexUnavailable,
		domain.ErrInvalidArgument,
		domain.ErrSemanticNotConfigured,
		domain.ErrSemanticUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// parseErrorHandler handles malformed queries with the rune position of the
// offending token, so the caller can point at it.
func parseErrorHandler(w http.ResponseWriter, err error) bool {
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		return false
	}
	pos := pe.Pos
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:     codeParseError,
		Message:  pe.Error(),
		Position: &pos,
	})
	return true
}

// unknownFieldHandler handles filters on fields the index does not know.
func unknownFieldHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrUnknownField) {
		return false
	}
	resp := errorResponse{Code: codeUnknownField, Message: err.Error()}
	var ufe *domain.UnknownFieldError
	if errors.As(err, &ufe) {
		resp.Field = ufe.Field
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
