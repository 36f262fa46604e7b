// Package httpadapter exposes the triage pipeline and the consult audit
// trail over HTTP.
package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
	"github.com/myvet-app/triage-assistant/internal/core/ports"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/export/excel"
	"github.com/myvet-app/triage-assistant/internal/observability/metrics"
)

const serviceName = "triage-api"

// RouterConfig carries the request-facing knobs of the API process.
type RouterConfig struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	ConsultListLimit int
}

type Router struct {
	triage   ports.TriageService
	index    ports.IndexAdmin
	consults ports.ConsultStore
	exporter *excel.Exporter
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(
	triage ports.TriageService,
	index ports.IndexAdmin,
	consults ports.ConsultStore,
	exporter *excel.Exporter,
	m *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.ConsultListLimit <= 0 {
		cfg.ConsultListLimit = 100
	}
	return &Router{
		triage:   triage,
		index:    index,
		consults: consults,
		exporter: exporter,
		metrics:  m,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/triage/consults", rt.handleSubmit)
	mux.HandleFunc("GET /v1/triage/consults", rt.handleList)
	mux.HandleFunc("GET /v1/triage/consults/export", rt.handleExport)
	mux.HandleFunc("GET /v1/triage/consults/{consult_id}", rt.handleGet)
	mux.HandleFunc("POST /v1/triage/consults/{consult_id}/review", rt.handleReview)
	mux.HandleFunc("POST /v1/triage/reindex", rt.handleReindex)
	mux.HandleFunc("GET /healthz", rt.handleHealth)
	mux.Handle("GET /metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

type submitRequest struct {
	UserID   string `json:"user_id"`
	Symptoms string `json:"sintomas"`
	Species  string `json:"especie,omitempty"`
	Age      string `json:"edad,omitempty"`
	Context  string `json:"contexto,omitempty"`
}

func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo JSON invalido")
		return
	}

	start := time.Now()
	result, err := rt.triage.Submit(r.Context(), domain.TriageQuery{
		UserID:   req.UserID,
		Symptoms: req.Symptoms,
		Species:  req.Species,
		Age:      req.Age,
		Context:  req.Context,
	})
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= 500 {
			slog.Error("triage_submit_failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		}
		writeError(w, status, err.Error())
		return
	}

	rt.metrics.RecordSubmission(serviceName, string(result.Outcome), result.Retrieval, len(result.Sources), time.Since(start))

	if result.Note != "" {
		rt.metrics.RecordFallbackNote(serviceName, result.Note)
	}

	status := http.StatusOK
	if result.Outcome == domain.OutcomeDegradedFallback {
		// The local ladder answered, not the model. 503 tells the owner app
		// to flag the prediagnosis as non-authoritative while still carrying
		// the consult id and recommendations in the body.
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

func (rt *Router) handleList(w http.ResponseWriter, r *http.Request) {
	limit := rt.cfg.ConsultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit invalido")
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	records, err := rt.consults.List(r.Context(), limit)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), "no se pudieron listar las consultas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consults": records})
}

func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("consult_id"))
	record, err := rt.consults.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), "consulta no encontrada")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type reviewRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Comment    string `json:"comment,omitempty"`
	Status     string `json:"status"`
}

func (rt *Router) handleReview(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("consult_id"))

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo JSON invalido")
		return
	}
	if strings.TrimSpace(req.ReviewerID) == "" {
		writeError(w, http.StatusBadRequest, "reviewer_id requerido")
		return
	}
	if req.Status == "" {
		req.Status = string(domain.ConsultReviewed)
	}

	err := rt.consults.Review(r.Context(), id, req.ReviewerID, req.Comment, domain.ConsultStatus(req.Status))
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"consult_id": id, "status": req.Status})
}

func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := rt.consults.List(r.Context(), rt.cfg.ConsultListLimit)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), "no se pudieron listar las consultas")
		return
	}

	filename := fmt.Sprintf("consultas-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := rt.exporter.Write(w, records); err != nil {
		slog.Error("consult_export_failed", "error", err, "request_id", requestIDFromContext(r.Context()))
	}
}

func (rt *Router) handleReindex(w http.ResponseWriter, r *http.Request) {
	count, err := rt.index.Reindex(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), "reindexado fallido")
		return
	}
	rt.metrics.RecordReindex(count)
	writeJSON(w, http.StatusOK, map[string]int{"indexed_documents": count})
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write_response_failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
