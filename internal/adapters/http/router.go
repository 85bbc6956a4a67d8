// Package httpadapter exposes the research service over HTTP: a blocking
// research endpoint, an asynchronous job intake backed by the queue, and a
// per-session transcript read model.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ybolotov/deep-research/internal/core/ports"
	"github.com/ybolotov/deep-research/internal/observability/metrics"
)

const maxQueryChars = 4000

type Router struct {
	research    ports.ResearchService
	transcripts ports.TranscriptReader
	queue       ports.JobQueue
	httpMetrics *metrics.HTTPServerMetrics
	traffic     TrafficControl
}

// TrafficControl tunes the protective middleware in front of the API.
// Zero values disable the corresponding gate.
type TrafficControl struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

// NewRouter wires the HTTP surface. Queue may be nil when the deployment
// runs without asynchronous intake; httpMetrics may be nil in tests.
func NewRouter(
	research ports.ResearchService,
	transcripts ports.TranscriptReader,
	queue ports.JobQueue,
	httpMetrics *metrics.HTTPServerMetrics,
	traffic TrafficControl,
) *Router {
	return &Router{
		research:    research,
		transcripts: transcripts,
		queue:       queue,
		httpMetrics: httpMetrics,
		traffic:     traffic,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/research", rt.runResearch)
	mux.HandleFunc("/v1/research/jobs", rt.enqueueResearch)
	mux.HandleFunc("/v1/sessions/", rt.getTranscript)
	if rt.httpMetrics != nil {
		mux.Handle("/metrics", rt.httpMetrics.Handler())
	}

	var handler http.Handler = mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware("api", handler)
	}
	handler = backpressureMiddleware(handler, rt.traffic.MaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.traffic.RateLimitRPS, rt.traffic.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type researchRequest struct {
	Query string `json:"query"`
}

func (rt *Router) runResearch(w http.ResponseWriter, r *http.Request) {
	query, ok := rt.decodeResearchRequest(w, r)
	if !ok {
		return
	}

	sessionID := uuid.NewString()
	result, err := rt.research.Run(r.Context(), sessionID, query)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) enqueueResearch(w http.ResponseWriter, r *http.Request) {
	query, ok := rt.decodeResearchRequest(w, r)
	if !ok {
		return
	}
	if rt.queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "asynchronous intake is not configured"})
		return
	}

	sessionID := uuid.NewString()
	if err := rt.queue.PublishResearchRequested(r.Context(), sessionID, query); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": sessionID,
		"status":     "queued",
	})
}

func (rt *Router) decodeResearchRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return "", false
	}

	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return "", false
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return "", false
	}
	if len(query) > maxQueryChars {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is too long"})
		return "", false
	}
	return query, true
}

func (rt *Router) getTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "transcript" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	sessionID := parts[0]

	entries, err := rt.transcripts.ListBySession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"entries":    entries,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
