package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chirplabs/chirp/internal/core/ports"
	"github.com/chirplabs/chirp/internal/observability/metrics"
)

type Router struct {
	chat     ports.ChatStreamer
	ingestor ports.KnowledgeIngestor
	remover  ports.KnowledgeRemover
	bots     ports.BotStore
	sources  ports.SourceStore
	metrics  *metrics.HTTPServerMetrics
	service  string
	ready    func() error
}

func NewRouter(
	chat ports.ChatStreamer,
	ingestor ports.KnowledgeIngestor,
	remover ports.KnowledgeRemover,
	bots ports.BotStore,
	sources ports.SourceStore,
	httpMetrics *metrics.HTTPServerMetrics,
	service string,
	ready func() error,
) *Router {
	return &Router{
		chat:     chat,
		ingestor: ingestor,
		remover:  remover,
		bots:     bots,
		sources:  sources,
		metrics:  httpMetrics,
		service:  service,
		ready:    ready,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/readyz", rt.readyz)
	mux.HandleFunc("/v1/chat", rt.chatTurn)
	mux.HandleFunc("/v1/bots/", rt.botKnowledge)
	mux.HandleFunc("/v1/knowledge/", rt.getSource)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(recoverMiddleware(handler)))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		if err := rt.ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// botKnowledge dispatches /v1/bots/{bot_id}/knowledge.
func (rt *Router) botKnowledge(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/bots/")
	botID, tail, found := strings.Cut(rest, "/")
	if !found || tail != "knowledge" || botID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodPost:
		rt.acceptKnowledge(w, r, botID)
	case http.MethodDelete:
		rt.deleteKnowledge(w, r, botID)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode json response", "error", err)
	}
}
