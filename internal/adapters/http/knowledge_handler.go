package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
)

const apiKeyHeader = "X-API-Key"

type acceptKnowledgeBody struct {
	SourceType string `json:"source_type"`
	Source     string `json:"source"`
	Content    string `json:"content"`
}

func (rt *Router) acceptKnowledge(w http.ResponseWriter, r *http.Request, botID string) {
	if _, err := rt.bots.GetByIDAndKey(r.Context(), botID, r.Header.Get(apiKeyHeader)); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	var body acceptKnowledgeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	src, err := rt.ingestor.Accept(r.Context(), botID, body.SourceType, body.Source, body.Content)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSourceAccepted(rt.service, src.SourceType)
	}
	writeJSON(w, http.StatusAccepted, src)
}

func (rt *Router) deleteKnowledge(w http.ResponseWriter, r *http.Request, botID string) {
	if _, err := rt.bots.GetByIDAndKey(r.Context(), botID, r.Header.Get(apiKeyHeader)); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if err := rt.remover.RemoveAll(r.Context(), botID); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordKnowledgeDeletion(rt.service)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/knowledge/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source id is required"})
		return
	}

	src, err := rt.sources.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	// The owning bot's key gates the status read as well.
	if _, err := rt.bots.GetByIDAndKey(r.Context(), src.BotID, r.Header.Get(apiKeyHeader)); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, src)
}
