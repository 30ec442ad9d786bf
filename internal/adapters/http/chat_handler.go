package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/chirplabs/chirp/internal/core/domain"
)

type chatRequestBody struct {
	BotID     string               `json:"bot_id"`
	APIKey    string               `json:"api_key"`
	SessionID string               `json:"session_id"`
	Message   string               `json:"message"`
	History   []domain.ChatMessage `json:"history,omitempty"`
}

// chatTurn runs one streamed chat turn. Rejections that happen before the
// first fragment answer with a JSON status; once streaming has begun the
// only failure channel left is the in-stream error frame.
func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	stream, err := newSSEStream(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	start := time.Now()
	fragments := 0
	chatErr := rt.chat.Chat(r.Context(), domain.ChatRequest{
		BotID:     body.BotID,
		APIKey:    body.APIKey,
		SessionID: body.SessionID,
		Message:   body.Message,
		History:   body.History,
	}, func(fragment string) error {
		fragments++
		return stream.WriteFragment(fragment)
	})
	if rt.metrics != nil {
		rt.metrics.RecordChatFragments(rt.service, fragments)
	}

	if chatErr != nil {
		rt.recordChatFailure(chatErr, start)
		// Gate rejections answer JSON while the status can still change;
		// generation failures always use the in-stream error frame so the
		// widget's stream parser sees one contract regardless of timing.
		if !stream.Started() && !isGenerationFailure(chatErr) {
			writeJSON(w, mapErrorToHTTPStatus(chatErr), map[string]string{"error": chatErr.Error()})
			return
		}
		slog.Error("chat stream aborted",
			"request_id", requestIDFromContext(r.Context()),
			"bot_id", body.BotID,
			"error", chatErr,
		)
		if err := stream.WriteError(chatErr.Error()); err != nil {
			return
		}
		_ = stream.WriteDone()
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordChatTurn(rt.service, "ok", time.Since(start))
	}
	_ = stream.WriteDone()
}

func isGenerationFailure(err error) bool {
	return domain.IsKind(err, domain.ErrProvider) || domain.IsKind(err, domain.ErrTemporary)
}

func (rt *Router) recordChatFailure(err error, start time.Time) {
	if rt.metrics == nil {
		return
	}
	switch {
	case domain.IsKind(err, domain.ErrQuotaExhausted):
		rt.metrics.RecordChatRejection(rt.service, "quota")
		rt.metrics.RecordChatTurn(rt.service, "rejected", time.Since(start))
	case domain.IsKind(err, domain.ErrAdmissionRejected):
		rt.metrics.RecordChatRejection(rt.service, "rate")
		rt.metrics.RecordChatTurn(rt.service, "rejected", time.Since(start))
	default:
		rt.metrics.RecordChatTurn(rt.service, "error", time.Since(start))
	}
}
