package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"doctorwang-backend/internal/conversation"
	"doctorwang-backend/internal/models"
)

const relayErrorMessage = "Error processing request"

type relayService interface {
	Relay(ctx context.Context, message string) (string, error)
}

type ChatHandler struct {
	relay         relayService
	assistantName string
}

func NewChatHandler(relay relayService, assistantName string) *ChatHandler {
	return &ChatHandler{
		relay:         relay,
		assistantName: assistantName,
	}
}

// Relay forwards one message to the model. Any failure, including a body that
// is not valid JSON, is reported the same way.
func (h *ChatHandler) Relay(w http.ResponseWriter, r *http.Request) {
	var req models.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRelayError(w, r, err)
		return
	}

	reply, err := h.relay.Relay(r.Context(), req.Message)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.RelayResponse{Response: reply})
}

func (h *ChatHandler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.PresetsResponse{
		AssistantName: h.assistantName,
		Presets:       conversation.PresetQuestions,
	})
}

func writeRelayError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().
		Err(err).
		Str("request_id", r.Header.Get("X-Request-ID")).
		Msg("relay request failed")

	writeJSON(w, http.StatusInternalServerError, models.RelayError{
		Error:   relayErrorMessage,
		Details: err.Error(),
	})
}
