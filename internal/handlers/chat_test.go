package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRelay struct {
	reply    string
	err      error
	received []string
}

func (s *stubRelay) Relay(ctx context.Context, message string) (string, error) {
	s.received = append(s.received, message)
	return s.reply, s.err
}

func postChat(t *testing.T, h *ChatHandler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.Relay(rr, req)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	return rr, payload
}

func TestChatHandler_Relay_Success(t *testing.T) {
	relay := &stubRelay{reply: "• Rest in a dark room"}
	h := NewChatHandler(relay, "Doctor Wang")

	rr, payload := postChat(t, h, `{"message":"Headache"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Equal(t, map[string]any{"response": "• Rest in a dark room"}, payload)
	require.Equal(t, []string{"Headache"}, relay.received)
}

func TestChatHandler_Relay_ForwardsEmptyMessage(t *testing.T) {
	relay := &stubRelay{reply: "How can I help?"}
	h := NewChatHandler(relay, "Doctor Wang")

	rr, _ := postChat(t, h, `{"message":""}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{""}, relay.received)
}

func TestChatHandler_Relay_UpstreamFailure(t *testing.T) {
	relay := &stubRelay{err: errors.New("Gemini API error: quota exceeded")}
	h := NewChatHandler(relay, "Doctor Wang")

	rr, payload := postChat(t, h, `{"message":"Headache"}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, relayErrorMessage, payload["error"])
	require.Equal(t, "Gemini API error: quota exceeded", payload["details"])
	require.NotContains(t, payload, "response")
}

func TestChatHandler_Relay_MalformedBody(t *testing.T) {
	relay := &stubRelay{reply: "unused"}
	h := NewChatHandler(relay, "Doctor Wang")

	rr, payload := postChat(t, h, `{"message":`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, relayErrorMessage, payload["error"])
	require.NotEmpty(t, payload["details"])
	require.NotContains(t, payload, "response")
	require.Empty(t, relay.received)
}

func TestChatHandler_Presets(t *testing.T) {
	h := NewChatHandler(&stubRelay{}, "Doctor Wang")

	req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	rr := httptest.NewRecorder()
	h.Presets(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		AssistantName string   `json:"assistant_name"`
		Presets       []string `json:"presets"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	require.Equal(t, "Doctor Wang", payload.AssistantName)
	require.Contains(t, payload.Presets, "Headache")
	require.Len(t, payload.Presets, 12)
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
