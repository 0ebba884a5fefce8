package models

// RelayRequest is the payload sent to the relay endpoint.
type RelayRequest struct {
	Message string `json:"message"`
}

// RelayResponse carries the model reply verbatim.
type RelayResponse struct {
	Response string `json:"response"`
}

// RelayError is returned with a non-2xx status. It never carries a response.
type RelayError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

type PresetsResponse struct {
	AssistantName string   `json:"assistant_name"`
	Presets       []string `json:"presets"`
}

// WebSocket message types
const (
	WSTypeSubmit   = "submit"
	WSTypeWelcome  = "welcome"
	WSTypeSnapshot = "snapshot"
	WSTypeError    = "error"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// WSClientMessage is what the widget sends over the socket.
type WSClientMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type WSWelcome struct {
	SessionID     string   `json:"session_id"`
	AssistantName string   `json:"assistant_name"`
	Presets       []string `json:"presets"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
