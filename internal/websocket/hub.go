package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"doctorwang-backend/internal/conversation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns the live chat sessions. Every connection gets its own
// conversation view; nothing is shared between sessions.
type Hub struct {
	mu            sync.RWMutex
	sessions      map[uuid.UUID]*session
	relay         conversation.Relayer
	assistantName string
	interval      time.Duration
}

func NewHub(relay conversation.Relayer, assistantName string, revealInterval time.Duration) *Hub {
	return &Hub{
		sessions:      make(map[uuid.UUID]*session),
		relay:         relay,
		assistantName: assistantName,
		interval:      revealInterval,
	}
}

// HandleWebSocket upgrades the request and serves the session until the
// client goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.New()
	view := conversation.NewView(h.relay,
		conversation.WithTickInterval(h.interval),
		conversation.WithGreeting(conversation.Greeting(h.assistantName)),
		conversation.WithLogger(log.With().Str("session_id", id.String()).Logger()),
	)
	s := newSession(id, conn, view)

	h.registerSession(s)
	defer h.unregisterSession(s)

	s.run(h.assistantName)
}

func (h *Hub) registerSession(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.id] = s

	log.Info().Str("session_id", s.id.String()).Int("total", len(h.sessions)).Msg("websocket connected")
}

func (h *Hub) unregisterSession(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s.close()
	delete(h.sessions, s.id)

	log.Info().Str("session_id", s.id.String()).Msg("websocket disconnected")
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll tells every client the server is going away and drops the
// connections. Pending reveals are committed by their views.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.goAway()
	}
}
