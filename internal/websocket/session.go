package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"doctorwang-backend/internal/conversation"
	"doctorwang-backend/internal/models"
)

const writeWait = 10 * time.Second

type session struct {
	id     uuid.UUID
	conn   *websocket.Conn
	view   *conversation.View
	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex
	sentAny   bool
	lastSeq   uint64
	closeOnce sync.Once
}

func newSession(id uuid.UUID, conn *websocket.Conn, view *conversation.View) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:     id,
		conn:   conn,
		view:   view,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *session) run(assistantName string) {
	unsubscribe := s.view.Subscribe(s.sendSnapshot)
	defer unsubscribe()

	s.write(models.WSMessage{
		Type: models.WSTypeWelcome,
		Payload: models.WSWelcome{
			SessionID:     s.id.String(),
			AssistantName: assistantName,
			Presets:       conversation.PresetQuestions,
		},
	})
	s.sendSnapshot(s.view.Snapshot())

	for {
		var msg models.WSClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session_id", s.id.String()).Msg("websocket read failed")
			}
			return
		}

		switch msg.Type {
		case models.WSTypeSubmit:
			go s.submit(msg.Message)
		default:
			s.sendError("UNKNOWN_TYPE", "Unsupported message type: "+msg.Type)
		}
	}
}

func (s *session) submit(text string) {
	err := s.view.Submit(s.ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrBusy):
		s.sendError("BUSY", "Please wait for the current reply before asking again.")
	case errors.Is(err, conversation.ErrEmptyMessage):
		s.sendError("EMPTY_MESSAGE", "Message is required")
	case errors.Is(err, conversation.ErrRelayFailed):
		// The view already shows the apology entry.
	case errors.Is(err, conversation.ErrClosed):
	default:
		log.Error().Err(err).Str("session_id", s.id.String()).Msg("unexpected submit error")
	}
}

// sendSnapshot writes snap unless a newer one already went out.
func (s *session) sendSnapshot(snap conversation.Snapshot) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.sentAny && snap.Seq <= s.lastSeq {
		return
	}
	s.sentAny = true
	s.lastSeq = snap.Seq

	s.writeLocked(models.WSMessage{Type: models.WSTypeSnapshot, Payload: snap})
}

func (s *session) sendError(code, message string) {
	s.write(models.WSMessage{
		Type:    models.WSTypeError,
		Payload: models.WSError{Code: code, Message: message},
	})
}

func (s *session) write(msg models.WSMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.writeLocked(msg)
}

func (s *session) writeLocked(msg models.WSMessage) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Str("session_id", s.id.String()).Msg("websocket write failed")
	}
}

func (s *session) goAway() {
	s.writeMu.Lock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
	s.writeMu.Unlock()
	s.close()
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.view.Close()
		s.conn.Close()
	})
}
