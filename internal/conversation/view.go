package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is still pending")
	ErrRelayFailed  = errors.New("relay call failed")
	ErrClosed       = errors.New("conversation is closed")
)

const DefaultTickInterval = 20 * time.Millisecond

// Relayer forwards one user message to the model and returns its reply.
type Relayer interface {
	Relay(ctx context.Context, message string) (string, error)
}

// Snapshot is an immutable copy of the view state. Seq increases with every
// change, so observers fed from several goroutines can drop stale snapshots.
type Snapshot struct {
	Seq       uint64    `json:"seq"`
	Messages  []Message `json:"messages"`
	Loading   bool      `json:"loading"`
	Revealing bool      `json:"revealing"`
	Revealed  string    `json:"revealed,omitempty"`
	Cursor    int       `json:"cursor"`
	Total     int       `json:"total"`
}

// Last returns the final entry of the message list.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

type Option func(*View)

func WithTickInterval(d time.Duration) Option {
	return func(v *View) {
		if d > 0 {
			v.interval = d
		}
	}
}

// WithGreeting replaces the opening assistant entry. An empty text starts
// the view without one.
func WithGreeting(text string) Option {
	return func(v *View) { v.greeting = text }
}

func WithApology(text string) Option {
	return func(v *View) { v.apology = text }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(v *View) { v.logger = logger }
}

// View is the state container owned by one chat view.
type View struct {
	relay    Relayer
	interval time.Duration
	greeting string
	apology  string
	logger   zerolog.Logger

	mu        sync.Mutex
	messages  []Message
	loading   bool
	closed    bool
	anim      *Animation
	animIndex int
	stopAnim  context.CancelFunc
	idle      chan struct{} // closed while nothing is pending
	seq       uint64
	listeners map[int]func(Snapshot)
	nextID    int
}

func NewView(relay Relayer, opts ...Option) *View {
	idle := make(chan struct{})
	close(idle)

	v := &View{
		relay:     relay,
		interval:  DefaultTickInterval,
		greeting:  Greeting("Doctor Wang"),
		apology:   DefaultApology,
		logger:    log.Logger,
		idle:      idle,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.greeting != "" {
		v.messages = append(v.messages, Message{Role: RoleAssistant, Content: v.greeting})
	}

	return v
}

// Subscribe registers fn to receive a snapshot after every change. fn runs
// outside the view lock and may be called from several goroutines.
func (v *View) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Submit sends text through the relay. It blocks for the relay call and
// returns once the reveal of the reply has started. A submission while a
// relay call is outstanding is rejected with ErrBusy; one arriving during a
// reveal commits the superseded reply in full and stops its timer.
func (v *View) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.loading {
		v.mu.Unlock()
		return ErrBusy
	}
	if v.anim != nil {
		v.logger.Debug().Int("cursor", v.anim.Cursor()).Int("total", v.anim.Len()).Msg("superseding reveal")
		v.commitLocked()
	}
	v.messages = append(v.messages,
		Message{Role: RoleUser, Content: text},
		Message{Role: RoleThinking},
	)
	thinking := len(v.messages) - 1
	v.loading = true
	v.markBusyLocked()
	v.publishLocked()

	reply, err := v.relay.Relay(ctx, text)

	v.mu.Lock()
	v.loading = false

	if err != nil {
		v.messages[thinking] = Message{Role: RoleAssistant, Content: v.apology}
		v.markIdleLocked()
		v.publishLocked()
		v.logger.Warn().Err(err).Msg("relay call failed")
		return fmt.Errorf("%w: %w", ErrRelayFailed, err)
	}

	if v.closed {
		v.messages[thinking] = Message{Role: RoleAssistant, Content: reply}
		v.markIdleLocked()
		v.publishLocked()
		return nil
	}

	animCtx, cancel := context.WithCancel(context.Background())
	anim := NewAnimation(reply)
	v.messages[thinking] = Message{Role: RoleTyping}
	v.anim, v.animIndex, v.stopAnim = anim, thinking, cancel
	go v.reveal(animCtx, anim)
	v.logger.Debug().Int("runes", anim.Len()).Dur("interval", v.interval).Msg("reveal started")
	v.publishLocked()

	return nil
}

// WaitIdle blocks until no relay call or reveal is pending.
func (v *View) WaitIdle(ctx context.Context) error {
	for {
		v.mu.Lock()
		if !v.loading && v.anim == nil {
			v.mu.Unlock()
			return nil
		}
		idle := v.idle
		v.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}
	}
}

// Close commits any running reveal and rejects further submissions. A relay
// call still in flight commits its reply without animation.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	if v.anim != nil {
		v.commitLocked()
	}
	v.publishLocked()
}

// reveal appends one rune per tick to the typing entry. The tick after the
// last rune turns the entry into a permanent assistant message.
func (v *View) reveal(ctx context.Context, anim *Animation) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		v.mu.Lock()
		if v.anim != anim {
			v.mu.Unlock()
			return
		}

		finished := anim.Done()
		if finished {
			v.commitLocked()
		} else {
			revealed, _ := anim.Step()
			v.messages[v.animIndex].Content = revealed
		}
		v.publishLocked()

		if finished {
			return
		}
	}
}

func (v *View) commitLocked() {
	v.messages[v.animIndex] = Message{Role: RoleAssistant, Content: v.anim.Target()}
	v.stopAnim()
	v.anim, v.stopAnim = nil, nil
	if !v.loading {
		v.markIdleLocked()
	}
}

func (v *View) markBusyLocked() {
	select {
	case <-v.idle:
		v.idle = make(chan struct{})
	default:
	}
}

func (v *View) markIdleLocked() {
	select {
	case <-v.idle:
	default:
		close(v.idle)
	}
}

// publishLocked bumps the sequence, releases the lock and hands the new
// snapshot to every listener.
func (v *View) publishLocked() {
	v.seq++
	snap := v.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(v.listeners))
	for _, fn := range v.listeners {
		listeners = append(listeners, fn)
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (v *View) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:      v.seq,
		Messages: append([]Message(nil), v.messages...),
		Loading:  v.loading,
	}
	if v.anim != nil {
		snap.Revealing = true
		snap.Revealed = v.anim.Revealed()
		snap.Cursor = v.anim.Cursor()
		snap.Total = v.anim.Len()
	}
	return snap
}
