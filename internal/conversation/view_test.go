package conversation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type stubRelayer struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []string
	block   chan struct{}
	started chan string
}

func (s *stubRelayer) Relay(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, message)
	reply := ""
	if len(s.replies) > 0 {
		reply = s.replies[0]
		s.replies = s.replies[1:]
	}
	err := s.err
	block, started := s.block, s.started
	s.mu.Unlock()

	if started != nil {
		started <- message
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (s *stubRelayer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) ordered() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Snapshot(nil), r.snaps...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func waitIdle(t *testing.T, v *View) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, v.WaitIdle(ctx))
}

func TestView_StartsWithGreeting(t *testing.T) {
	v := NewView(&stubRelayer{})
	snap := v.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Equal(t, RoleAssistant, snap.Messages[0].Role)
	require.Contains(t, snap.Messages[0].Content, "Doctor Wang")

	v = NewView(&stubRelayer{}, WithGreeting(""))
	require.Empty(t, v.Snapshot().Messages)
}

func TestView_SubmitRevealsReply(t *testing.T) {
	relay := &stubRelayer{replies: []string{"Rest and drink water."}}
	v := NewView(relay, WithTickInterval(time.Millisecond))

	require.NoError(t, v.Submit(context.Background(), "Headache"))
	waitIdle(t, v)

	snap := v.Snapshot()
	require.Equal(t, []Message{
		{Role: RoleAssistant, Content: Greeting("Doctor Wang")},
		{Role: RoleUser, Content: "Headache"},
		{Role: RoleAssistant, Content: "Rest and drink water."},
	}, snap.Messages)
	require.False(t, snap.Loading)
	require.False(t, snap.Revealing)
	require.Equal(t, []string{"Headache"}, relay.calls)
}

func TestView_RevealProducesOneStatePerRune(t *testing.T) {
	reply := "Take ibuprofen • 休息"
	n := utf8.RuneCountInString(reply)

	v := NewView(&stubRelayer{replies: []string{reply}}, WithTickInterval(time.Millisecond), WithGreeting(""))
	rec := &recorder{}
	v.Subscribe(rec.record)

	require.NoError(t, v.Submit(context.Background(), "Headache"))
	waitIdle(t, v)

	snaps := rec.ordered()
	require.NotEmpty(t, snaps)

	incremental := 0
	for _, s := range snaps {
		if !s.Revealing {
			continue
		}
		last, ok := s.Last()
		require.True(t, ok)
		require.Equal(t, RoleTyping, last.Role)
		require.Equal(t, s.Revealed, last.Content)
		require.True(t, strings.HasPrefix(reply, s.Revealed))
		require.Equal(t, n, s.Total)
		if s.Cursor > 0 {
			incremental++
			require.Equal(t, s.Cursor, utf8.RuneCountInString(s.Revealed))
		}
	}
	require.Equal(t, n, incremental)

	final := snaps[len(snaps)-1]
	last, _ := final.Last()
	require.Equal(t, Message{Role: RoleAssistant, Content: reply}, last)
	require.False(t, final.Revealing)
}

func TestView_ThinkingEntryWhileRelaying(t *testing.T) {
	relay := &stubRelayer{replies: []string{"ok"}, block: make(chan struct{}), started: make(chan string, 1)}
	v := NewView(relay, WithTickInterval(time.Millisecond), WithGreeting(""))

	done := make(chan error, 1)
	go func() { done <- v.Submit(context.Background(), "Checkup") }()
	<-relay.started

	snap := v.Snapshot()
	require.True(t, snap.Loading)
	require.Equal(t, []Message{
		{Role: RoleUser, Content: "Checkup"},
		{Role: RoleThinking},
	}, snap.Messages)

	close(relay.block)
	require.NoError(t, <-done)
	waitIdle(t, v)

	last, _ := v.Snapshot().Last()
	require.Equal(t, Message{Role: RoleAssistant, Content: "ok"}, last)
}

func TestView_RelayFailureShowsApology(t *testing.T) {
	relay := &stubRelayer{err: errors.New("quota exceeded")}
	v := NewView(relay, WithGreeting(""), WithApology("sorry"))

	err := v.Submit(context.Background(), "Dentist")
	require.ErrorIs(t, err, ErrRelayFailed)
	require.ErrorContains(t, err, "quota exceeded")

	snap := v.Snapshot()
	require.Equal(t, []Message{
		{Role: RoleUser, Content: "Dentist"},
		{Role: RoleAssistant, Content: "sorry"},
	}, snap.Messages)
	require.False(t, snap.Loading)
	require.False(t, snap.Revealing)
	waitIdle(t, v)
}

func TestView_RejectsBlankInput(t *testing.T) {
	relay := &stubRelayer{}
	v := NewView(relay)

	require.ErrorIs(t, v.Submit(context.Background(), "   \t"), ErrEmptyMessage)
	require.Zero(t, relay.callCount())
	require.Len(t, v.Snapshot().Messages, 1)
}

func TestView_RejectsSubmissionWhileLoading(t *testing.T) {
	relay := &stubRelayer{replies: []string{"first"}, block: make(chan struct{}), started: make(chan string, 1)}
	v := NewView(relay, WithTickInterval(time.Millisecond), WithGreeting(""))

	done := make(chan error, 1)
	go func() { done <- v.Submit(context.Background(), "Treat") }()
	<-relay.started

	require.ErrorIs(t, v.Submit(context.Background(), "Ask"), ErrBusy)
	require.Equal(t, 1, relay.callCount())

	close(relay.block)
	require.NoError(t, <-done)
	waitIdle(t, v)

	users := 0
	for _, m := range v.Snapshot().Messages {
		if m.Role == RoleUser {
			users++
		}
	}
	require.Equal(t, 1, users)
}

func TestView_SubmissionSupersedesRunningReveal(t *testing.T) {
	relay := &stubRelayer{replies: []string{"alpha reply", "beta reply"}}
	v := NewView(relay, WithTickInterval(time.Hour), WithGreeting(""))

	require.NoError(t, v.Submit(context.Background(), "first"))
	require.True(t, v.Snapshot().Revealing)

	require.NoError(t, v.Submit(context.Background(), "second"))

	snap := v.Snapshot()
	require.Equal(t, []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "alpha reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleTyping},
	}, snap.Messages)
	require.True(t, snap.Revealing)
	require.Equal(t, len("beta reply"), snap.Total)

	v.Close()
	last, _ := v.Snapshot().Last()
	require.Equal(t, Message{Role: RoleAssistant, Content: "beta reply"}, last)
	waitIdle(t, v)
}

func TestView_SeqStrictlyIncreases(t *testing.T) {
	v := NewView(&stubRelayer{replies: []string{"abc", "de"}}, WithTickInterval(time.Millisecond))
	rec := &recorder{}
	v.Subscribe(rec.record)

	require.NoError(t, v.Submit(context.Background(), "one"))
	waitIdle(t, v)
	require.NoError(t, v.Submit(context.Background(), "two"))
	waitIdle(t, v)

	snaps := rec.ordered()
	for i := 1; i < len(snaps); i++ {
		require.Greater(t, snaps[i].Seq, snaps[i-1].Seq)
	}
	require.Equal(t, snaps[len(snaps)-1].Seq, v.Snapshot().Seq)
}

func TestView_EmptyReplyCommitsOnFirstTick(t *testing.T) {
	v := NewView(&stubRelayer{replies: []string{""}}, WithTickInterval(time.Millisecond), WithGreeting(""))

	require.NoError(t, v.Submit(context.Background(), "Tools"))
	waitIdle(t, v)

	last, _ := v.Snapshot().Last()
	require.Equal(t, Message{Role: RoleAssistant}, last)
}

func TestView_WaitIdleHonorsContext(t *testing.T) {
	relay := &stubRelayer{block: make(chan struct{}), started: make(chan string, 1)}
	v := NewView(relay)

	done := make(chan error, 1)
	go func() { done <- v.Submit(context.Background(), "Coaches") }()
	<-relay.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, v.WaitIdle(ctx), context.DeadlineExceeded)

	close(relay.block)
	require.NoError(t, <-done)
	v.Close()
	waitIdle(t, v)
}

func TestView_Unsubscribe(t *testing.T) {
	v := NewView(&stubRelayer{err: errors.New("down")})
	rec := &recorder{}
	unsubscribe := v.Subscribe(rec.record)
	unsubscribe()

	_ = v.Submit(context.Background(), "Interpret")
	require.Empty(t, rec.ordered())
}

func TestView_ClosedRejectsSubmissions(t *testing.T) {
	relay := &stubRelayer{}
	v := NewView(relay)
	v.Close()
	v.Close()

	require.ErrorIs(t, v.Submit(context.Background(), "Headache"), ErrClosed)
	require.Zero(t, relay.callCount())
}
