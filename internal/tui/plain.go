package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"doctorwang-backend/internal/conversation"
)

// RunPlain drives the view from line-oriented input, for pipes and dumb
// terminals. Each non-blank line is submitted and the reply is written to out
// as it is revealed.
func RunPlain(ctx context.Context, view *conversation.View, assistantName string, in io.Reader, out io.Writer) error {
	p := &linePrinter{out: out, name: assistantName, active: -1, done: -1}
	unsubscribe := view.Subscribe(p.observe)
	defer unsubscribe()

	p.observe(view.Snapshot())

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		err := view.Submit(ctx, line)
		switch {
		case err == nil:
		case errors.Is(err, conversation.ErrRelayFailed):
			log.Warn().Err(err).Msg("Relay call failed")
		default:
			return err
		}

		if err := view.WaitIdle(ctx); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// linePrinter writes the assistant entries of successive snapshots. Only
// runes not yet printed are written, so a reveal shows up incrementally.
type linePrinter struct {
	mu      sync.Mutex
	out     io.Writer
	name    string
	seen    bool
	lastSeq uint64
	active  int // index of the entry being revealed
	printed int // runes of the active entry already written
	done    int // highest index fully written
}

func (p *linePrinter) observe(snap conversation.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen && snap.Seq <= p.lastSeq {
		return
	}
	p.seen, p.lastSeq = true, snap.Seq

	last, ok := snap.Last()
	if !ok {
		return
	}
	idx := len(snap.Messages) - 1

	switch last.Role {
	case conversation.RoleTyping:
		if p.active != idx {
			p.active, p.printed = idx, 0
			fmt.Fprintf(p.out, "%s: ", p.name)
		}
		p.writeFrom(last.Content)

	case conversation.RoleAssistant:
		if p.active == idx {
			p.writeFrom(last.Content)
			fmt.Fprintln(p.out)
			p.active, p.done = -1, idx
			return
		}
		if idx > p.done {
			fmt.Fprintf(p.out, "%s: %s\n", p.name, last.Content)
			p.done = idx
		}
	}
}

func (p *linePrinter) writeFrom(content string) {
	runes := []rune(content)
	if p.printed >= len(runes) {
		return
	}
	fmt.Fprint(p.out, string(runes[p.printed:]))
	p.printed = len(runes)
}
