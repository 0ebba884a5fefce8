package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"doctorwang-backend/internal/conversation"
)

type snapshotMsg struct{ snap conversation.Snapshot }

// snapshotFeed keeps only the newest snapshot published by a view. Listeners
// run on several goroutines, so older sequence numbers are discarded here
// instead of being queued behind newer ones.
type snapshotFeed struct {
	mu     sync.Mutex
	latest conversation.Snapshot
	has    bool
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (f *snapshotFeed) push(snap conversation.Snapshot) {
	f.mu.Lock()
	if !f.has || snap.Seq > f.latest.Seq {
		f.latest, f.has = snap, true
	}
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *snapshotFeed) close() {
	f.once.Do(func() { close(f.done) })
}

// wait converts the feed into a Tea command delivering one snapshot.
func (f *snapshotFeed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.done:
			return nil
		case <-f.notify:
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		return snapshotMsg{snap: f.latest}
	}
}
