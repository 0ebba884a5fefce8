package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"doctorwang-backend/internal/conversation"
)

// Style definitions
var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

const typingCursor = "▌"

// transcript turns the message list into terminal text. Committed assistant
// entries go through the markdown renderer; their output is cached because
// the list is redrawn on every reveal tick.
type transcript struct {
	assistantName string
	markdown      func(string) string
	cache         map[string]string
}

func newTranscript(assistantName string, markdown func(string) string) *transcript {
	if markdown == nil {
		markdown = func(s string) string { return s }
	}
	return &transcript{
		assistantName: assistantName,
		markdown:      markdown,
		cache:         make(map[string]string),
	}
}

// glamourMarkdown builds a markdown renderer wrapped at width. It falls back
// to raw text when glamour cannot be set up or fails on an input.
func glamourMarkdown(width int) func(string) string {
	if width < 20 {
		width = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return func(s string) string {
		out, err := renderer.Render(s)
		if err != nil {
			return s
		}
		return strings.Trim(out, "\n")
	}
}

func (t *transcript) render(messages []conversation.Message, spinnerView string) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case conversation.RoleUser:
			b.WriteString(boldStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
		case conversation.RoleThinking:
			b.WriteString(dimStyle.Render(strings.TrimSpace(spinnerView + " " + t.assistantName + " is thinking...")))
		case conversation.RoleTyping:
			b.WriteString(accentStyle.Render(t.assistantName))
			b.WriteString("\n")
			b.WriteString(msg.Content)
			b.WriteString(typingCursor)
		default:
			b.WriteString(accentStyle.Render(t.assistantName))
			b.WriteString("\n")
			b.WriteString(t.rendered(msg.Content))
		}
	}
	return b.String()
}

func (t *transcript) rendered(content string) string {
	if out, ok := t.cache[content]; ok {
		return out
	}
	out := t.markdown(content)
	t.cache[content] = out
	return out
}
