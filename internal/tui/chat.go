package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"doctorwang-backend/internal/conversation"
)

// UI configuration constants
const (
	defaultWidth      = 100
	defaultHeight     = 30
	inputCharLimit    = 4000
	reservedHeight    = 7
	minContentHeight  = 5
	markdownMarginCol = 4
)

// ChatProgram runs one conversation view in the terminal.
type ChatProgram struct {
	model chatModel
}

func NewChatProgram(ctx context.Context, view *conversation.View, assistantName string) *ChatProgram {
	return &ChatProgram{model: initialModel(ctx, view, assistantName)}
}

func (p *ChatProgram) Run() error {
	defer p.model.feed.close()
	defer p.model.unsubscribe()

	program := tea.NewProgram(p.model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type chatModel struct {
	ctx           context.Context
	view          *conversation.View
	assistantName string
	feed          *snapshotFeed
	unsubscribe   func()

	input      textinput.Model
	content    viewport.Model
	spinner    spinner.Model
	transcript *transcript

	snap      conversation.Snapshot
	presetIdx int
	status    string
	statusErr bool

	width  int
	height int
}

type submitDoneMsg struct{ err error }

func initialModel(ctx context.Context, view *conversation.View, assistantName string) chatModel {
	input := textinput.New()
	input.Placeholder = "Describe your health question..."
	input.Focus()
	input.CharLimit = inputCharLimit
	input.Width = defaultWidth - 3
	input.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = promptStyle

	feed := newSnapshotFeed()
	unsubscribe := view.Subscribe(feed.push)

	m := chatModel{
		ctx:           ctx,
		view:          view,
		assistantName: assistantName,
		feed:          feed,
		unsubscribe:   unsubscribe,
		input:         input,
		content:       viewport.New(defaultWidth, defaultHeight-reservedHeight),
		spinner:       sp,
		transcript:    newTranscript(assistantName, glamourMarkdown(defaultWidth-markdownMarginCol)),
		snap:          view.Snapshot(),
		presetIdx:     -1,
		width:         defaultWidth,
		height:        defaultHeight,
	}
	m.refreshContent()
	return m
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.feed.wait())
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		case tea.KeyTab:
			m.nextPreset()
			return m, nil
		case tea.KeyUp:
			m.content.LineUp(1)
			return m, nil
		case tea.KeyDown:
			m.content.LineDown(1)
			return m, nil
		case tea.KeyPgUp:
			m.content.ViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.content.ViewDown()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case snapshotMsg:
		m.applySnapshot(msg.snap)
		cmds = append(cmds, m.feed.wait())

	case submitDoneMsg:
		m.handleSubmitDone(msg.err)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if last, ok := m.snap.Last(); ok && last.Role == conversation.RoleThinking {
			m.refreshContent()
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit hands the input to the view. Blank input is ignored here and the
// view rejects a second submission while a relay call is outstanding.
func (m *chatModel) submit() tea.Cmd {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if m.snap.Loading {
		m.setStatus("Still waiting for the previous reply", true)
		return nil
	}

	m.input.Reset()
	m.presetIdx = -1
	m.setStatus("", false)

	view, ctx := m.view, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{err: view.Submit(ctx, text)}
	}
}

func (m *chatModel) handleSubmitDone(err error) {
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrBusy):
		m.setStatus("Still waiting for the previous reply", true)
	case errors.Is(err, conversation.ErrRelayFailed):
		m.setStatus("The assistant could not be reached", true)
	case errors.Is(err, conversation.ErrClosed):
		m.setStatus("Conversation closed", true)
	default:
		m.setStatus(err.Error(), true)
	}
}

// nextPreset cycles the preset questions into the input.
func (m *chatModel) nextPreset() {
	if len(conversation.PresetQuestions) == 0 {
		return
	}
	m.presetIdx = (m.presetIdx + 1) % len(conversation.PresetQuestions)
	m.input.SetValue(conversation.PresetQuestions[m.presetIdx])
	m.input.CursorEnd()
}

func (m *chatModel) applySnapshot(snap conversation.Snapshot) {
	if snap.Seq < m.snap.Seq {
		return
	}
	m.snap = snap
	m.refreshContent()
}

func (m *chatModel) setStatus(text string, isErr bool) {
	m.status, m.statusErr = text, isErr
}

func (m *chatModel) resize(width, height int) {
	m.width, m.height = width, height

	contentHeight := height - reservedHeight
	if contentHeight < minContentHeight {
		contentHeight = minContentHeight
	}
	m.content.Width = width
	m.content.Height = contentHeight
	m.input.Width = width - 3

	m.transcript = newTranscript(m.assistantName, glamourMarkdown(width-markdownMarginCol))
	m.refreshContent()
}

func (m *chatModel) refreshContent() {
	m.content.SetContent(m.transcript.render(m.snap.Messages, m.spinner.View()))
	m.content.GotoBottom()
}

func (m chatModel) View() string {
	header := headerStyle.Render(m.assistantName)
	switch {
	case m.snap.Loading:
		header += dimStyle.Render(" • thinking")
	case m.snap.Revealing:
		header += dimStyle.Render(fmt.Sprintf(" • %d/%d", m.snap.Cursor, m.snap.Total))
	}

	inputView := promptStyle.Render("> ") + m.input.View()
	if m.snap.Loading {
		inputView = dimStyle.Render("> ") + dimStyle.Render("Waiting for the reply...")
	}

	status := ""
	if m.status != "" {
		if m.statusErr {
			status = errorStyle.Render(m.status)
		} else {
			status = dimStyle.Render(m.status)
		}
	}

	help := dimStyle.Render("Enter send • Tab preset question • ↑↓ scroll • Esc quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, "", m.content.View(), "", inputView, status, help)
}
