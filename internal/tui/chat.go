package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"support-chat/internal/models"
	"support-chat/internal/widget"
)

// UI configuration constants
const (
	defaultWidth         = 80
	defaultHeight        = 24
	inputCharLimit       = 4000
	inputHeightReserved  = 2
	statusHeightReserved = 2
	minContentHeight     = 5
	chunkBuffer          = 16
)

var (
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	userBubble     = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)
)

// Streamer sends a conversation and delivers the reply bytes in order.
type Streamer interface {
	Stream(ctx context.Context, history []models.ChatMessage, onChunk func([]byte)) error
}

// Message type definitions
type (
	streamInitMsg struct {
		chunkCh <-chan []byte
		errCh   <-chan error
	}
	streamChunkMsg struct{ chunk []byte }
	streamErrMsg   struct{ err error }
	streamDoneMsg  struct{}
)

// Model is the bubbletea model for the support chat window.
type Model struct {
	client Streamer
	title  string

	chat        *widget.Widget
	input       textinput.Model
	contentView viewport.Model
	renderer    *glamour.TermRenderer

	ctx    context.Context
	cancel context.CancelFunc

	chunkCh <-chan []byte
	errCh   <-chan error
	lastErr error

	width  int
	height int
}

// New builds the model. Cancelling ctx, or quitting, aborts any reply in
// flight.
func New(ctx context.Context, client Streamer, title string) *Model {
	input := textinput.New()
	input.Placeholder = "Type your message..."
	input.Focus()
	input.CharLimit = inputCharLimit
	input.Width = defaultWidth - 3
	input.Prompt = ""

	ctx, cancel := context.WithCancel(ctx)
	m := &Model{
		client:      client,
		title:       title,
		input:       input,
		contentView: viewport.New(defaultWidth, defaultHeight-inputHeightReserved-statusHeightReserved),
		ctx:         ctx,
		cancel:      cancel,
		width:       defaultWidth,
		height:      defaultHeight,
	}
	m.renderer = newRenderer(defaultWidth)
	m.chat = widget.New(widget.WithOnChange(m.render))
	m.render(m.chat.Messages())
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Messages returns the conversation as currently shown.
func (m *Model) Messages() []models.ChatMessage { return m.chat.Messages() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyPress(msg)...)

	case tea.WindowSizeMsg:
		m.handleWindowResize(msg)

	case streamInitMsg:
		m.chunkCh, m.errCh = msg.chunkCh, msg.errCh
		cmds = append(cmds, waitForChunk(m.chunkCh, m.errCh))

	case streamChunkMsg:
		m.chat.AppendChunk(msg.chunk)
		cmds = append(cmds, waitForChunk(m.chunkCh, m.errCh))

	case streamErrMsg:
		m.lastErr = msg.err
		m.chunkCh, m.errCh = nil, nil
		m.chat.Fail()

	case streamDoneMsg:
		m.chunkCh, m.errCh = nil, nil
		m.chat.Finish()
	}

	// The input is frozen while a reply streams.
	if !m.chat.IsLoading() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) []tea.Cmd {
	var cmds []tea.Cmd

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.cancel()
		cmds = append(cmds, tea.Quit)

	case tea.KeyEnter:
		history, ok := m.chat.Submit(m.input.Value())
		if ok {
			m.input.Reset()
			m.lastErr = nil
			cmds = append(cmds, m.startStream(history))
		}

	case tea.KeyUp:
		m.contentView.LineUp(1)

	case tea.KeyDown:
		m.contentView.LineDown(1)

	case tea.KeyPgUp:
		m.contentView.ViewUp()

	case tea.KeyPgDown:
		m.contentView.ViewDown()
	}

	return cmds
}

func (m *Model) handleWindowResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	contentHeight := msg.Height - inputHeightReserved - statusHeightReserved
	if contentHeight < minContentHeight {
		contentHeight = minContentHeight
	}

	m.contentView.Width = msg.Width
	m.contentView.Height = contentHeight
	m.input.Width = msg.Width - 3
	m.renderer = newRenderer(msg.Width)

	m.render(m.chat.Messages())
}

// startStream runs the request in its own goroutine. Chunks are delivered
// on chunkCh; the final error is sent on errCh before chunkCh is closed.
func (m *Model) startStream(history []models.ChatMessage) tea.Cmd {
	ctx := m.ctx
	client := m.client
	return func() tea.Msg {
		chunkCh := make(chan []byte, chunkBuffer)
		errCh := make(chan error, 1)

		go func() {
			err := client.Stream(ctx, history, func(p []byte) {
				chunk := append([]byte(nil), p...)
				select {
				case chunkCh <- chunk:
				case <-ctx.Done():
				}
			})
			errCh <- err
			close(chunkCh)
		}()

		return streamInitMsg{chunkCh: chunkCh, errCh: errCh}
	}
}

// waitForChunk drains chunkCh before reporting the outcome so no bytes are
// lost or reordered.
func waitForChunk(chunkCh <-chan []byte, errCh <-chan error) tea.Cmd {
	return func() tea.Msg {
		if chunk, ok := <-chunkCh; ok {
			return streamChunkMsg{chunk: chunk}
		}
		if err := <-errCh; err != nil {
			return streamErrMsg{err: err}
		}
		return streamDoneMsg{}
	}
}

// render redraws the transcript and scrolls to the newest message.
func (m *Model) render(messages []models.ChatMessage) {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case models.RoleUser:
			b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Right, userBubble.Render(msg.Content)))
			b.WriteString("\n")
		default:
			b.WriteString(assistantLabel.Render("Assistant"))
			b.WriteString("\n")
			if msg.Content == "" && m.chat != nil && m.chat.IsLoading() {
				b.WriteString(dimStyle.Render("…"))
				b.WriteString("\n")
				continue
			}
			b.WriteString(m.markdown(msg.Content))
			b.WriteString("\n")
		}
	}

	m.contentView.SetContent(b.String())
	m.contentView.GotoBottom()
}

func (m *Model) markdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func newRenderer(width int) *glamour.TermRenderer {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

func (m *Model) View() string {
	status := titleStyle.Render(m.title)
	if m.chat.IsLoading() {
		status += dimStyle.Render(" • typing...")
	} else if m.lastErr != nil {
		status += dimStyle.Render(fmt.Sprintf(" • last error: %v", m.lastErr))
	}

	var inputView string
	if m.chat.IsLoading() {
		inputView = dimStyle.Render("> waiting for reply...")
	} else {
		inputView = promptStyle.Render("> ") + m.input.View()
	}

	help := dimStyle.Render("Enter send • ↑↓ scroll • Esc quit")

	return lipgloss.JoinVertical(lipgloss.Left, status, m.contentView.View(), inputView, help)
}

// Run starts the full-screen program.
func Run(ctx context.Context, client Streamer, title string) error {
	m := New(ctx, client, title)
	defer m.cancel()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
