package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/a-h/chatrelay/chat"
	"github.com/a-h/chatrelay/models"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type ChatCommand struct {
	ClientFlags `embed:""`
	LogFile     string `help:"A file to write logs to. The terminal is used by the chat, so logs are discarded by default." env:"LOG_FILE" default:""`
	LogLevel    string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ChatCommand) Run(ctx context.Context) (err error) {
	var w io.Writer = io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		w = f
	}
	log := newLogger(w, c.LogLevel)

	updates := newLatestSnapshot()
	session, s, err := c.openSession(ctx, log, c.transport(), updates.publish)
	if err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(newModel(ctx, log, session, updates), tea.WithContext(ctx))
	if _, err = p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// latestSnapshot holds the newest snapshot that the UI has not yet seen. Publishing
// never blocks, older unseen snapshots are replaced.
type latestSnapshot struct {
	mu sync.Mutex
	ch chan chat.Snapshot
}

func newLatestSnapshot() *latestSnapshot {
	return &latestSnapshot{ch: make(chan chat.Snapshot, 1)}
}

func (l *latestSnapshot) publish(s chat.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case old := <-l.ch:
		if old.Version > s.Version {
			s = old
		}
	default:
	}
	l.ch <- s
}

// Dracula color scheme.
var (
	Background  = lipgloss.Color("#282a36")
	CurrentLine = lipgloss.Color("#44475a")
	Comment     = lipgloss.Color("#6272a4")
	Cyan        = lipgloss.Color("#8be9fd")
	Pink        = lipgloss.Color("#ff79c6")
	Purple      = lipgloss.Color("#bd93f9")
	Red         = lipgloss.Color("#ff5555")
)

var headerStyle = lipgloss.NewStyle().Background(CurrentLine).Foreground(Purple).Bold(true).Margin(10).Padding(1).PaddingTop(0)

var header = `
 _______  __   __  _______  _______ 
|       ||  | |  ||   _   ||       |
|       ||  |_|  ||  |_|  ||_     _|
|       ||       ||       |  |   |  
|      _||       ||       |  |   |  
|     |_ |   _   ||   _   |  |   |  
|_______||__| |__||__| |__|  |___|  
`

var (
	errorStyle  = lipgloss.NewStyle().Foreground(Red).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(Comment).Padding(0, 1)
)

type model struct {
	viewport viewport.Model
	textarea textarea.Model
	ctx      context.Context
	log      *slog.Logger

	session *chat.Session
	updates *latestSnapshot
	snap    chat.Snapshot
}

// sendResult is the outcome of a send or new chat, once it has finished.
type sendResult struct {
	err error
}

func newModel(ctx context.Context, log *slog.Logger, session *chat.Session, updates *latestSnapshot) model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 2000

	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)

	ta.KeyMap.InsertNewline.SetEnabled(false)

	m := model{
		ctx:      ctx,
		log:      log,
		textarea: ta,
		viewport: vp,
		session:  session,
		updates:  updates,
		snap:     session.Snapshot(),
	}
	m.viewport.SetContent(m.renderMessages())
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.subscribe(),
	)
}

func (m model) subscribe() tea.Cmd {
	return func() tea.Msg {
		select {
		case x := <-m.updates.ch:
			return x
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m model) send(text string) tea.Cmd {
	return func() tea.Msg {
		return sendResult{err: m.session.Send(m.ctx, text)}
	}
}

func (m model) newChat() tea.Cmd {
	return func() tea.Msg {
		return sendResult{err: m.session.NewChat(m.ctx)}
	}
}

var senderToStyle = map[models.Sender]lipgloss.Style{
	models.SenderUser: lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Pink),
	models.SenderBot:  lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Cyan),
}

var senderToIcon = map[models.Sender]string{
	models.SenderUser: "🥷",
	models.SenderBot:  "✨",
}

func formatMessage(msg models.Message, width int) string {
	style, ok := senderToStyle[msg.Sender]
	if !ok {
		return msg.Text
	}
	icon, ok := senderToIcon[msg.Sender]
	if !ok {
		icon = "🤷"
	}
	wrapped := wordwrap.String(strings.TrimSpace(icon+" "+msg.Text), width)
	return style.Render(wrapped)
}

func (m model) renderMessages() string {
	if len(m.snap.Messages) == 0 {
		return headerStyle.Render(header)
	}
	width := min(max(m.viewport.Width-6, 20), 80)
	var sb strings.Builder
	for _, msg := range m.snap.Messages {
		sb.WriteString(formatMessage(msg, width))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case chat.Snapshot:
		if msg.Version >= m.snap.Version {
			m.snap = msg
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
			if m.snap.Sending {
				m.textarea.Blur()
			} else {
				m.textarea.Focus()
			}
		}
		return m, m.subscribe()
	case sendResult:
		if msg.err != nil && !errors.Is(msg.err, chat.ErrSendInProgress) && !errors.Is(msg.err, chat.ErrBlankMessage) {
			m.log.Debug("send finished with error", slog.Any("error", msg.err))
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 4
		m.textarea.SetWidth(msg.Width)
		m.viewport.SetContent(m.renderMessages())
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "ctrl+n":
			return m, m.newChat()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		if m.snap.Sending {
			// Input is disabled until the reply ends.
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			v := m.textarea.Value()
			if strings.TrimSpace(v) == "" {
				return m, nil
			}
			m.textarea.Reset()
			// Disable input straight away, the snapshot from the session follows.
			m.snap.Sending = true
			m.textarea.Blur()
			return m, m.send(v)
		}
		// Send all other keypresses to the textarea.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	case cursor.BlinkMsg:
		// Textarea should also process cursor blinks.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m model) status() string {
	switch {
	case m.snap.Err != "":
		return errorStyle.Render(m.snap.Err)
	case m.snap.Sending:
		return statusStyle.Render("Waiting for reply...")
	}
	return statusStyle.Render("enter: send • ctrl+n: new chat • esc: quit")
}

func (m model) View() string {
	return fmt.Sprintf("%s\n%s\n\n%s",
		m.viewport.View(),
		m.status(),
		m.textarea.View(),
	) + "\n\n"
}
