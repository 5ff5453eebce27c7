// Package tui is the terminal chat interface. The user types a question, the
// reply streams into the transcript as it arrives, and failures show the
// fallback apology in place of the answer.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/pkg/session"
)

const (
	title       = "Chat Jurídico Brasileiro ⚖"
	subtitle    = "Faça perguntas sobre situações jurídicas e receba respostas baseadas na legislação brasileira."
	placeholder = "Digite sua pergunta aqui..."

	inputHeight = 3
	// title, subtitle, status line and the blank lines between them
	chromeHeight = 5
)

// Options tune the interface.
type Options struct {
	// Model is shown in the status line.
	Model string

	// GlamourStyle names a glamour standard style ("dark", "light", "ascii", "notty").
	GlamourStyle string

	Logger *zap.Logger
}

// failure is a reply that was shown but never committed. It is drawn after
// the user turn it answered.
type failure struct {
	partial string
	detail  string
}

type (
	replyStartedMsg struct{ reply *chat.Reply }
	submitFailedMsg struct{ err error }
	fragmentMsg     struct {
		reply *chat.Reply
		text  string
	}
	replyDoneMsg struct {
		reply *chat.Reply
		err   error
	}
)

// Model is the Bubble Tea model.
type Model struct {
	ctx    context.Context
	conv   *chat.Conversation
	opts   Options
	logger *zap.Logger

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	// asking is the question sent but not yet committed by Submit.
	asking   string
	failures map[string]failure
	reply    *chat.Reply
	pending  string
	waiting  bool

	width  int
	height int
	ready  bool
}

// New returns a model driving conv.
func New(ctx context.Context, conv *chat.Conversation, opts Options) Model {
	if opts.GlamourStyle == "" {
		opts.GlamourStyle = "dark"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		ctx:      ctx,
		conv:     conv,
		opts:     opts,
		logger:   opts.Logger,
		input:    ta,
		spinner:  sp,
		failures: make(map[string]failure),
	}
}

// Run starts the program on the alternate screen and blocks until the user quits.
func Run(ctx context.Context, conv *chat.Conversation, opts Options) error {
	p := tea.NewProgram(New(ctx, conv, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.reply != nil {
				_ = m.reply.Close()
				m.reply = nil
			}
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case replyStartedMsg:
		m.reply = msg.reply
		m.asking = ""
		m.refresh()
		return m, next(msg.reply)

	case fragmentMsg:
		// a reply closed on quit can still deliver one last message
		if msg.reply != m.reply {
			return m, nil
		}
		m.pending += msg.text
		m.refresh()
		return m, next(m.reply)

	case replyDoneMsg:
		if msg.reply != m.reply {
			return m, nil
		}
		m.finish(msg.reply.UserTurn().Hash, msg.err)
		return m, nil

	case submitFailedMsg:
		// Submit commits the user turn before generating
		var userHash string
		if last, ok := m.conv.Store().Last(); ok && last.Role == session.RoleUser {
			userHash = last.Hash
		}
		m.finish(userHash, msg.err)
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.waiting {
		return m, nil
	}
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}

	m.input.Reset()
	m.asking = question
	m.waiting = true
	m.pending = ""
	m.refresh()

	ctx, conv := m.ctx, m.conv
	submit := func() tea.Msg {
		reply, err := conv.Submit(ctx, question)
		if err != nil {
			return submitFailedMsg{err: err}
		}
		return replyStartedMsg{reply: reply}
	}
	return m, tea.Batch(submit, m.spinner.Tick)
}

// next pulls one fragment from reply.
func next(reply *chat.Reply) tea.Cmd {
	return func() tea.Msg {
		if reply.Next() {
			return fragmentMsg{reply: reply, text: reply.Fragment()}
		}
		return replyDoneMsg{reply: reply, err: reply.Err()}
	}
}

// finish settles the pending reply. Successful replies are already in the
// store; failed ones are remembered against the user turn they answered.
func (m *Model) finish(userHash string, err error) {
	if err != nil {
		m.logger.Warn("reply failed", zap.Error(err))
		m.failures[userHash] = failure{partial: m.pending, detail: err.Error()}
	}
	m.waiting = false
	m.reply = nil
	m.asking = ""
	m.pending = ""
	m.refresh()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	vpHeight := max(height-inputHeight-chromeHeight, 1)
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(width)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.opts.GlamourStyle),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", zap.Error(err))
		r = nil
	}
	m.renderer = r
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

// transcript draws the committed turns from the store, each failed reply
// after the question it answered, then the reply in progress.
func (m Model) transcript() string {
	var b strings.Builder
	for _, t := range m.conv.Store().All() {
		if t.Role == session.RoleUser {
			m.writeUser(&b, t.Content)
			if f, ok := m.failures[t.Hash]; ok {
				m.writeFailure(&b, f)
			}
			continue
		}
		m.writeAssistantLabel(&b)
		b.WriteString(m.markdown(t.Content))
		b.WriteString("\n")
	}
	if f, ok := m.failures[""]; ok {
		m.writeFailure(&b, f)
	}

	if m.waiting {
		if m.asking != "" {
			m.writeUser(&b, m.asking)
		}
		m.writeAssistantLabel(&b)
		if m.pending != "" {
			b.WriteString(m.markdown(m.pending))
		}
	}
	return b.String()
}

func (m Model) writeUser(b *strings.Builder, text string) {
	b.WriteString(userLabelStyle.Render("Você"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(text))
	b.WriteString("\n\n")
}

func (m Model) writeAssistantLabel(b *strings.Builder) {
	b.WriteString(assistantLabelStyle.Render("Assistente"))
	b.WriteString("\n")
}

func (m Model) writeFailure(b *strings.Builder, f failure) {
	m.writeAssistantLabel(b)
	if f.partial != "" {
		b.WriteString(m.markdown(f.partial))
	}
	b.WriteString(errorStyle.Render(chat.FallbackReply))
	b.WriteString("\n")
	b.WriteString(errorStyle.Render(f.detail))
	b.WriteString("\n\n")
}

func (m Model) markdown(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (m Model) status() string {
	var s string
	if m.waiting {
		s = m.spinner.View() + " gerando resposta..."
	} else {
		s = fmt.Sprintf("modelo %s · %d turnos · enter envia · esc sai", m.opts.Model, m.conv.Store().Len())
	}
	return statusStyle.Render(ansi.Truncate(s, max(m.width, 1), "…"))
}

func (m Model) View() string {
	if !m.ready {
		return "Inicializando..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		subtitleStyle.Render(ansi.Truncate(subtitle, max(m.width-2, 1), "…")),
		m.viewport.View(),
		m.status(),
		m.input.View(),
	)
}
