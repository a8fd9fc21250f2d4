// Package tui is the interactive chat surface. One question is in
// flight at a time; asking again supersedes the previous question.
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

	"sahayak/internal/adapter/analyzer"
	"sahayak/internal/domain"
	"sahayak/internal/port"
)

// AnswerService is the TUI-facing subset of the question flow.
type AnswerService interface {
	Answer(ctx context.Context, question string) (domain.Answer, error)
}

type exchange struct {
	question string
	answer   domain.Answer
	pending  bool
}

type answerMsg struct {
	id     int
	answer domain.Answer
	err    error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	service  AnswerService
	detector port.LanguageDetector

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	history  []exchange
	status   string
	thinking bool
	ready    bool

	// queryID stamps each in-flight question so answers arriving after
	// a supersede are dropped.
	queryID int
	cancel  context.CancelFunc
}

func New(service AnswerService, detector port.LanguageDetector) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "अपना प्रश्न यहाँ लिखें / Type your question"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		detector: detector,
		input:    ti,
		viewport: vp,
		spin:     sp,
		status:   "Ask a question. Ctrl+C quits, Esc cancels.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.cancelInflight()
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			return m.startQuery(q)
		case "esc":
			if m.thinking {
				m.cancelInflight()
				m.thinking = false
				m.dropPending()
				m.status = "Canceled."
				m.viewport.SetContent(m.renderHistory())
			}
			return m, nil
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}

	case answerMsg:
		if msg.id != m.queryID {
			// A newer question took over while this one was running.
			return m, nil
		}
		m.thinking = false
		m.cancel = nil
		if msg.err != nil {
			m.dropPending()
			m.viewport.SetContent(m.renderHistory())
			if !errors.Is(msg.err, context.Canceled) {
				m.status = "Error: " + msg.err.Error()
			}
			return m, nil
		}
		if n := len(m.history); n > 0 && m.history[n-1].pending {
			m.history[n-1].answer = msg.answer
			m.history[n-1].pending = false
		}
		m.status = fmt.Sprintf("%s: %s", analyzer.MessagesFor(msg.answer.Language).Language, msg.answer.Language)
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startQuery cancels any in-flight question and launches a new one.
// A superseded question disappears from the transcript along with its
// never-to-arrive answer.
func (m Model) startQuery(question string) (Model, tea.Cmd) {
	m.cancelInflight()
	m.dropPending()
	m.queryID++

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.thinking = true
	m.status = analyzer.MessagesFor(m.detector.Detect(question)).Thinking
	m.history = append(m.history, exchange{question: question, pending: true})
	m.input.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()

	id := m.queryID
	service := m.service
	fetch := func() tea.Msg {
		answer, err := service.Answer(ctx, question)
		return answerMsg{id: id, answer: answer, err: err}
	}
	return m, tea.Batch(m.spin.Tick, fetch)
}

func (m *Model) cancelInflight() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) dropPending() {
	if n := len(m.history); n > 0 && m.history[n-1].pending {
		m.history = m.history[:n-1]
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("सहायक · Sahayak")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := m.status
	if m.thinking {
		status = m.spin.View() + " " + status
	}
	return header + "\n" + transcript + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "No questions yet. / अभी तक कोई प्रश्न नहीं।"
	}
	width := m.viewport.Width - 2
	if width < 20 {
		width = 20
	}
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("> " + ex.question))
		b.WriteString("\n")
		if ex.pending {
			b.WriteString(pendingStyle.Render("..."))
			continue
		}
		b.WriteString(lipgloss.NewStyle().Width(width).Render(ex.answer.Text))
		if len(ex.answer.CitedChunks) > 0 {
			refs := make([]string, 0, len(ex.answer.CitedChunks))
			for _, c := range ex.answer.CitedChunks {
				refs = append(refs, fmt.Sprintf("%s#%d", c.SourceFilename, c.Chunk.SequenceIndex))
			}
			label := analyzer.MessagesFor(ex.answer.Language).Sources
			b.WriteString("\n")
			b.WriteString(sourceStyle.Render(label + ": " + strings.Join(refs, ", ")))
		}
	}
	return b.String()
}

// Run starts the chat over the given service and blocks until exit.
func Run(service AnswerService, detector port.LanguageDetector) error {
	p := tea.NewProgram(New(service, detector), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pendingStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
