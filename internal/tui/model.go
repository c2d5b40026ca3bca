// Package tui is a terminal chat client for the backend.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rag-backend/internal/domain"
	"rag-backend/internal/textutil"
)

// Backend is the set of backend calls the TUI needs.
type Backend interface {
	Ask(ctx context.Context, query string) (domain.Answer, error)
	Search(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error)
}

const (
	searchCommand = "/search"
	searchTopK    = 5
)

type answerMsg struct {
	kind   string
	query  string
	answer domain.Answer
	err    error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	backend   Backend
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	answer    string
	sources   []string
	banner    string
	status    string
	cursor    int
	ready     bool
	pending   bool
	lastQuery string
}

// New creates the model. banner is shown under the title, e.g. the backend
// URL and upload results.
func New(backend Backend, banner string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question (or /search <terms>) and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{backend: backend, timeout: timeout, input: ti, viewport: vp, banner: banner, status: "Ready."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // title+banner, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.render())
		return m, nil
	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer, m.sources = "", nil
		} else {
			m.status = fmt.Sprintf("%s for %q (%d sources)", msg.kind, msg.query, len(msg.answer.Sources))
			m.answer = msg.answer.Text
			m.sources = msg.answer.Sources
			m.lastQuery = msg.query
		}
		m.cursor = 0
		m.viewport.SetContent(m.render())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				break
			}
			terms, isSearch := strings.CutPrefix(q, searchCommand)
			if isSearch && (terms == "" || terms[0] == ' ') {
				terms = strings.TrimSpace(terms)
				if terms == "" {
					m.status = "Usage: " + searchCommand + " <terms>"
					return m, nil
				}
				m.pending = true
				m.status = "Searching..."
				m.input.SetValue("")
				return m, m.search(terms)
			}
			m.pending = true
			m.status = "Thinking..."
			m.input.SetValue("")
			return m, m.ask(q)
		case "down":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(query string) tea.Cmd {
	backend, timeout := m.backend, m.timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		ans, err := backend.Ask(ctx, query)
		return answerMsg{kind: "Answer", query: query, answer: ans, err: err}
	}
}

// search shows the nearest chunks without generating an answer.
func (m Model) search(query string) tea.Cmd {
	backend, timeout := m.backend, m.timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		docs, err := backend.Search(ctx, query, searchTopK)
		if err != nil {
			return answerMsg{kind: "Search", query: query, err: err}
		}
		ans := domain.Answer{Text: "No matching chunks.", Sources: make([]string, len(docs))}
		if len(docs) > 0 {
			ans.Text = fmt.Sprintf("%d matching chunks, best similarity %.3f.", len(docs), docs[0].Score)
		}
		for i, d := range docs {
			ans.Sources[i] = fmt.Sprintf("%s (%.3f): %s", d.Source(), d.Score, d.Text)
		}
		return answerMsg{kind: "Search", query: query, answer: ans}
	}
}

func withTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	banner := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.banner)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + banner + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.answer == "" {
		return "No answer yet."
	}
	var sb strings.Builder
	sb.WriteString(m.answer)
	if len(m.sources) == 0 {
		return sb.String()
	}
	src, snippet, ok := strings.Cut(m.sources[m.cursor], ": ")
	if !ok {
		src, snippet = "", m.sources[m.cursor]
	}
	fmt.Fprintf(&sb, "\n\n%s\n", sourceTitleStyle.Render(fmt.Sprintf("Source %d/%d  %s", m.cursor+1, len(m.sources), src)))
	sb.WriteString(highlightBestSentence(snippet, m.lastQuery))
	return sb.String()
}

var (
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

// highlightBestSentence emphasises the sentence sharing the most
// non-stopword tokens with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := textutil.SplitSentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		if i == bestIdx {
			out[i] = highlightStyle.Render(s)
		} else {
			out[i] = s
		}
	}
	return strings.Join(out, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := textutil.Tokenize(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range textutil.Tokenize(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
