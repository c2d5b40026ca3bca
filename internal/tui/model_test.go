package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/domain"
)

type stubBackend struct {
	answer domain.Answer
	docs   []domain.RetrievedDocument
	err    error
	got    string
	topK   int
}

func (s *stubBackend) Ask(_ context.Context, q string) (domain.Answer, error) {
	s.got = q
	return s.answer, s.err
}

func (s *stubBackend) Search(_ context.Context, q string, topK int) ([]domain.RetrievedDocument, error) {
	s.got, s.topK = q, topK
	return s.docs, s.err
}

func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestEnterAsksAsynchronously(t *testing.T) {
	asker := &stubBackend{answer: domain.Answer{
		Text:    "Refunds take thirty days.",
		Sources: []string{"policy.pdf: Shipping is free. Refunds are issued within thirty days.", "faq.pdf: Contact support."},
	}}
	m := New(asker, "http://localhost:8000", 0)
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m.input.SetValue("  how long do refunds take  ")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.pending)
	assert.Empty(t, asker.got, "the backend is called from the command, not from Update")

	msg := cmd()
	assert.Equal(t, "how long do refunds take", asker.got)
	m, _ = press(t, m, msg)
	assert.False(t, m.pending)
	assert.Equal(t, "Refunds take thirty days.", m.answer)
	assert.Equal(t, `Answer for "how long do refunds take" (2 sources)`, m.status)
	assert.Len(t, m.sources, 2)

	out := m.render()
	assert.Contains(t, out, "Source 1/2  policy.pdf")
	assert.Contains(t, out, "Refunds are issued within thirty days.")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, m.cursor)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.render(), "faq.pdf")
}

func TestAskErrorShownInStatus(t *testing.T) {
	m := New(&stubBackend{err: errors.New("backend returned 502")}, "", 0)
	m, _ = press(t, m, answerMsg{query: "q", err: errors.New("backend returned 502")})
	assert.Equal(t, "Error: backend returned 502", m.status)
	assert.Equal(t, "No answer yet.", m.render())
}

func TestSearchCommandListsChunks(t *testing.T) {
	backend := &stubBackend{docs: []domain.RetrievedDocument{
		{Text: "Refunds are issued within thirty days.", Metadata: map[string]any{"source": "policy.pdf"}, Score: 0.8123},
		{Text: "Contact support.", Metadata: map[string]any{"source": "faq.pdf"}, Score: 0.2},
	}}
	m := New(backend, "", 0)
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m.input.SetValue("/search  refund window ")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, "Searching...", m.status)

	m, _ = press(t, m, cmd())
	assert.Equal(t, "refund window", backend.got)
	assert.Equal(t, searchTopK, backend.topK)
	assert.Equal(t, `Search for "refund window" (2 sources)`, m.status)
	assert.Equal(t, "2 matching chunks, best similarity 0.812.", m.answer)
	assert.Contains(t, m.render(), "Source 1/2  policy.pdf (0.812)")

	m.input.SetValue("/search")
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "Usage: /search <terms>", m.status)
}

func TestSearchCommandNoMatches(t *testing.T) {
	m := New(&stubBackend{}, "", 0)
	m.input.SetValue("/search nothing")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = press(t, m, cmd())
	assert.Equal(t, "No matching chunks.", m.answer)
	assert.Empty(t, m.sources)
}

func TestSlashPrefixedQuestionIsAsked(t *testing.T) {
	backend := &stubBackend{answer: domain.Answer{Text: "ok"}}
	m := New(backend, "", 0)
	m.input.SetValue("/searching for meaning")
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, "/searching for meaning", backend.got)
	assert.Zero(t, backend.topK)
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Shipping is free above fifty euros. Refunds are issued within thirty days."
	out := highlightBestSentence(text, "refunds days")
	assert.Contains(t, out, "Shipping is free above fifty euros.")
	assert.Contains(t, out, "Refunds are issued within thirty days.")

	assert.Equal(t, 0, tokenOverlapScore(toTokenSet("the of and"), "the cat and the hat"))
	assert.Equal(t, 1, tokenOverlapScore(toTokenSet("refunds"), "Refunds refunds refunds"))
	assert.Equal(t, "", highlightBestSentence("", "q"))
}
