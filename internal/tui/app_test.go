package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendermap/internal/app"
	"sendermap/internal/cache"
	"sendermap/internal/ingest"
	"sendermap/internal/model"
	"sendermap/internal/store"
)

var testSenders = []model.Sender{
	{ID: "c@z.com", Name: "c@z.com", Size: 1, Domain: "z.com"},
	{ID: "a@x.com", Name: "a@x.com", Size: 10, Domain: "x.com"},
	{ID: "b@y.com", Name: "b@y.com", Size: 3, Domain: "y.com"},
}

func testModel(t *testing.T, senders []model.Sender) *AppModel {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := cache.New(db)
	ctx := context.Background()
	if senders != nil {
		c.SaveSenders(ctx, senders)
		c.SaveTotal(ctx, 14)
	}
	svc := app.NewService(ingest.DefaultConfig(), c, nil)
	svc.Restore(ctx)

	m := NewAppModel(svc, t.TempDir(), 500)
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	return &m
}

func press(m *AppModel, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m.Update(msg)
	}
}

func TestRenderTreemap_FillsArea(t *testing.T) {
	entries := []model.GroupedEntry{
		{Key: "a@x.com", Value: 10, Metadata: model.GroupMetadata{ID: "a@x.com", Order: 0}},
		{Key: "b@y.com", Value: 3, Metadata: model.GroupMetadata{ID: "b@y.com", Order: 1}},
		{Key: "Others (1 senders)", Value: 1, Metadata: model.GroupMetadata{ID: "__others__", IsOthers: true, Order: 2}},
	}
	out := renderTreemap(entries, 40, 8)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 8)
	for i, l := range lines {
		assert.Equal(t, 40, lipgloss.Width(l), "line %d", i)
	}
	assert.Contains(t, out, "a@x.com")
	assert.Contains(t, out, "10")

	assert.Equal(t, "", renderTreemap(entries, 0, 8))
}

func TestFit(t *testing.T) {
	assert.Equal(t, "abc  ", fit("abc", 5))
	assert.Equal(t, "abcd…", fit("abcdefgh", 5))
}

func TestCutoffAndModeKeys(t *testing.T) {
	m := testModel(t, testSenders)
	require.Len(t, m.entries, 3)

	press(m, "+", "+", "+", "+")
	assert.Equal(t, 4, m.svc.Cutoff())
	require.Len(t, m.entries, 2)
	assert.Equal(t, "Others (2 senders)", m.entries[1].Key)

	press(m, "m")
	assert.Equal(t, model.ModeHide, m.svc.Mode())
	require.Len(t, m.entries, 1)

	press(m, "m", "-")
	assert.Equal(t, 3, m.svc.Cutoff())
	require.Len(t, m.entries, 3)

	// Cutoff never passes the largest sender.
	for i := 0; i < 20; i++ {
		press(m, "+")
	}
	assert.Equal(t, 10, m.svc.Cutoff())
}

func TestOthersView(t *testing.T) {
	m := testModel(t, testSenders)

	press(m, "o")
	assert.Equal(t, viewTreemap, m.view, "no Others cell without a cutoff")

	press(m, "+", "+", "+", "+", "o")
	require.Equal(t, viewOthers, m.view)
	assert.Equal(t, "Others (2 senders)", m.othersList.Title)
	assert.Len(t, m.othersList.Items(), 2)
	assert.Contains(t, m.View(), "b@y.com")

	press(m, "esc")
	assert.Equal(t, viewTreemap, m.view)
}

func TestView_EmptyStates(t *testing.T) {
	m := testModel(t, nil)
	assert.Contains(t, m.View(), "Press r to scan")

	m.svc.Connect(nil, nil)
	m.Update(ingestDoneMsg{senders: []model.Sender{}})
	assert.False(t, m.busy)

	m = testModel(t, testSenders)
	assert.Contains(t, m.View(), "14 unread emails")
}

func TestIngestDoneKeepsDataOnError(t *testing.T) {
	m := testModel(t, testSenders)
	m.busy = true
	m.Update(ingestDoneMsg{err: context.Canceled})
	assert.False(t, m.busy)
	assert.Equal(t, "Refresh cancelled", m.status)
	assert.Len(t, m.entries, 3)
}
