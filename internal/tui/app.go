package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"sendermap/internal/app"
	"sendermap/internal/gmail"
	"sendermap/internal/model"
)

type viewState int

const (
	viewTreemap viewState = iota
	viewAuth              // waiting for the OAuth redirect or a pasted code
	viewOthers            // senders merged into the Others cell
)

type AppModel struct {
	// Core state
	svc        *app.Service
	configDir  string
	maxResults int64
	status     string

	// Auth flow
	pasted    chan string
	textInput textinput.Model
	authURL   string

	// In-flight sign-in or ingestion
	busy    bool
	cancel  context.CancelFunc
	current model.Progress

	// View state machine
	view       viewState
	entries    []model.GroupedEntry
	othersList list.Model
	progress   progress.Model

	// Layout
	width, height int

	// Program reference for sending messages from goroutines
	program *tea.Program
}

// SetProgram stores a reference to the tea.Program so goroutines can send
// progress messages back to the Update loop.
func (m *AppModel) SetProgram(p *tea.Program) {
	m.program = p
}

func NewAppModel(svc *app.Service, configDir string, maxResults int64) AppModel {
	ti := textinput.New()
	ti.Placeholder = "Paste auth code or redirect URL here"
	ti.Focus()

	ol := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	ol.KeyMap.Quit.SetKeys("q")

	return AppModel{
		svc:        svc,
		configDir:  configDir,
		maxResults: maxResults,
		view:       viewTreemap,
		pasted:     make(chan string, 1),
		textInput:  ti,
		entries:    svc.GroupForDisplay(),
		othersList: ol,
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

func (m *AppModel) Init() tea.Cmd {
	if m.svc.HasData() {
		return nil
	}
	return m.refresh()
}

func (m *AppModel) send(msg tea.Msg) {
	if m.program != nil {
		m.program.Send(msg)
	}
}

func (m *AppModel) regroup() {
	m.entries = m.svc.GroupForDisplay()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.othersList.SetSize(msg.Width, msg.Height-2)
		m.progress.Width = max(10, min(msg.Width-24, 60))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case authURLMsg:
		m.authURL = string(msg)
		m.view = viewAuth
		return m, textinput.Blink

	case connectedMsg:
		m.view = viewTreemap
		m.authURL = ""
		if msg.err != nil {
			m.finish()
			if errors.Is(msg.err, context.Canceled) {
				m.status = "Sign-in cancelled"
			} else {
				log.WithError(msg.err).Error("sign_in_failed")
				m.status = fmt.Sprintf("Sign-in failed: %v", msg.err)
			}
			return m, clearStatusAfter(5 * time.Second)
		}
		m.svc.Connect(msg.client, msg.client)
		return m, m.ingestCmd()

	case progressMsg:
		m.current = model.Progress(msg)
		return m, nil

	case ingestDoneMsg:
		m.finish()
		switch {
		case msg.err == nil:
			m.regroup()
			m.status = fmt.Sprintf("Found %d senders", len(msg.senders))
		case errors.Is(msg.err, context.Canceled):
			m.status = "Refresh cancelled"
		default:
			log.WithError(msg.err).Error("refresh_failed")
			m.status = fmt.Sprintf("Refresh failed: %v", msg.err)
		}
		return m, clearStatusAfter(5 * time.Second)

	case signedOutMsg:
		m.regroup()
		if msg.err != nil {
			m.status = fmt.Sprintf("Sign-out failed: %v", msg.err)
		} else {
			m.status = "Signed out"
		}
		return m, clearStatusAfter(3 * time.Second)

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewAuth:
		m.textInput, cmd = m.textInput.Update(msg)
	case viewOthers:
		m.othersList, cmd = m.othersList.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) finish() {
	m.busy = false
	m.cancel = nil
	m.current = model.Progress{}
}

func (m *AppModel) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	return m, tea.Quit
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	switch key {
	case "ctrl+c":
		return m.quit()
	}

	switch m.view {
	case viewAuth:
		switch key {
		case "enter":
			val := m.textInput.Value()
			m.textInput.Reset()
			select {
			case m.pasted <- val:
				m.status = "Exchanging code..."
			default:
			}
			return m, nil
		case "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd

	case viewOthers:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.othersList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.othersList, cmd = m.othersList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m.quit()
		case "esc":
			m.view = viewTreemap
			return m, nil
		}
		var cmd tea.Cmd
		m.othersList, cmd = m.othersList.Update(msg)
		return m, cmd

	case viewTreemap:
		switch key {
		case "q":
			return m.quit()
		case "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case "r":
			return m, m.refresh()
		case "+", "=", "right":
			m.svc.SetCutoff(context.Background(), m.svc.Cutoff()+1)
			m.regroup()
			return m, nil
		case "-", "_", "left":
			m.svc.SetCutoff(context.Background(), m.svc.Cutoff()-1)
			m.regroup()
			return m, nil
		case "0":
			m.svc.SetCutoff(context.Background(), 0)
			m.regroup()
			return m, nil
		case "m":
			m.svc.SetMode(context.Background(), m.svc.Mode().Toggle())
			m.regroup()
			return m, nil
		case "o":
			return m.enterOthers()
		case "x":
			if m.busy {
				m.status = "Wait for the refresh to finish (esc cancels it)"
				return m, clearStatusAfter(3 * time.Second)
			}
			return m, m.signOutCmd()
		}
	}

	return m, nil
}

func (m *AppModel) enterOthers() (tea.Model, tea.Cmd) {
	e, ok := othersEntry(m.entries)
	if !ok {
		m.status = "No senders are grouped into Others"
		return m, clearStatusAfter(2 * time.Second)
	}
	m.othersList.SetItems(sendersToItems(e.Metadata.GroupedSenders))
	m.othersList.Title = e.Key
	m.othersList.ResetFilter()
	m.othersList.Select(0)
	m.view = viewOthers
	return m, nil
}

// refresh signs in first when no mailbox is connected yet.
func (m *AppModel) refresh() tea.Cmd {
	if m.busy {
		m.status = "A refresh is already running"
		return clearStatusAfter(2 * time.Second)
	}
	if m.svc.Connected() {
		return m.ingestCmd()
	}
	return m.connectCmd()
}

// Commands

func (m *AppModel) connectCmd() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.busy = true
	m.cancel = cancel
	// Drop a code pasted for an earlier attempt.
	select {
	case <-m.pasted:
	default:
	}

	prompt := gmail.Prompt{
		ShowURL: func(authURL string) { m.send(authURLMsg(authURL)) },
		Pasted:  m.pasted,
	}
	return func() tea.Msg {
		svc, err := gmail.NewService(ctx, m.configDir, prompt)
		if err != nil {
			return connectedMsg{err: err}
		}
		return connectedMsg{client: gmail.NewClient(svc)}
	}
}

func (m *AppModel) ingestCmd() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.busy = true
	m.cancel = cancel
	m.current = model.Progress{}
	m.status = ""

	return func() tea.Msg {
		senders, err := m.svc.RunIngestion(ctx, m.maxResults, func(p model.Progress) {
			m.send(progressMsg(p))
		})
		return ingestDoneMsg{senders: senders, err: err}
	}
}

func (m *AppModel) signOutCmd() tea.Cmd {
	return func() tea.Msg {
		return signedOutMsg{err: m.svc.SignOut(context.Background())}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	switch m.view {
	case viewAuth:
		var b strings.Builder
		b.WriteString("Please open this URL in your browser to authenticate:\n\n")
		b.WriteString(m.authURL + "\n\n")
		b.WriteString(m.textInput.View() + "\n")
		b.WriteString(footerStyle.Render("enter: submit  esc: cancel"))
		if m.status != "" {
			b.WriteString("\n" + m.status)
		}
		return b.String()

	case viewOthers:
		return m.othersList.View() + "\n" + othersFooter()
	}

	var b strings.Builder
	b.WriteString(treemapHeader(m.svc.Total(), m.svc.Cutoff(), m.svc.MaxCutoff(), m.svc.Mode()))
	b.WriteString("\n")
	used := 3
	if m.busy {
		b.WriteString(m.progressLine())
		b.WriteString("\n")
		used++
	}

	bodyH := m.height - used
	switch {
	case !m.svc.HasData():
		if !m.busy {
			b.WriteString(emptyStyle.Render("No data yet. Press r to scan your unread mail."))
		}
	case len(m.svc.Senders()) == 0:
		b.WriteString(emptyStyle.Render("No unread emails"))
	case len(m.entries) == 0:
		b.WriteString(emptyStyle.Render("Every sender is below the cutoff. Press - to lower it."))
	default:
		b.WriteString(renderTreemap(m.entries, m.width, bodyH))
	}

	b.WriteString("\n")
	b.WriteString(treemapFooter())
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}
	return b.String()
}

func (m *AppModel) progressLine() string {
	p := m.current
	if p.Total == 0 {
		if !m.svc.Connected() {
			return "Signing in..."
		}
		return "Listing messages..."
	}
	pct := float64(p.Processed) / float64(p.Total)
	return fmt.Sprintf("%s %d / %d", m.progress.ViewAs(pct), p.Processed, p.Total)
}
