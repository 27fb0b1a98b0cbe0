package tui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hydrogem/pool-dashboard/services/api/analysis"
	"github.com/hydrogem/pool-dashboard/services/api/live"
	"github.com/hydrogem/pool-dashboard/services/dashboard/apiclient"
)

// ─── ports ───────────────────────────────────────────────────────────────────

// LiveView is the mounted live reading panel.
type LiveView interface {
	Snapshot() live.State
	Updates() <-chan live.State
	Refresh(ctx context.Context) error
}

// Analyzer runs a remote analysis.
type Analyzer interface {
	Analyze(ctx context.Context, hours float64) (apiclient.Result, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type stateMsg struct{ state live.State }

type liveClosedMsg struct{}

type refreshedMsg struct{ err error }

type analysisMsg struct {
	text string
	err  error
}

// ─── key bindings ────────────────────────────────────────────────────────────

type keyMap struct {
	Refresh  key.Binding
	Analyze  key.Binding
	Wider    key.Binding
	Narrower key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Refresh:  key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "refresh")),
		Analyze:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "analyze")),
		Wider:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "window")),
		Narrower: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("+/-", "window")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Analyze, k.Wider, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Analyze}, {k.Wider, k.Narrower, k.Quit}}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model renders the live reading cards above the analysis panel.
type Model struct {
	view     LiveView
	analyzer Analyzer
	loc      *time.Location

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	state       live.State
	hours       int
	analysis    string
	analysisErr string
	loading     bool
	status      string
	width       int
}

// New builds the model around an already mounted view.
func New(view LiveView, analyzer Analyzer, loc *time.Location) Model {
	if loc == nil {
		loc = time.UTC
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	return Model{
		view:     view,
		analyzer: analyzer,
		loc:      loc,
		keys:     defaultKeys(),
		help:     help.New(),
		spinner:  sp,
		state:    view.Snapshot(),
		hours:    int(analysis.DefaultHours),
	}
}

func (m Model) Init() tea.Cmd {
	return waitForState(m.view.Updates())
}

func waitForState(updates <-chan live.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return liveClosedMsg{}
		}
		return stateMsg{state: st}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	view := m.view
	return func() tea.Msg {
		return refreshedMsg{err: view.Refresh(context.Background())}
	}
}

func (m Model) analyzeCmd() tea.Cmd {
	analyzer, hours := m.analyzer, float64(m.hours)
	return func() tea.Msg {
		res, err := analyzer.Analyze(context.Background(), hours)
		if err != nil {
			return analysisMsg{err: err}
		}
		return analysisMsg{text: res.Analysis}
	}
}

// ─── update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case stateMsg:
		m.state = msg.state
		return m, waitForState(m.view.Updates())

	case liveClosedMsg:
		m.status = "live view closed"

	case refreshedMsg:
		// A failed fetch only shows as the stale marker.
		if msg.err != nil {
			log.Printf("refresh failed: %v", msg.err)
		}

	case analysisMsg:
		m.loading = false
		if msg.err != nil {
			m.analysisErr = msg.err.Error()
			return m, nil
		}
		m.analysis = msg.text

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refreshCmd()
		case key.Matches(msg, m.keys.Wider):
			m.hours = min(m.hours+1, analysis.MaxWindowHours)
		case key.Matches(msg, m.keys.Narrower):
			m.hours = max(m.hours-1, analysis.MinWindowHours)
		case key.Matches(msg, m.keys.Analyze):
			if m.loading {
				return m, nil
			}
			m.loading = true
			m.analysis = ""
			m.analysisErr = ""
			return m, tea.Batch(m.analyzeCmd(), m.spinner.Tick)
		}
	}

	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	p := live.Present(m.state, m.loc)

	cards := make([]string, 0, len(p.Cards))
	for _, c := range p.Cards {
		value := valueStyle.Render(c.Value)
		if c.Unit != "" {
			value += " " + mutedStyle.Render(c.Unit)
		}
		cards = append(cards, cardStyle.Render(
			mutedStyle.Render(c.Label)+"\n"+value+"\n"+mutedStyle.Render("Updated: "+c.Updated),
		))
	}

	refresh := "Last refresh: " + p.LastRefresh
	if p.Stale {
		refresh += " " + staleStyle.Render("(stale)")
	}

	sections := []string{
		titleStyle.Render("Pool Status"),
		refresh,
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
	}
	if p.Reading == nil {
		sections = append(sections, mutedStyle.Render("No readings yet. Insert a row into pool_readings to see live updates."))
	}
	sections = append(sections, m.renderAnalysis(), m.help.View(m.keys))
	if m.status != "" {
		sections = append(sections, errorStyle.Render(m.status))
	}

	return appStyle.Render(strings.Join(sections, "\n\n"))
}

func (m Model) renderAnalysis() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("AI Water Analysis"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  window: %dh", m.hours)))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Analyzing…")
	case m.analysisErr != "":
		b.WriteString(errorStyle.Render(m.analysisErr))
	case m.analysis != "":
		b.WriteString(m.analysis)
	default:
		b.WriteString(mutedStyle.Render("Press a to analyze recent readings and weather."))
	}

	style := paneStyle
	if m.width > 8 {
		style = style.Width(m.width - 8)
	}
	return style.Render(b.String())
}
