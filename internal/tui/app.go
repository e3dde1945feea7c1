// internal/tui/app.go
//
// Terminal dashboard for qcgate, built on bubbletea's Elm-style loop:
// the model holds a dashboard snapshot, a tick message refreshes it, and
// the view renders the stage funnel plus the QC request table.

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyeonwoo-dev/qcgate/internal/dashboard"
	"github.com/hyeonwoo-dev/qcgate/internal/project"
)

const (
	refreshInterval = 3 * time.Second
	activityLines   = 8
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type refreshMsg struct {
	snapshot dashboard.Snapshot
	requests []project.Request
	err      error
}

type tickMsg time.Time

// App is the dashboard model.
type App struct {
	dashboard *dashboard.Service
	projects  *project.Store

	snapshot dashboard.Snapshot
	table    table.Model
	width    int
	loaded   bool
	lastErr  error
}

// NewApp builds the dashboard over the shared services.
func NewApp(dash *dashboard.Service, projects *project.Store) *App {
	columns := []table.Column{
		{Title: "Request", Width: 36},
		{Title: "Title", Width: 32},
		{Title: "Status", Width: 12},
		{Title: "Score", Width: 6},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true)
	t.SetStyles(styles)
	return &App{dashboard: dash, projects: projects, table: t}
}

// Run starts the bubbletea program and blocks until quit.
func (a *App) Run() error {
	_, err := tea.NewProgram(a, tea.WithAltScreen()).Run()
	return err
}

func (a *App) Init() tea.Cmd {
	return a.refresh
}

func (a *App) refresh() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snapshot := a.dashboard.Snapshot(ctx, activityLines)
	requests, err := a.projects.ListRequests()
	return refreshMsg{snapshot: snapshot, requests: requests, err: err}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return a, tea.Quit
		case "r":
			return a, a.refresh
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
	case refreshMsg:
		a.loaded = true
		a.lastErr = msg.err
		a.snapshot = msg.snapshot
		if msg.err == nil {
			a.table.SetRows(requestRows(msg.requests))
		}
		return a, tick()
	case tickMsg:
		return a, a.refresh
	}
	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

func requestRows(requests []project.Request) []table.Row {
	rows := make([]table.Row, 0, len(requests))
	for _, req := range requests {
		score := "-"
		if req.QualityScore != nil {
			score = fmt.Sprintf("%d", *req.QualityScore)
		}
		rows = append(rows, table.Row{req.ID, req.Title, string(req.Status), score})
	}
	return rows
}

func (a *App) View() string {
	if !a.loaded {
		return "\n  loading dashboard...\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("qcgate dashboard"))
	b.WriteString("\n\n")

	qc := a.snapshot.QC
	b.WriteString(headerStyle.Render("QC requests"))
	b.WriteString(fmt.Sprintf("  total %d | pending %d | in progress %d | complete %d | rejected %d",
		qc.Total, qc.Pending, qc.InProgress, qc.Complete, qc.Rejected))
	if qc.ScoredRequests > 0 {
		b.WriteString(fmt.Sprintf(" | avg score %.1f", qc.AverageScore))
	}
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Workflow stages"))
	b.WriteString("\n")
	for _, sc := range a.snapshot.Stages {
		b.WriteString(fmt.Sprintf("  %-16s %s %d\n", sc.Label, barStyle.Render(stageBar(sc.Count)), sc.Count))
	}
	b.WriteString("\n")

	b.WriteString(a.table.View())
	b.WriteString("\n")

	if len(a.snapshot.RecentActivity) > 0 {
		b.WriteString(headerStyle.Render("Recent activity"))
		b.WriteString("\n")
		for _, line := range a.snapshot.RecentActivity {
			b.WriteString(faintStyle.Render("  " + line))
			b.WriteString("\n")
		}
	}
	if a.lastErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("\nrefresh error: %v", a.lastErr)))
		b.WriteString("\n")
	}
	b.WriteString(faintStyle.Render("\nr refresh | q quit\n"))
	return b.String()
}

func stageBar(count int) string {
	if count > 40 {
		count = 40
	}
	return strings.Repeat("█", count)
}
