package tui

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/dashboard"
	"github.com/hyeonwoo-dev/qcgate/internal/project"
	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

func newApp(t *testing.T) (*App, *project.Store) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	log, err := activity.New(filepath.Join(t.TempDir(), "activity.log"))
	if err != nil {
		t.Fatalf("activity log: %v", err)
	}
	projects := project.NewStore(db)
	return NewApp(dashboard.NewService(db, log), projects), projects
}

func TestViewBeforeFirstRefresh(t *testing.T) {
	app, _ := newApp(t)
	if !strings.Contains(app.View(), "loading") {
		t.Fatalf("initial view = %q", app.View())
	}
}

func TestRefreshPopulatesView(t *testing.T) {
	app, projects := newApp(t)
	p, err := projects.Create("Payment Gateway", project.UrgencyHigh, nil)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := projects.CreateRequest(p.ID, "Release 2.4 verification"); err != nil {
		t.Fatalf("create request: %v", err)
	}

	msg := app.refresh()
	refreshed, ok := msg.(refreshMsg)
	if !ok {
		t.Fatalf("refresh returned %T", msg)
	}
	if refreshed.err != nil {
		t.Fatalf("refresh error: %v", refreshed.err)
	}

	model, _ := app.Update(refreshed)
	view := model.(*App).View()
	if !strings.Contains(view, "total 1") {
		t.Fatalf("view missing request count:\n%s", view)
	}
	if !strings.Contains(view, "Release 2.4 verification") {
		t.Fatalf("view missing request row:\n%s", view)
	}
	if !strings.Contains(view, "Draft") {
		t.Fatalf("view missing stage funnel:\n%s", view)
	}
}

func TestQuitKeys(t *testing.T) {
	app, _ := newApp(t)
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		_, cmd := app.Update(keyMsg(key))
		if cmd == nil {
			t.Fatalf("key %q did not quit", key)
		}
		if msg := cmd(); msg != (tea.QuitMsg{}) {
			t.Fatalf("key %q produced %T, want QuitMsg", key, msg)
		}
	}
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}
