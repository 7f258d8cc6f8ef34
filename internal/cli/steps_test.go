package cli

import (
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rcxbench/rcxbench/pkg/flow"
)

func stepTestGraph(t *testing.T) *flow.Graph {
	t.Helper()
	g := flow.NewGraph()
	steps := []flow.Step{
		{Name: "import", Tool: "openroad", Task: "load"},
		{Name: "bench", Tool: "openroad", Task: "rcx_bench", Inputs: []string{"import"}},
	}
	for _, s := range steps {
		if err := g.AddStep(s); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestNewStepListModel(t *testing.T) {
	m, err := NewStepListModel(stepTestGraph(t))
	if err != nil {
		t.Fatalf("NewStepListModel() error = %v", err)
	}
	if len(m.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(m.Items))
	}
	// Flow order, everything preselected.
	if m.Items[0].name != "import" || m.Items[1].name != "bench" {
		t.Errorf("item order = %s, %s", m.Items[0].name, m.Items[1].name)
	}
	want := []string{"import", "bench"}
	if got := m.Selected(); !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
}

func keyMsg(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStepListToggle(t *testing.T) {
	m, err := NewStepListModel(stepTestGraph(t))
	if err != nil {
		t.Fatal(err)
	}

	next, _ := m.Update(keyMsg(" "))
	m = next.(StepListModel)
	want := []string{"bench"}
	if got := m.Selected(); !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() after toggle = %v, want %v", got, want)
	}

	next, _ = m.Update(keyMsg(" "))
	m = next.(StepListModel)
	if got := m.Selected(); len(got) != 2 {
		t.Errorf("Selected() after re-toggle = %v", got)
	}
}

func TestStepListNavigateAndConfirm(t *testing.T) {
	m, err := NewStepListModel(stepTestGraph(t))
	if err != nil {
		t.Fatal(err)
	}

	next, _ := m.Update(keyMsg("j"))
	m = next.(StepListModel)
	if m.Cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.Cursor)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(StepListModel)
	if !m.Confirmed {
		t.Error("enter should confirm")
	}
	if cmd == nil {
		t.Error("enter should quit")
	}
}

func TestStepListView(t *testing.T) {
	m, err := NewStepListModel(stepTestGraph(t))
	if err != nil {
		t.Fatal(err)
	}
	view := m.View()
	for _, want := range []string{"import", "bench", "openroad/rcx_bench"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}
