package cli

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rcxbench/rcxbench/pkg/flow"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// StepListModel - Interactive step selection
// =============================================================================

// stepItem is one selectable row.
type stepItem struct {
	name    string
	tool    string
	task    string
	checked bool
}

// StepListModel is the bubbletea model for picking which steps to run.
// Steps are listed in flow order; space toggles, enter confirms.
type StepListModel struct {
	Items     []stepItem
	Cursor    int
	Confirmed bool
}

// NewStepListModel creates a step list model from a flowgraph.
func NewStepListModel(g *flow.Graph) (StepListModel, error) {
	order, err := g.Steps()
	if err != nil {
		return StepListModel{}, err
	}
	m := StepListModel{}
	for _, name := range order {
		s, err := g.Step(name)
		if err != nil {
			return StepListModel{}, err
		}
		m.Items = append(m.Items, stepItem{
			name:    s.Name,
			tool:    s.Tool,
			task:    s.Task,
			checked: true,
		})
	}
	return m, nil
}

func (m StepListModel) Init() tea.Cmd {
	return nil
}

func (m StepListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Items)-1 {
				m.Cursor++
			}
		case " ":
			if len(m.Items) > 0 {
				m.Items[m.Cursor].checked = !m.Items[m.Cursor].checked
			}
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m StepListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Steps"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  ⏎ run  q quit"))
	b.WriteString("\n\n")

	for i, item := range m.Items {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if item.checked {
			check = "[x]"
		}
		style := listNormalStyle
		if i == m.Cursor {
			style = listSelectedStyle
		}
		b.WriteString(cursor + check + " " + style.Render(item.name) +
			listDimStyle.Render("  "+item.tool+"/"+item.task) + "\n")
	}
	return b.String()
}

// Selected returns the names of the checked steps, in flow order.
func (m StepListModel) Selected() []string {
	var names []string
	for _, item := range m.Items {
		if item.checked {
			names = append(names, item.name)
		}
	}
	return names
}

// pickSteps runs the interactive step picker. Returns nil names when the
// user aborts.
func pickSteps(g *flow.Graph) ([]string, error) {
	model, err := NewStepListModel(g)
	if err != nil {
		return nil, err
	}
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, err
	}
	result, ok := final.(StepListModel)
	if !ok || !result.Confirmed {
		return nil, nil
	}
	return result.Selected(), nil
}
