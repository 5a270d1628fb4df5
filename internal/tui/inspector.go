package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ipconfiger/ru-cdc/internal/clipboard"
	"github.com/ipconfiger/ru-cdc/internal/highlight"
)

func (m Model) updateInspect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.resp != nil {
			_ = m.resp.Body.Close()
		}
		return m, tea.Quit
	case "q":
		m.view = viewList
		return m, nil
	case "c":
		rec, ok := m.cursorRecord()
		if !ok {
			return m, nil
		}
		_ = clipboard.Copy(context.Background(), string(rec.Payload))
		return m, nil
	case "j", "down":
		maxScroll := max(len(m.inspectLines())-m.inspectVisibleRows(), 0)
		if m.inspectScroll < maxScroll {
			m.inspectScroll++
		}
		return m, nil
	case "k", "up":
		if m.inspectScroll > 0 {
			m.inspectScroll--
		}
		return m, nil
	}
	return m, nil
}

func (m Model) inspectLines() []string {
	rec, ok := m.cursorRecord()
	if !ok {
		return nil
	}

	var lines []string
	lines = append(lines, "Instance: "+rec.Instance)
	lines = append(lines, "Schema:   "+rec.Schema)
	lines = append(lines, "Table:    "+rec.Table)
	lines = append(lines, "DML:      "+rec.DML)
	lines = append(lines, "Topic:    "+rec.Topic)
	lines = append(lines, "")
	lines = append(lines, "Record:")
	for _, l := range strings.Split(highlight.JSON(string(rec.Payload)), "\n") {
		lines = append(lines, "  "+l)
	}
	return lines
}

func (m Model) inspectVisibleRows() int {
	return max(m.height-2, 3)
}

func (m Model) renderInspector() string {
	innerWidth := max(m.width-4, 20)
	visibleRows := m.inspectVisibleRows()

	lines := m.inspectLines()
	if lines == nil {
		return ""
	}

	maxScroll := max(len(lines)-visibleRows, 0)
	if m.inspectScroll > maxScroll {
		m.inspectScroll = maxScroll
	}

	end := min(m.inspectScroll+visibleRows, len(lines))
	visible := lines[m.inspectScroll:end]
	content := strings.Join(visible, "\n")

	borderColor := lipgloss.Color("240")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(borderColor).
		Render(content)

	boxLines := strings.Split(box, "\n")
	if len(boxLines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		title := " Inspector "
		dashes := max(innerWidth-len([]rune(title)), 0)
		boxLines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
	}

	if n := len(boxLines); n > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		help := " q: back  j/k: scroll  c: copy record "
		dashes := max(innerWidth-len([]rune(help)), 0)
		boxLines[n-1] = borderFg.Render("╰") +
			lipgloss.NewStyle().Faint(true).Render(help) +
			borderFg.Render(strings.Repeat("─", dashes)+"╯")
	}

	return strings.Join(boxLines, "\n")
}
