package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ipconfiger/ru-cdc/internal/highlight"
)

// Column widths.
const (
	colMarker = 2
	colDML    = 8
	colTopic  = 16
)

func dmlColor(dml string) lipgloss.Color {
	switch strings.ToUpper(dml) {
	case "INSERT":
		return lipgloss.Color("2")
	case "UPDATE":
		return lipgloss.Color("3")
	case "DELETE":
		return lipgloss.Color("1")
	case "DDL":
		return lipgloss.Color("5")
	}
	return lipgloss.Color("7")
}

func (m Model) renderList(maxRows int) string {
	innerWidth := max(m.width-4, 20)
	idx := m.visibleIndices()
	colTable := max(innerWidth-colMarker-colDML-colTopic-4, 10)

	var title string
	if m.searchQuery != "" || m.filterQuery != "" {
		title = fmt.Sprintf(" ru-cdc (%d/%d records) ", len(idx), len(m.records))
	} else {
		title = fmt.Sprintf(" ru-cdc (%d records) ", len(m.records))
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth)

	dataRows := max(maxRows-1, 1)

	start := 0
	if len(idx) > dataRows {
		start = max(m.cursor-dataRows/2, 0)
		if start+dataRows > len(idx) {
			start = len(idx) - dataRows
		}
	}
	end := min(start+dataRows, len(idx))

	header := fmt.Sprintf("  %-*s %-*s %-*s",
		colDML, "DML",
		colTable, "Schema.Table",
		colTopic, "Topic",
	)

	var rows []string
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(header))
	for i := start; i < end; i++ {
		rows = append(rows, m.renderEventRow(idx[i], i, colTable))
	}

	borderColor := lipgloss.Color("240")
	border = border.BorderForeground(borderColor)
	content := strings.Join(rows, "\n")

	box := border.Render(content)
	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		lines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
		box = strings.Join(lines, "\n")
	}

	return box
}

func (m Model) renderEventRow(recIdx, drIdx int, colTable int) string {
	rec := m.records[recIdx]
	marker := "  "
	if drIdx == m.cursor {
		marker = "▶ "
	}

	dmlStyled := lipgloss.NewStyle().Foreground(dmlColor(rec.DML))
	table := truncate(rec.Schema+"."+rec.Table, colTable)
	topic := truncate(rec.Topic, colTopic)

	row := fmt.Sprintf("%s%s %-*s %-*s",
		marker,
		padRight(dmlStyled.Render(rec.DML), colDML),
		colTable, table,
		colTopic, topic,
	)
	if drIdx == m.cursor {
		row = lipgloss.NewStyle().Bold(true).Render(row)
	}
	return row
}

func (m Model) renderPreview() string {
	innerWidth := max(m.width-4, 20)
	rec, ok := m.cursorRecord()
	if !ok {
		return ""
	}

	var lines []string
	lines = append(lines, "Table:    "+rec.Schema+"."+rec.Table)
	lines = append(lines, "DML:      "+rec.DML)
	lines = append(lines, "Topic:    "+rec.Topic)
	maxLen := max(innerWidth-10, 20)
	lines = append(lines, "Record:   "+highlight.JSON(truncate(string(rec.Payload), maxLen)))

	content := strings.Join(lines, "\n")
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(lipgloss.Color("240"))
	return border.Render(content)
}
