package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// analyticsSortMode controls how buildAnalyticsRows' output is ordered.
type analyticsSortMode int

const (
	analyticsSortCount analyticsSortMode = iota
	analyticsSortBytes
)

func (s analyticsSortMode) String() string {
	if s == analyticsSortBytes {
		return "bytes"
	}
	return "count"
}

func (s analyticsSortMode) next() analyticsSortMode {
	if s == analyticsSortCount {
		return analyticsSortBytes
	}
	return analyticsSortCount
}

// analyticsRow is one schema.table/DML group's throughput breakdown.
type analyticsRow struct {
	schema string
	table  string
	dml    string
	count  int
	bytes  int
}

// buildAnalyticsRows groups m.records by (schema, table, dml) and sums
// event count and payload bytes seen for each group, the same
// aggregate-then-sort shape the teacher used for per-query latency
// analytics, applied here to per-table throughput instead.
func (m Model) buildAnalyticsRows() []analyticsRow {
	type key struct{ schema, table, dml string }
	groups := make(map[key]*analyticsRow)
	order := make([]key, 0)

	for _, rec := range m.records {
		k := key{schema: rec.Schema, table: rec.Table, dml: rec.DML}
		row, ok := groups[k]
		if !ok {
			row = &analyticsRow{schema: rec.Schema, table: rec.Table, dml: rec.DML}
			groups[k] = row
			order = append(order, k)
		}
		row.count++
		row.bytes += len(rec.Payload)
	}

	rows := make([]analyticsRow, 0, len(order))
	for _, k := range order {
		rows = append(rows, *groups[k])
	}
	return rows
}

func sortAnalyticsRows(rows []analyticsRow, mode analyticsSortMode) {
	sort.Slice(rows, func(i, j int) bool {
		switch mode {
		case analyticsSortBytes:
			return rows[i].bytes > rows[j].bytes
		default:
			return rows[i].count > rows[j].count
		}
	})
}

func (m Model) updateAnalytics(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.resp != nil {
			_ = m.resp.Body.Close()
		}
		return m, tea.Quit
	case "q", "esc":
		m.view = viewList
		return m, nil
	case "j", "down":
		rows := m.buildAnalyticsRows()
		if len(rows) > 0 && m.analyticsCursor < len(rows)-1 {
			m.analyticsCursor++
		}
		return m, nil
	case "k", "up":
		if m.analyticsCursor > 0 {
			m.analyticsCursor--
		}
		return m, nil
	case "s":
		m.analyticsSortMode = m.analyticsSortMode.next()
		m.analyticsCursor = 0
		return m, nil
	}
	return m, nil
}

const (
	analyticsColDML    = 8
	analyticsColCount  = 8
	analyticsColBytes  = 12
)

func (m Model) analyticsVisibleRows() int {
	return max(m.height-6, 3)
}

func (m Model) renderAnalytics() string {
	innerWidth := max(m.width-4, 20)
	visibleRows := m.analyticsVisibleRows()

	rows := m.buildAnalyticsRows()
	sortAnalyticsRows(rows, m.analyticsSortMode)

	title := fmt.Sprintf(" Throughput by table (%d groups) [sort: %s] ", len(rows), m.analyticsSortMode)

	fixedWidth := analyticsColDML + analyticsColCount + analyticsColBytes + 4
	colTable := max(innerWidth-fixedWidth, 10)

	header := fmt.Sprintf("  %-*s %*s %*s  %s",
		analyticsColDML, "DML",
		analyticsColCount, "Count",
		analyticsColBytes, "Bytes",
		"Schema.Table")

	dataRows := max(visibleRows-1, 1)
	start := 0
	if len(rows) > dataRows {
		start = max(m.analyticsCursor-dataRows/2, 0)
		if start+dataRows > len(rows) {
			start = len(rows) - dataRows
		}
	}
	end := min(start+dataRows, len(rows))

	lines := []string{header}
	for i := start; i < end; i++ {
		r := rows[i]
		marker := "  "
		if i == m.analyticsCursor {
			marker = "> "
		}
		table := truncate(r.schema+"."+r.table, colTable)
		lines = append(lines, fmt.Sprintf("%s%-*s %*d %*d  %s",
			marker, analyticsColDML, r.dml, analyticsColCount, r.count, analyticsColBytes, r.bytes, table))
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth)

	borderColor := lipgloss.Color("240")
	border = border.BorderForeground(borderColor)
	content := strings.Join(lines, "\n")

	box := border.Render(content)
	boxLines := strings.Split(box, "\n")
	if len(boxLines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		boxLines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
		box = strings.Join(boxLines, "\n")
	}

	footer := "  q: back  j/k: navigate  s: sort"
	return strings.Join([]string{box, footer}, "\n")
}
