// Package tui is a terminal dashboard that watches a running ru-cdc
// agent's admin SSE stream and shows dispatched records as they flow,
// adapted from the teacher's gRPC-backed query-proxy inspector into an
// HTTP/SSE-backed change-event inspector.
package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ipconfiger/ru-cdc/internal/clipboard"
)

type viewMode int

const (
	viewList viewMode = iota
	viewInspect
	viewAnalytics
)

// Model is the Bubble Tea model for the ru-cdc TUI.
type Model struct {
	target  string
	client  *http.Client
	resp    *http.Response
	scanner *bufio.Scanner

	records []Record
	cursor  int
	follow  bool
	width   int
	height  int
	err     error
	view    viewMode

	searchMode   bool
	searchQuery  string
	searchCursor int
	filterMode   bool
	filterQuery  string
	filterCursor int

	inspectScroll int

	analyticsCursor   int
	analyticsSortMode analyticsSortMode
}

// eventMsg carries one received Record from the SSE stream.
type eventMsg struct{ Record Record }

// errMsg carries an error from the admin connection or stream.
type errMsg struct{ Err error }

// connectedMsg is sent after the SSE connection and scanner are ready.
type connectedMsg struct {
	resp    *http.Response
	scanner *bufio.Scanner
}

// New creates a new Model targeting the given admin server base URL
// (e.g. "http://127.0.0.1:8089").
func New(target string) Model {
	return Model{
		target: target,
		client: &http.Client{},
		follow: true,
	}
}

// Init starts the SSE connection.
func (m Model) Init() tea.Cmd {
	return connect(m.client, m.target)
}

func connect(client *http.Client, target string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Get(strings.TrimRight(target, "/") + "/api/events")
		if err != nil {
			return errMsg{Err: fmt.Errorf("dial %s: %w", target, err)}
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return errMsg{Err: fmt.Errorf("dial %s: status %s", target, resp.Status)}
		}
		return connectedMsg{resp: resp, scanner: bufio.NewScanner(resp.Body)}
	}
}

// recvEvent scans forward to the next non-empty "data: " line, per the
// SSE framing internal/admin's handleSSE writes.
func recvEvent(scanner *bufio.Scanner) tea.Cmd {
	return func() tea.Msg {
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev sseEvent
			if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
				continue
			}
			return eventMsg{Record: ev.toRecord()}
		}
		if err := scanner.Err(); err != nil {
			return errMsg{Err: err}
		}
		return errMsg{Err: fmt.Errorf("event stream closed")}
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case connectedMsg:
		m.resp = msg.resp
		m.scanner = msg.scanner
		return m, recvEvent(msg.scanner)

	case eventMsg:
		m.records = append(m.records, msg.Record)
		if m.follow {
			m.cursor = max(len(m.visibleIndices())-1, 0)
		}
		return m, recvEvent(m.scanner)

	case errMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewInspect:
			return m.updateInspect(msg)
		case viewAnalytics:
			return m.updateAnalytics(msg)
		case viewList:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if m.err != nil {
		return friendlyError(m.err, m.width)
	}
	if len(m.records) == 0 {
		return "Waiting for records..."
	}

	switch m.view {
	case viewInspect:
		return m.renderInspector()
	case viewAnalytics:
		return m.renderAnalytics()
	case viewList:
	}

	var footer string
	switch {
	case m.searchMode:
		footer = "  / " + renderInputWithCursor(m.searchQuery, m.searchCursor)
	case m.filterMode:
		footer = "  filter: " + renderInputWithCursor(m.filterQuery, m.filterCursor)
	default:
		items := []string{
			"q: quit", "j/k: navigate", "enter: inspect",
			"c: copy json", "/: search", "f: filter", "a: throughput",
		}
		footer = wrapFooterItems(items, m.width)
		if m.filterQuery != "" {
			footer += "\n  " + fmt.Sprintf("[filter: %s]", describeFilter(m.filterQuery))
		}
		if m.searchQuery != "" || m.filterQuery != "" {
			footer += "  esc: clear"
		}
	}

	footerLines := strings.Count(footer, "\n") + 1
	listHeight := m.listHeight(footerLines)

	return strings.Join([]string{
		m.renderList(listHeight),
		m.renderPreview(),
		footer,
	}, "\n")
}

func (m Model) listHeight(footerLines int) int {
	extra := max(footerLines-1, 0)
	return max(m.height-10-extra, 3)
}

// visibleIndices returns the indices into m.records that pass the
// active filter and search query, in original order.
func (m Model) visibleIndices() []int {
	var conds []filterCondition
	if m.filterQuery != "" {
		conds = parseFilter(m.filterQuery)
	}
	searchLower := strings.ToLower(m.searchQuery)

	var out []int
	for i, rec := range m.records {
		if len(conds) > 0 && !matchAllConditions(rec, conds) {
			continue
		}
		if searchLower != "" && !strings.Contains(strings.ToLower(recordSearchText(rec)), searchLower) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func recordSearchText(rec Record) string {
	return rec.Schema + "." + rec.Table + " " + rec.DML + " " + rec.Topic
}

func (m Model) cursorRecord() (Record, bool) {
	idx := m.visibleIndices()
	if m.cursor < 0 || m.cursor >= len(idx) {
		return Record{}, false
	}
	return m.records[idx[m.cursor]], true
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchMode {
		return m.updateSearch(msg)
	}
	if m.filterMode {
		return m.updateFilter(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if m.resp != nil {
			_ = m.resp.Body.Close()
		}
		return m, tea.Quit
	case "enter":
		if len(m.visibleIndices()) > 0 {
			m.view = viewInspect
			m.inspectScroll = 0
		}
		return m, nil
	case "c":
		return m.copyPayload(), nil
	case "a":
		m.view = viewAnalytics
		m.analyticsCursor = 0
		return m, nil
	case "/":
		m.searchMode = true
		m.searchQuery = ""
		m.searchCursor = 0
		return m, nil
	case "f":
		m.filterMode = true
		m.filterQuery = ""
		m.filterCursor = 0
		return m, nil
	case "esc":
		return m.clearFilter(), nil
	case "j", "down":
		return m.navigateCursor(msg.String()), nil
	case "k", "up":
		return m.navigateCursor(msg.String()), nil
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		return m, nil
	case "esc":
		m.searchMode = false
		m.searchQuery = ""
		m.cursor = min(m.cursor, max(len(m.visibleIndices())-1, 0))
		return m, nil
	case "backspace":
		if m.searchCursor > 0 {
			runes := []rune(m.searchQuery)
			m.searchQuery = string(runes[:m.searchCursor-1]) + string(runes[m.searchCursor:])
			m.searchCursor--
			m.cursor = min(m.cursor, max(len(m.visibleIndices())-1, 0))
		}
		return m, nil
	case "ctrl+c":
		if m.resp != nil {
			_ = m.resp.Body.Close()
		}
		return m, tea.Quit
	case "left":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil
	case "right":
		if m.searchCursor < len([]rune(m.searchQuery)) {
			m.searchCursor++
		}
		return m, nil
	case "up", "down":
		return m.navigateCursor(msg.String()), nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}
	runes := []rune(m.searchQuery)
	m.searchQuery = string(runes[:m.searchCursor]) + string(r) + string(runes[m.searchCursor:])
	m.searchCursor += len(r)
	m.cursor = min(m.cursor, max(len(m.visibleIndices())-1, 0))
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterMode = false
		return m, nil
	case "esc":
		m.filterMode = false
		m.filterQuery = ""
		m.cursor = min(m.cursor, max(len(m.visibleIndices())-1, 0))
		return m, nil
	case "backspace":
		if m.filterCursor > 0 {
			runes := []rune(m.filterQuery)
			m.filterQuery = string(runes[:m.filterCursor-1]) + string(runes[m.filterCursor:])
			m.filterCursor--
			m.cursor = min(m.cursor, max(len(m.visibleIndices())-1, 0))
		}
		return m, nil
	case "ctrl+c":
		if m.resp != nil {
			_ = m.resp.Body.Close()
		}
		return m, tea.Quit
	case "left":
		if m.filterCursor > 0 {
			m.filterCursor--
		}
		return m, nil
	case "right":
		if m.filterCursor < len([]rune(m.filterQuery)) {
			m.filterCursor++
		}
		return m, nil
	case "up", "down":
		return m.navigateCursor(msg.String()), nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}
	runes := []rune(m.filterQuery)
	m.filterQuery = string(runes[:m.filterCursor]) + string(r) + string(runes[m.filterCursor:])
	m.filterCursor += len(r)
	m.cursor = min(m.cursor, max(len(m.visibleIndices())-1, 0))
	return m, nil
}

func (m Model) navigateCursor(key string) Model {
	idx := m.visibleIndices()
	switch key {
	case "up":
		if m.cursor > 0 {
			m.cursor--
			m.follow = false
		}
	case "down":
		if len(idx) > 0 && m.cursor < len(idx)-1 {
			m.cursor++
		}
		if len(idx) > 0 && m.cursor == len(idx)-1 {
			m.follow = true
		}
	}
	return m
}

func (m Model) copyPayload() Model {
	rec, ok := m.cursorRecord()
	if !ok {
		return m
	}
	_ = clipboard.Copy(context.Background(), string(rec.Payload))
	return m
}

func (m Model) clearFilter() Model {
	changed := false
	if m.searchQuery != "" {
		m.searchQuery = ""
		changed = true
	}
	if m.filterQuery != "" {
		m.filterQuery = ""
		changed = true
	}
	if changed {
		m.cursor = min(m.cursor, max(len(m.visibleIndices())-1, 0))
	}
	return m
}
