package tui

import "strings"

type filterKind int

const (
	filterText   filterKind = iota // plain text substring match
	filterSchema                   // schema:db1
	filterTable                    // table:orders
	filterDML                      // dml:insert, dml:update, dml:delete
)

type filterCondition struct {
	kind filterKind
	text string
}

func parseFilter(input string) []filterCondition {
	tokens := strings.Fields(input)
	conds := make([]filterCondition, 0, len(tokens))

	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "schema:"):
			conds = append(conds, filterCondition{kind: filterSchema, text: lower[len("schema:"):]})
		case strings.HasPrefix(lower, "table:"):
			conds = append(conds, filterCondition{kind: filterTable, text: lower[len("table:"):]})
		case strings.HasPrefix(lower, "dml:"):
			conds = append(conds, filterCondition{kind: filterDML, text: lower[len("dml:"):]})
		default:
			conds = append(conds, filterCondition{kind: filterText, text: lower})
		}
	}
	return conds
}

func (c filterCondition) matchesRecord(rec Record) bool {
	switch c.kind {
	case filterSchema:
		return strings.Contains(strings.ToLower(rec.Schema), c.text)
	case filterTable:
		return strings.Contains(strings.ToLower(rec.Table), c.text)
	case filterDML:
		return strings.EqualFold(rec.DML, c.text)
	case filterText:
		return strings.Contains(strings.ToLower(recordSearchText(rec)), c.text)
	}
	return false
}

func matchAllConditions(rec Record, conds []filterCondition) bool {
	for _, c := range conds {
		if !c.matchesRecord(rec) {
			return false
		}
	}
	return true
}

func describeFilter(input string) string {
	conds := parseFilter(input)
	if len(conds) == 0 {
		return input
	}
	var parts []string
	for _, c := range conds {
		switch c.kind {
		case filterSchema:
			parts = append(parts, "schema:"+c.text)
		case filterTable:
			parts = append(parts, "table:"+c.text)
		case filterDML:
			parts = append(parts, "dml:"+c.text)
		case filterText:
			parts = append(parts, "text:"+c.text)
		}
	}
	return strings.Join(parts, " ")
}

// wrapFooterItems arranges items into lines that fit within the given width.
// Each line starts with "  " and items are separated by "  ".
func wrapFooterItems(items []string, width int) string {
	if width <= 0 {
		return "  " + strings.Join(items, "  ")
	}

	const prefix = "  "
	const sep = "  "

	var lines []string
	line := prefix

	for _, item := range items {
		switch {
		case line == prefix:
			line += item
		case len(line)+len(sep)+len(item) <= width:
			line += sep + item
		default:
			lines = append(lines, line)
			line = prefix + item
		}
	}
	if line != prefix {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
