package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const ellipsis = "…"

// Table lays out ledger and template listings in aligned columns.
type Table struct {
	Headers []string
	Rows    [][]string
	// Right marks count columns aligned to the right.
	Right map[int]bool
	// Flex is the column shortened when the table is wider than MaxWidth.
	Flex int
	// MaxWidth is the terminal width in cells. Zero disables fitting.
	MaxWidth int
}

// Lines renders the header line followed by one line per row.
func (t Table) Lines() []string {
	widths := t.columnWidths()
	if len(widths) == 0 {
		return nil
	}
	t.fit(widths)

	lines := make([]string, 0, len(t.Rows)+1)
	if len(t.Headers) > 0 {
		lines = append(lines, t.line(t.Headers, widths))
	}
	for _, row := range t.Rows {
		lines = append(lines, t.line(row, widths))
	}
	return lines
}

func (t Table) columnWidths() []int {
	cols := len(t.Headers)
	for _, row := range t.Rows {
		cols = max(cols, len(row))
	}
	widths := make([]int, cols)
	for i := range widths {
		widths[i] = runewidth.StringWidth(cell(t.Headers, i))
		for _, row := range t.Rows {
			widths[i] = max(widths[i], runewidth.StringWidth(cell(row, i)))
		}
	}
	return widths
}

// fit narrows the flex column, never below its header or three cells.
func (t Table) fit(widths []int) {
	if t.MaxWidth <= 0 || t.Flex < 0 || t.Flex >= len(widths) {
		return
	}
	total := len(widths) - 1
	for _, w := range widths {
		total += w
	}
	over := total - t.MaxWidth
	if over <= 0 {
		return
	}
	floor := min(widths[t.Flex], max(runewidth.StringWidth(cell(t.Headers, t.Flex)), 3))
	widths[t.Flex] -= min(over, widths[t.Flex]-floor)
}

func (t Table) line(row []string, widths []int) string {
	var b strings.Builder
	for i, width := range widths {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(pad(cell(row, i), width, t.Right[i]))
	}
	out := strings.TrimRight(b.String(), " ")
	if t.MaxWidth > 0 && runewidth.StringWidth(out) > t.MaxWidth {
		out = runewidth.Truncate(out, t.MaxWidth, ellipsis)
	}
	return out
}

func pad(value string, width int, right bool) string {
	if runewidth.StringWidth(value) > width {
		value = runewidth.Truncate(value, width, ellipsis)
	}
	gap := strings.Repeat(" ", width-runewidth.StringWidth(value))
	if right {
		return gap + value
	}
	return value + gap
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
