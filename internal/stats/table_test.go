package stats

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestTableAlignsColumns(t *testing.T) {
	table := Table{
		Headers: []string{"Template", "Sessions", "Copies"},
		Rows: [][]string{
			{"Classic", "12", "24"},
			{"Strip", "3", "3"},
		},
		Right: map[int]bool{1: true, 2: true},
	}

	lines := table.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Template Sessions Copies" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Classic        12     24" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "Strip           3      3" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestTableUsesCellWidth(t *testing.T) {
	lines := Table{
		Headers: []string{"Name", "N"},
		Rows:    [][]string{{"婚礼", "1"}, {"ab", "2"}},
		Right:   map[int]bool{1: true},
	}.Lines()
	if lines[1] != "婚礼 1" {
		t.Fatalf("unexpected wide row: %q", lines[1])
	}
	if lines[2] != "ab   2" {
		t.Fatalf("unexpected narrow row: %q", lines[2])
	}
}

func TestTableShortensFlexColumnToWidth(t *testing.T) {
	table := Table{
		Headers:  []string{"Template", "Sessions", "Copies"},
		Rows:     [][]string{{"Grand Summer Wedding Party", "12", "24"}},
		Right:    map[int]bool{1: true, 2: true},
		MaxWidth: 30,
	}
	lines := table.Lines()
	if lines[0] != "Template       Sessions Copies" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Grand Summer …       12     24" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
}

func TestTableTruncatesWhenFlexCannotShrink(t *testing.T) {
	table := Table{
		Headers:  []string{"Template", "Sessions", "Copies"},
		Rows:     [][]string{{"Grand Summer Wedding Party", "12", "24"}},
		MaxWidth: 12,
	}
	for _, line := range table.Lines() {
		if runewidth.StringWidth(line) > 12 || !strings.HasSuffix(line, "…") {
			t.Fatalf("expected truncated line, got %q", line)
		}
	}
}

func TestTableWithoutColumns(t *testing.T) {
	if lines := (Table{}).Lines(); lines != nil {
		t.Fatalf("expected no lines, got %v", lines)
	}
}
