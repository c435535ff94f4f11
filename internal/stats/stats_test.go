package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/tuibooth/internal/model"
)

func TestDailyCountsFillsGaps(t *testing.T) {
	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sessions := []model.SessionAggregate{
		{ID: "a", EndedAt: day, Copies: 2},
		{ID: "b", EndedAt: day.Add(3 * time.Hour), Copies: 1},
		{ID: "c", EndedAt: day.AddDate(0, 0, 2), Copies: 2},
	}
	days := DailyCounts(sessions)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %+v", days)
	}
	if days[0].Sessions != 2 || days[0].Copies != 3 {
		t.Fatalf("unexpected first day %+v", days[0])
	}
	if days[1].Sessions != 0 || days[2].Sessions != 1 {
		t.Fatalf("unexpected gap handling %+v", days)
	}
}

func TestSummarize(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	totals := Summarize([]model.SessionAggregate{
		{EndedAt: t0.Add(time.Hour), Uploaded: true, Copies: 2},
		{EndedAt: t0, Uploaded: false, Copies: 1},
	})
	if totals.Sessions != 2 || totals.Uploaded != 1 || totals.Copies != 3 || totals.UploadRate != 0.5 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if !totals.First.Equal(t0) || !totals.Last.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected range %+v", totals)
	}
}

func TestSparklineFlat(t *testing.T) {
	if got := Sparkline([]float64{2, 2, 2}); got != "+++" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
	if got := Sparkline([]float64{0, 10}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
}

func TestRenderEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Report{}, 20); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No sessions found." {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRenderDailyScalesBars(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := RenderDaily(&buf, []DayCount{{Day: day, Sessions: 4}, {Day: day.AddDate(0, 0, 1), Sessions: 2}}, 10)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected lines %q", lines)
	}
	if lines[1] != "2025-06-01 ########## 4" || lines[2] != "2025-06-02 ##### 2" {
		t.Fatalf("unexpected bars %q", lines[1:])
	}
}
