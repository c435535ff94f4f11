// Package stats contains ledger statistics and text reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/tuibooth/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Totals summarizes a set of sessions.
type Totals struct {
	Sessions   int
	Uploaded   int
	Copies     int
	UploadRate float64
	First      time.Time
	Last       time.Time
}

// DayCount is the activity of one calendar day.
type DayCount struct {
	Day      time.Time
	Sessions int
	Copies   int
}

// Summarize computes totals for sessions.
func Summarize(sessions []model.SessionAggregate) Totals {
	var t Totals
	for i, s := range sessions {
		t.Sessions++
		t.Copies += s.Copies
		if s.Uploaded {
			t.Uploaded++
		}
		if i == 0 || s.EndedAt.Before(t.First) {
			t.First = s.EndedAt
		}
		if s.EndedAt.After(t.Last) {
			t.Last = s.EndedAt
		}
	}
	if t.Sessions > 0 {
		t.UploadRate = float64(t.Uploaded) / float64(t.Sessions)
	}
	return t
}

// DailyCounts groups sessions by local calendar day, oldest first.
// Days without sessions between the first and last day are included.
func DailyCounts(sessions []model.SessionAggregate) []DayCount {
	if len(sessions) == 0 {
		return nil
	}
	byDay := map[time.Time]*DayCount{}
	var first, last time.Time
	for i, s := range sessions {
		day := truncateDay(s.EndedAt)
		if i == 0 || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
		dc, ok := byDay[day]
		if !ok {
			dc = &DayCount{Day: day}
			byDay[day] = dc
		}
		dc.Sessions++
		dc.Copies += s.Copies
	}
	var out []DayCount
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if dc, ok := byDay[day]; ok {
			out = append(out, *dc)
			continue
		}
		out = append(out, DayCount{Day: day})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints the headline totals.
func RenderSummary(w io.Writer, t Totals) error {
	if t.Sessions == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", t.Sessions),
		fmt.Sprintf("Uploaded: %d (%.1f%%)", t.Uploaded, t.UploadRate*100),
		fmt.Sprintf("Copies printed: %d", t.Copies),
		fmt.Sprintf("Range: %s .. %s", t.First.Format(time.DateOnly), t.Last.Format(time.DateOnly)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTemplateTable prints per-template totals, shortening long template
// names to fit width cells.
func RenderTemplateTable(w io.Writer, aggs []model.TemplateAggregate, width int) error {
	if len(aggs) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per-Template"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(aggs))
	for _, agg := range aggs {
		rows = append(rows, []string{agg.Template, fmt.Sprintf("%d", agg.Sessions), fmt.Sprintf("%d", agg.Copies)})
	}
	table := Table{
		Headers:  []string{"Template", "Sessions", "Copies"},
		Rows:     rows,
		Right:    map[int]bool{1: true, 2: true},
		MaxWidth: width,
	}
	for _, line := range table.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderDaily prints one bar per day scaled to width cells.
func RenderDaily(w io.Writer, days []DayCount, width int) error {
	if len(days) == 0 {
		return nil
	}
	if width <= 0 {
		width = 40
	}
	peak := 0
	values := make([]float64, len(days))
	for i, d := range days {
		peak = max(peak, d.Sessions)
		values[i] = float64(d.Sessions)
	}
	if _, err := fmt.Fprintf(w, "Sessions per day  %s\n", Sparkline(values)); err != nil {
		return err
	}
	for _, d := range days {
		bar := 0
		if peak > 0 {
			bar = int(math.Round(float64(d.Sessions) / float64(peak) * float64(width)))
		}
		if _, err := fmt.Fprintf(w, "%s %s %d\n", d.Day.Format(time.DateOnly), strings.Repeat("#", bar), d.Sessions); err != nil {
			return err
		}
	}
	return nil
}

// Render prints the full text report.
func Render(w io.Writer, r Report, width int) error {
	if err := RenderSummary(w, r.Totals); err != nil {
		return err
	}
	if r.Totals.Sessions == 0 {
		return nil
	}
	if err := RenderTemplateTable(w, r.Templates, width); err != nil {
		return err
	}
	return RenderDaily(w, r.Daily, width)
}
