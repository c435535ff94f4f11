package stats

import (
	"context"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// Ledger is the read side of the store used for reporting.
type Ledger interface {
	ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.SessionAggregate, error)
	TemplateTotals(ctx context.Context, filter model.SessionFilter) ([]model.TemplateAggregate, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions  []model.SessionAggregate
	Templates []model.TemplateAggregate
	Totals    Totals
	Daily     []DayCount
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, ledger Ledger, filter model.SessionFilter) (Report, error) {
	sessions, err := ledger.ListSessions(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	templates, err := ledger.TemplateTotals(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Sessions:  sessions,
		Templates: templates,
		Totals:    Summarize(sessions),
		Daily:     DailyCounts(sessions),
	}, nil
}
