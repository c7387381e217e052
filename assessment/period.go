/*
period.go - Audit period derivation

PURPOSE:
  Derives assessment names and period boundaries from a project's
  audit frequency. Names are human-facing labels like
  "Quarterly-Q2-2026"; boundaries bound when the cycle can move to
  InProgress.
*/
package assessment

import (
	"fmt"
	"time"
)

// Period is one audit cycle window.
type Period struct {
	Start time.Time
	End   time.Time
}

// CurrentPeriod returns the period containing now for the given
// frequency. Boundaries are calendar-aligned: months, quarters,
// halves and years all start on the first day at midnight UTC.
func CurrentPeriod(freq AuditFrequency, now time.Time) Period {
	now = now.UTC()
	year := now.Year()
	switch freq {
	case Monthly:
		start := time.Date(year, now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Second)}
	case Quarterly:
		q := (int(now.Month()) - 1) / 3
		start := time.Date(year, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 3, 0).Add(-time.Second)}
	case HalfYearly:
		h := (int(now.Month()) - 1) / 6
		start := time.Date(year, time.Month(h*6+1), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 6, 0).Add(-time.Second)}
	default: // yearly
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Second)}
	}
}

// AssessmentName formats the canonical cycle name for a period start.
//
//	Monthly     Monthly-Jan-2026
//	Quarterly   Quarterly-Q1-2026
//	HalfYearly  Half-Yearly-H1-2026
//	Yearly      Yearly-Y-2026
func AssessmentName(freq AuditFrequency, start time.Time) string {
	start = start.UTC()
	year := start.Year()
	switch freq {
	case Monthly:
		return fmt.Sprintf("Monthly-%s-%d", start.Month().String()[:3], year)
	case Quarterly:
		return fmt.Sprintf("Quarterly-Q%d-%d", (int(start.Month())-1)/3+1, year)
	case HalfYearly:
		return fmt.Sprintf("Half-Yearly-H%d-%d", (int(start.Month())-1)/6+1, year)
	default:
		return fmt.Sprintf("Yearly-Y-%d", year)
	}
}
