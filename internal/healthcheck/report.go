package healthcheck

import (
	"context"
	"time"
)

// Report is the aggregated result of every registered checker.
type Report struct {
	Status    string        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Healthy reports whether no check failed.
func (r Report) Healthy() bool {
	return r.Status != StatusError
}

// Collect runs every checker and folds the results into one report. The
// report status is the worst status seen; warn and unknown only degrade an
// ok report to warn.
func Collect(ctx context.Context, checkers ...Checker) Report {
	report := Report{Status: StatusOK, Checks: []CheckResult{}, CheckedAt: time.Now().UTC()}
	for _, checker := range checkers {
		if checker == nil {
			continue
		}
		for _, item := range checker.ListChecks(ctx) {
			report.Checks = append(report.Checks, item)
			switch item.Status {
			case StatusError:
				report.Status = StatusError
			case StatusWarn, StatusUnknown:
				if report.Status == StatusOK {
					report.Status = StatusWarn
				}
			}
		}
	}
	return report
}
