package healthcheck

import (
	"context"
	"testing"
)

type testChecker struct {
	items []CheckResult
}

func (c *testChecker) ListChecks(context.Context) []CheckResult {
	return c.items
}

func TestCollectWorstStatusWins(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		statuses []string
		want     string
	}{
		{name: "empty", want: StatusOK},
		{name: "all ok", statuses: []string{StatusOK, StatusOK}, want: StatusOK},
		{name: "warn", statuses: []string{StatusOK, StatusWarn}, want: StatusWarn},
		{name: "unknown", statuses: []string{StatusUnknown}, want: StatusWarn},
		{name: "error", statuses: []string{StatusWarn, StatusError, StatusOK}, want: StatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			checker := &testChecker{}
			for _, status := range tc.statuses {
				checker.items = append(checker.items, CheckResult{ID: "x", Status: status})
			}
			report := Collect(context.Background(), checker, nil)
			if report.Status != tc.want {
				t.Fatalf("want %s, got %s", tc.want, report.Status)
			}
			if len(report.Checks) != len(tc.statuses) {
				t.Fatalf("expected %d checks, got %d", len(tc.statuses), len(report.Checks))
			}
			if report.Healthy() != (tc.want != StatusError) {
				t.Fatalf("unexpected healthy flag for %s", tc.want)
			}
		})
	}
}
