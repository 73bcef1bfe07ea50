// Package sessionchecker reports conversation store occupancy.
package sessionchecker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omnirelay/omni/internal/conversation"
	"github.com/omnirelay/omni/internal/healthcheck"
)

const checkTypeSessions = "conversation.sessions"

// StatsSource reads store statistics.
type StatsSource interface {
	Stats() conversation.Stats
}

var _ healthcheck.Checker = (*Checker)(nil)

// Checker reports how many sessions and turns are held in memory.
type Checker struct {
	logger *slog.Logger
	source StatsSource
	// warnTurns marks the report as warn above this many turns. Zero disables it.
	warnTurns int
}

// NewChecker creates a session store checker.
func NewChecker(log *slog.Logger, source StatsSource, warnTurns int) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:    log.With(slog.String("checker", "healthcheck_sessions")),
		source:    source,
		warnTurns: warnTurns,
	}
}

// ListChecks returns a single store occupancy check.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx != nil && ctx.Err() != nil {
		return []healthcheck.CheckResult{}
	}
	if c.source == nil {
		return []healthcheck.CheckResult{{
			ID:      checkTypeSessions,
			Type:    checkTypeSessions,
			Status:  healthcheck.StatusWarn,
			Summary: "Session store is not available.",
		}}
	}
	stats := c.source.Stats()
	item := healthcheck.CheckResult{
		ID:      checkTypeSessions,
		Type:    checkTypeSessions,
		Status:  healthcheck.StatusOK,
		Summary: fmt.Sprintf("%d sessions, %d turns in memory.", stats.Sessions, stats.Turns),
		Metadata: map[string]any{
			"sessions": stats.Sessions,
			"turns":    stats.Turns,
		},
	}
	if c.warnTurns > 0 && stats.Turns > c.warnTurns {
		item.Status = healthcheck.StatusWarn
		item.Detail = fmt.Sprintf("turn count above %d", c.warnTurns)
		c.logger.Warn("session store is large", slog.Int("turns", stats.Turns))
	}
	return []healthcheck.CheckResult{item}
}
