package scenario

import (
	"time"

	"github.com/adhocore/gronx"
)

// IsValidCron reports whether expr is a well-formed cron expression, the
// check applied to Scenario.Schedule when a scenario is loaded. Nothing
// starts a session from the schedule.
func IsValidCron(expr string) bool {
	return gronx.IsValid(expr)
}

// NextRun returns the next time expr should fire at or after now.
func NextRun(expr string, now time.Time) (time.Time, error) {
	g := gronx.New()
	return g.NextTickAfter(expr, now, false)
}
