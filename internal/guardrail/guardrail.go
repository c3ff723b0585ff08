// Package guardrail enforces the time and cost ceilings consulted before
// every paid unit of work inside the workflow executors.
package guardrail

import (
	"errors"
	"fmt"
	"time"

	"github.com/knowledgetools/agentkb/internal/llm"
)

// Sentinel errors for guardrail violations. Both are fatal to the job;
// there is no soft-warning state.
var (
	ErrTimeLimit = errors.New("time limit reached")
	ErrCostLimit = errors.New("cost limit reached")
)

// Limits holds the effective ceilings for one job execution, after per-job
// config overrides have been applied against the system defaults.
type Limits struct {
	MaxRuntime time.Duration
	MaxCostUSD float64
}

// Monitor checks elapsed wall-clock time and ledger spend against the limits.
// One monitor serves exactly one job execution.
type Monitor struct {
	started time.Time
	limits  Limits
	ledger  *llm.Ledger

	now func() time.Time
}

// NewMonitor creates a monitor anchored at the execution start time. The
// clock must be the same one that produced started; nil means time.Now.
func NewMonitor(started time.Time, limits Limits, ledger *llm.Ledger, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		started: started,
		limits:  limits,
		ledger:  ledger,
		now:     now,
	}
}

// Check returns a fatal error if either ceiling is breached.
func (m *Monitor) Check() error {
	elapsed := m.now().Sub(m.started)
	if elapsed > m.limits.MaxRuntime {
		return fmt.Errorf("%w: %.1f minutes > %.1f minutes",
			ErrTimeLimit, elapsed.Minutes(), m.limits.MaxRuntime.Minutes())
	}
	if m.ledger.TotalCost() >= m.limits.MaxCostUSD {
		return fmt.Errorf("%w: $%.4f", ErrCostLimit, m.ledger.TotalCost())
	}
	return nil
}

// Elapsed returns the wall-clock time since execution start.
func (m *Monitor) Elapsed() time.Duration {
	return m.now().Sub(m.started)
}
