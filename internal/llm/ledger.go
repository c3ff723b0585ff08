package llm

import (
	"math"
	"sync"
)

// Ledger accumulates spend and token usage for exactly one job execution.
// It is created at dispatch and folded into the job result at completion;
// it is never shared across jobs.
type Ledger struct {
	mu           sync.Mutex
	totalCost    float64
	totalTokens  int
	requestCount int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record adds one accepted call's cost and tokens to the running totals.
func (l *Ledger) Record(cost float64, usage TokenUsage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalCost += cost
	l.totalTokens += usage.Total()
	l.requestCount++
}

// TotalCost returns the running spend in USD.
func (l *Ledger) TotalCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalCost
}

// TotalTokens returns the running token count.
func (l *Ledger) TotalTokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalTokens
}

// RequestCount returns the number of accepted calls.
func (l *Ledger) RequestCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requestCount
}

// Stats returns the usage summary folded into job results and error events.
func (l *Ledger) Stats() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	avg := 0.0
	if l.requestCount > 0 {
		avg = l.totalCost / float64(l.requestCount)
	}
	return map[string]any{
		"total_cost":               round4(l.totalCost),
		"total_tokens":             l.totalTokens,
		"request_count":            l.requestCount,
		"average_cost_per_request": round4(avg),
	}
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
