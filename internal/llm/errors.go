package llm

import (
	"errors"
	"strings"
)

// Sentinel errors for metered client failures.
// Use errors.Is() to check for these in calling code.
var (
	// ErrBudgetExceeded indicates the call was rejected because it reached
	// or would breach the cost ceiling. Never retried, always fatal to the job.
	ErrBudgetExceeded = errors.New("cost limit reached")

	// ErrRetriesExhausted indicates all attempts failed; the wrapped message
	// carries the last observed failure reason.
	ErrRetriesExhausted = errors.New("all retry attempts failed")
)

// isRateLimitError reports whether the error is an explicit rate-limit signal
// from the remote service (HTTP 429 or a rate_limit marker in the message).
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429")
}

// isBudgetError reports whether the error text indicates a cost or budget
// problem. Such errors propagate immediately even when attempts remain.
func isBudgetError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBudgetExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cost") || strings.Contains(msg, "budget") ||
		strings.Contains(msg, "credit balance")
}
