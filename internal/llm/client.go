package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/knowledgetools/agentkb/internal/metrics"
)

// Policy configures the safety envelope around the raw transport.
type Policy struct {
	// Model is the default model identifier for requests that leave it blank.
	Model string

	// MaxRetries bounds the attempt count per call.
	MaxRetries int

	// Timeout is the wall-clock limit for a single attempt.
	Timeout time.Duration

	// MinInterval is the floor between consecutive calls from this client.
	MinInterval time.Duration

	// CostCeilingUSD is the job's spend limit, enforced before and after
	// every call.
	CostCeilingUSD float64
}

// DefaultPolicy returns the source policy: 3 attempts, 60s timeout,
// 1s spacing.
func DefaultPolicy(model string, costCeiling float64) Policy {
	return Policy{
		Model:          model,
		MaxRetries:     3,
		Timeout:        60 * time.Second,
		MinInterval:    time.Second,
		CostCeilingUSD: costCeiling,
	}
}

// Client is the metered LLM client. It wraps a Transport with cost tracking,
// fixed-rate limiting, bounded retries and timeout protection. One Client
// serves exactly one job execution and shares its Ledger with the guardrail
// monitor.
type Client struct {
	transport Transport
	ledger    *Ledger
	policy    Policy
	collector *metrics.Collector

	// OnRetry, if set, is invoked before each backoff sleep. Failures in the
	// callback must not abort the call; it exists for audit events only.
	OnRetry func(attempt int, err error)

	lastRequest time.Time

	// Injectable time source and sleeper for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a metered client around a transport. The ledger must be
// scoped to the same job execution as the client.
func NewClient(transport Transport, ledger *Ledger, policy Policy, collector *metrics.Collector) *Client {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 3
	}
	if policy.Timeout <= 0 {
		policy.Timeout = 60 * time.Second
	}
	return &Client{
		transport: transport,
		ledger:    ledger,
		policy:    policy,
		collector: collector,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Ledger returns the ledger shared with the guardrail monitor.
func (c *Client) Ledger() *Ledger {
	return c.ledger
}

// Complete makes one completion call with retries and safety checks.
//
// Call rejection rules:
//   - running cost already at the ceiling: ErrBudgetExceeded, no network call
//   - a successful call whose cost would push spend over the ceiling:
//     ErrBudgetExceeded, ledger untouched (the remote charge is accepted as
//     wasted; this is surfaced, never silently swallowed)
//
// Retry rules, bounded by MaxRetries:
//   - timeout: exponential backoff 2^attempt seconds, skipped on the final attempt
//   - rate limit: linear backoff 5*(attempt+1) seconds, regardless of attempts left
//   - budget-marked errors: never retried
//   - any other error: exponential backoff unless it is the final attempt
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	if c.ledger.TotalCost() >= c.policy.CostCeilingUSD {
		return nil, fmt.Errorf("%w: $%.4f >= $%.4f", ErrBudgetExceeded, c.ledger.TotalCost(), c.policy.CostCeilingUSD)
	}

	if req.Model == "" {
		req.Model = c.policy.Model
	}

	// Fixed-rate limiter: enforce the spacing floor between calls.
	if !c.lastRequest.IsZero() {
		if since := c.now().Sub(c.lastRequest); since < c.policy.MinInterval {
			if err := c.sleep(ctx, c.policy.MinInterval-since); err != nil {
				return nil, err
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.policy.MaxRetries; attempt++ {
		slog.Info("LLM call attempt", "attempt", attempt+1, "max_retries", c.policy.MaxRetries, "model", req.Model)

		callCtx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
		start := c.now()
		content, usage, err := c.transport.Generate(callCtx, req)
		duration := time.Since(start)
		cancel()

		if err == nil {
			price := PriceFor(req.Model)
			cost := price.Cost(usage)

			if c.ledger.TotalCost()+cost > c.policy.CostCeilingUSD {
				slog.Warn("cost limit would be exceeded",
					"current", c.ledger.TotalCost(), "request_cost", cost, "ceiling", c.policy.CostCeilingUSD)
				return nil, fmt.Errorf("%w: $%.4f would exceed $%.4f",
					ErrBudgetExceeded, c.ledger.TotalCost()+cost, c.policy.CostCeilingUSD)
			}

			c.ledger.Record(cost, usage)
			c.lastRequest = c.now()
			if c.collector != nil {
				c.collector.RecordLLMCall(duration, usage.InputTokens, usage.OutputTokens)
			}

			slog.Info("LLM call succeeded",
				"input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens,
				"cost", cost, "total_cost", c.ledger.TotalCost())

			return &Completion{
				Content: content,
				Usage:   usage,
				Cost:    cost,
				Model:   req.Model,
			}, nil
		}

		// Parent cancellation is not a remote failure; stop immediately.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if isBudgetError(err) {
			return nil, err
		}

		lastErr = err
		isTimeout := errors.Is(err, context.DeadlineExceeded)

		switch {
		case isRateLimitError(err):
			wait := time.Duration(5*(attempt+1)) * time.Second
			slog.Warn("LLM call rate limited", "attempt", attempt+1, "wait", wait, "error", err)
			c.notifyRetry(attempt, err)
			if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
				return nil, sleepErr
			}
		case attempt < c.policy.MaxRetries-1:
			wait := time.Duration(1<<attempt) * time.Second
			slog.Warn("LLM call failed, backing off", "attempt", attempt+1, "timeout", isTimeout, "wait", wait, "error", err)
			c.notifyRetry(attempt, err)
			if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
				return nil, sleepErr
			}
		default:
			slog.Warn("LLM call failed on final attempt", "attempt", attempt+1, "error", err)
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.policy.MaxRetries, lastErr)
}

func (c *Client) notifyRetry(attempt int, err error) {
	if c.OnRetry != nil {
		c.OnRetry(attempt, err)
	}
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
