package orchestrator

import "errors"

// Sentinel errors for executor failures.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownJobType indicates a job type with no registered executor.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrNoWork indicates an empty resolved work set (no documents, no
	// sub-queries). Nothing to do is misconfiguration, not silent success.
	ErrNoWork = errors.New("nothing to process")

	// ErrResumptionData indicates a checkpoint whose state does not decode
	// into the shape the executor expects. Fatal; corrupt checkpoints are
	// never healed or discarded automatically.
	ErrResumptionData = errors.New("invalid checkpoint state")

	// ErrAlreadyRunning indicates an in-process execution already drives
	// this job.
	ErrAlreadyRunning = errors.New("job execution already in flight")

	// errHalted signals a cooperative pause/stop observed between units of
	// work. The run loop unwinds without a fail transition: the control
	// path already recorded the status change.
	errHalted = errors.New("execution halted")
)
