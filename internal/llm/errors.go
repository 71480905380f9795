package llm

import "fmt"

// GlobalRequestTimeoutError is raised when a turn exceeds its configured
// wall-clock budget.
type GlobalRequestTimeoutError struct {
	TimeoutSeconds int
}

func (e *GlobalRequestTimeoutError) Error() string {
	return fmt.Sprintf("llm: request exceeded global timeout of %ds", e.TimeoutSeconds)
}

// UserAbortError wraps cooperative cancellation requested by the user, kept
// distinct from GlobalRequestTimeoutError per the error taxonomy.
type UserAbortError struct {
	Trigger string
}

func (e *UserAbortError) Error() string {
	return fmt.Sprintf("llm: aborted (%s)", e.Trigger)
}

func (e *UserAbortError) Unwrap() error { return Cancelled }
