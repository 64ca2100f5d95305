package fulfillment

import "fmt"

// RetryCounter bounds the number of attempts spent on one order or transfer record.
type RetryCounter struct {
	Max    int
	format string
}

// ProcessingAttempts bounds polling of a submitted backend order.
func ProcessingAttempts(max int) RetryCounter {
	return RetryCounter{Max: max, format: "Max processing attempts reached (%d)."}
}

// RunningRetries bounds polling of a running batch transfer.
func RunningRetries(max int) RetryCounter {
	return RetryCounter{Max: max, format: "Max retries (%d) exceeded."}
}

// Reschedules bounds rescheduling of a batch transfer after transient preview errors.
func Reschedules(max int) RetryCounter {
	return RetryCounter{Max: max, format: "Max reschedules (%d) exceeded."}
}

// Advance increments count and reports whether the maximum has been reached.
func (c RetryCounter) Advance(count int) (next int, exhausted bool) {
	next = count + 1
	return next, next >= c.Max
}

// Reason is the failure message recorded on exhaustion.
func (c RetryCounter) Reason() string {
	return fmt.Sprintf(c.format, c.Max)
}
