package mcsr

import (
	"net/http"
	"time"
)

const (
	// MaxAttempts is the ceiling on physical requests per logical fetch
	MaxAttempts = 5
	// RetryDelay is the constant wait between attempts (no jitter, no backoff)
	RetryDelay = 5 * time.Second
)

// Decision is what the fetch loop should do after an attempt
type Decision string

const (
	DecisionSucceed Decision = "succeed"
	DecisionRetry   Decision = "retry"
	DecisionFail    Decision = "fail"
)

// Decide maps the outcome of attempt number `attempt` (1-based) to the next step.
// Rate limiting and transport errors share one retry budget; any other non-200 fails at once.
func Decide(attempt, maxAttempts, status int, transportErr error) Decision {
	if transportErr == nil && status == http.StatusOK {
		return DecisionSucceed
	}
	if transportErr != nil || status == http.StatusTooManyRequests {
		if attempt < maxAttempts {
			return DecisionRetry
		}
		return DecisionFail
	}
	return DecisionFail
}
