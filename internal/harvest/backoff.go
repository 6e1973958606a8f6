package harvest

import "time"

// RetryDelay maps a claim attempt number to the wait before the job becomes
// eligible again. The schedule is flat beyond the second retry on purpose;
// with the default budget of 3 attempts a longer tail never applies.
func RetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return time.Minute
	}
	return 3 * time.Minute
}
