package listener

import (
	"time"
)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// Backoff returns the reconnect delay for a given retry count.
// baseDelay * 2^retryCount, capped at maxDelay.
func Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}

	delay := baseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}
