package websocket

import "time"

const (
	retryImmediateAttempts = 5
	retryShortAttempts     = 10
	retryShortDelay        = 10 * time.Second
	retryLongDelay         = 15 * time.Second
)

// ReconnectDelay returns how long to wait before reconnect attempt number
// retryCount (zero based): five immediate retries, ten after 10s, then 15s.
func ReconnectDelay(retryCount int) time.Duration {
	switch {
	case retryCount < retryImmediateAttempts:
		return 0
	case retryCount < retryImmediateAttempts+retryShortAttempts:
		return retryShortDelay
	default:
		return retryLongDelay
	}
}
