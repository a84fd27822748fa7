package repdig

import "time"

// MaxBackoff is the ceiling of Backoff.
const MaxBackoff = 60 * time.Second

// Backoff returns how long to wait before retry number `attempt` (zero based),
// min(base * 2^attempt, MaxBackoff). It saturates at MaxBackoff instead of
// overflowing for large attempts.
func Backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if base >= MaxBackoff {
		return MaxBackoff
	}
	delay := base
	for i := 0; i < attempt; i++ {
		if delay >= MaxBackoff/2 {
			return MaxBackoff
		}
		delay *= 2
	}
	return delay
}
