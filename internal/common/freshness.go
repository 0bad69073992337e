package common

import "time"

// FreshnessQuote is how long a displayed quote counts as live: three missed
// polls at the default interval.
const FreshnessQuote = 30 * time.Second

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	return IsFreshAt(updated, time.Now(), ttl)
}

// IsFreshAt is IsFresh against an explicit clock reading.
func IsFreshAt(updated, now time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
