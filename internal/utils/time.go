package utils

import "time"

// Now returns the current UTC time truncated to microsecond precision, which
// is what postgres timestamp columns store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
