package ports

import "time"

// Clock supplies the current time to use cases that compare against coupon windows.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}
