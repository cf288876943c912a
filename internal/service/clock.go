package service

import "time"

// Clock returns the current instant. Services take one so expiry decisions
// can be tested at exact boundaries.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func orSystemClock(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}
