package services

import "time"

const day = 24 * time.Hour

// DaysRemaining returns the whole days between now and expiry, rounded
// down. Any instant before now gives a negative value.
func DaysRemaining(expiry, now time.Time) int {
	d := expiry.Sub(now)
	n := int(d / day)
	if d < 0 && d%day != 0 {
		n--
	}
	return n
}
