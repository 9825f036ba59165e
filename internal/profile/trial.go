package profile

import "time"

const day = 24 * time.Hour

// DaysLeft returns trialDays minus the whole days elapsed since trialStart,
// floored toward negative infinity and clamped at zero. A trialStart in the
// future yields more than trialDays; no upper clamp is applied.
func DaysLeft(now, trialStart time.Time, trialDays int) int {
	elapsed := now.Sub(trialStart)
	daysPassed := int(elapsed / day)
	if elapsed < 0 && elapsed%day != 0 {
		daysPassed--
	}
	left := trialDays - daysPassed
	if left < 0 {
		return 0
	}
	return left
}
