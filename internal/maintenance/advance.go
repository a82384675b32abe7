package maintenance

import "time"

// Advance returns the next due date after d for the given frequency. The
// result is always strictly later than d. Month-based frequencies clamp the
// day of month to the last valid day of the target month, so Jan 31 monthly
// advances to Feb 28 (29 in leap years).
func Advance(d time.Time, freq Frequency) (time.Time, error) {
	switch freq {
	case Daily:
		return d.AddDate(0, 0, 1), nil
	case Weekly:
		return d.AddDate(0, 0, 7), nil
	case Monthly:
		return addMonthsClamped(d, 1), nil
	case Quarterly:
		return addMonthsClamped(d, 3), nil
	default:
		return time.Time{}, Invalid("frequency", "unknown frequency")
	}
}

func addMonthsClamped(d time.Time, months int) time.Time {
	y, m, day := d.Date()
	h, min, sec := d.Clock()
	first := time.Date(y, m+time.Month(months), 1, h, min, sec, d.Nanosecond(), d.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, h, min, sec, d.Nanosecond(), d.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
