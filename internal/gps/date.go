package gps

const (
	gpsEpochYear = 1980
	// Leap days counted by y/4 - y/100 + y/400 for years before 1980.
	gpsEpochLeaps = 479
	// Seconds between 1970-01-01 and 1980-01-01.
	unixToGPSEpoch = 315532800
)

var monthDays = [12]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// DateToUnix converts a calendar date (full year, month 1-12, day 1-31) to
// Unix seconds at midnight UTC. Invalid months yield 0.
func DateToUnix(year, month, day int) int64 {
	if month < 1 || month > 12 {
		return 0
	}
	days := 365*(year-gpsEpochYear) +
		year/4 - year/100 + year/400 - gpsEpochLeaps +
		monthDays[month-1] +
		day - 1

	leap := year%4 == 0 && (year%100 != 0 || year%400 == 0)
	if leap && month <= 2 {
		days--
	}
	return int64(days)*86400 + unixToGPSEpoch
}
