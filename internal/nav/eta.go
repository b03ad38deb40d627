package nav

import "fmt"

// ETA renders the time to cover dist meters at vmg meters per hour.
func ETA(dist, vmg int) string {
	if dist == 0 {
		return "00m00"
	}
	if vmg < 0 {
		vmg = -vmg
	}
	if vmg == 0 {
		return "--?--"
	}
	sec := int64(dist) * 3600 / int64(vmg)
	hours := sec / 3600
	mins := (sec / 60) % 60
	switch {
	case hours >= 100:
		return "**:**"
	case hours > 0:
		return fmt.Sprintf("%02dh%02d", hours, mins)
	default:
		return fmt.Sprintf("%02dm%02d", mins, sec%60)
	}
}
