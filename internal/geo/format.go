package geo

import (
	"fmt"
	"strings"
)

type Units int

const (
	Metric Units = iota
	Imperial
)

func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric":
		return Metric, nil
	case "imperial":
		return Imperial, nil
	default:
		return Metric, fmt.Errorf("geo: unknown units %q", s)
	}
}

func (u Units) String() string {
	if u == Imperial {
		return "imperial"
	}
	return "metric"
}

// FormatDistance renders meters for a narrow display column: whole meters or
// feet up close, then fractional km or miles with fewer decimals as the
// distance grows.
func FormatDistance(meters int, u Units) string {
	if meters < 0 {
		meters = 0
	}
	if u == Imperial {
		if meters < 161 {
			return fmt.Sprintf("%dft", meters*10000/3048)
		}
		centimiles := meters * 1000 / 16093
		switch {
		case centimiles < 1000:
			return fmt.Sprintf("%d.%02dmi", centimiles/100, centimiles%100)
		case centimiles < 10000:
			return fmt.Sprintf("%d.%dmi", centimiles/100, (centimiles/10)%10)
		default:
			return fmt.Sprintf("%dmi", centimiles/100)
		}
	}

	if meters < 1000 {
		return fmt.Sprintf("%dm", meters)
	}
	decameters := meters / 10
	switch {
	case decameters < 1000:
		return fmt.Sprintf("%d.%02dkm", decameters/100, decameters%100)
	case decameters < 10000:
		return fmt.Sprintf("%d.%dkm", decameters/100, (decameters/10)%10)
	default:
		return fmt.Sprintf("%dkm", decameters/100)
	}
}
