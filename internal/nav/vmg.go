package nav

import (
	"math"

	"gpsapp/internal/geo"
)

// DefaultVMGShift weights each new sample by 1/8.
const DefaultVMGShift = 3

// VMG is an integer exponential moving average of velocity made good in
// meters per hour.
type VMG struct {
	shift uint
	acc   int64
}

func NewVMG(shift uint) *VMG {
	if shift == 0 {
		shift = DefaultVMGShift
	}
	return &VMG{shift: shift}
}

// Sample is the component of the (east, north) velocity in m/s directed
// from pos at target, in meters per hour. It is 0 when pos is target.
func Sample(pos, target geo.Point, east, north float64) int {
	b, ok := geo.Bearing(pos, target)
	if !ok {
		return 0
	}
	speed := math.Hypot(east, north)
	if speed == 0 {
		return 0
	}
	angle := math.Atan2(east, north) - b
	return int(speed * math.Cos(angle) * 3600)
}

func (v *VMG) Add(sample int) {
	v.acc += int64(sample) - (v.acc >> v.shift)
}

// Average is the current smoothed value in meters per hour.
func (v *VMG) Average() int {
	return int(v.acc >> v.shift)
}

func (v *VMG) Reset() {
	v.acc = 0
}
