package gps

import "gpsapp/internal/opt"

// MaxSatellites is the capacity of a SatTable.
const MaxSatellites = 8

// Satellite is the last known state of one tracked satellite. SVN 0 marks an
// unused slot.
type Satellite struct {
	SVN      int                `json:"svn"`
	LastSeen opt.Value[int64]   `json:"-"`
	Elev     opt.Value[float64] `json:"-"` // radians
	Azim     opt.Value[float64] `json:"-"` // radians
	SNR      opt.Value[int]     `json:"-"`
	Used     opt.Value[bool]    `json:"-"`
}

// SatUpdate carries the fields a decoder learned about one satellite. Unknown
// fields leave the stored value alone.
type SatUpdate struct {
	Time opt.Value[int64]
	Elev opt.Value[float64]
	Azim opt.Value[float64]
	SNR  opt.Value[int]
	Used opt.Value[bool]
}

type SatTable [MaxSatellites]Satellite

// Merge records u for svn. A satellite not already in the table takes over
// the slot with the oldest LastSeen (unknown counts as oldest). svn 0 is
// ignored.
func (t *SatTable) Merge(svn int, u SatUpdate) {
	if svn == 0 {
		return
	}
	i := t.find(svn)
	if i < 0 {
		if i = t.find(0); i < 0 {
			i = t.oldest()
		}
		t[i] = Satellite{SVN: svn}
	}
	s := &t[i]
	s.LastSeen = opt.Merge(s.LastSeen, u.Time)
	s.Elev = opt.Merge(s.Elev, u.Elev)
	s.Azim = opt.Merge(s.Azim, u.Azim)
	s.SNR = opt.Merge(s.SNR, u.SNR)
	s.Used = opt.Merge(s.Used, u.Used)
}

func (t *SatTable) find(svn int) int {
	for i := range t {
		if t[i].SVN == svn {
			return i
		}
	}
	return -1
}

func (t *SatTable) oldest() int {
	old := 0
	for i := 1; i < len(t); i++ {
		if olderThan(t[i].LastSeen, t[old].LastSeen) {
			old = i
		}
	}
	return old
}

func olderThan(a, b opt.Value[int64]) bool {
	av, aok := a.Get()
	bv, bok := b.Get()
	switch {
	case !aok:
		return bok
	case !bok:
		return false
	default:
		return av < bv
	}
}

// ClearUsed marks every occupied slot as not used in the fix.
func (t *SatTable) ClearUsed() {
	for i := range t {
		if t[i].SVN != 0 {
			t[i].Used = opt.Known(false)
		}
	}
}

func (t *SatTable) Tracked() int {
	n := 0
	for i := range t {
		if t[i].SVN != 0 {
			n++
		}
	}
	return n
}

func (t *SatTable) InUse() int {
	n := 0
	for i := range t {
		if t[i].SVN != 0 && t[i].Used.Or(false) {
			n++
		}
	}
	return n
}
