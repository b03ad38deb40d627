package gps

import (
	"testing"

	"gpsapp/internal/opt"
)

func seen(t int64) SatUpdate { return SatUpdate{Time: opt.Known(t)} }

func TestSatTable_MergeUpdatesExistingSlot(t *testing.T) {
	var tab SatTable
	tab.Merge(7, SatUpdate{Time: opt.Known[int64](1), SNR: opt.Known(30)})
	tab.Merge(7, SatUpdate{Time: opt.Known[int64](2), Elev: opt.Known(0.5)})
	if tab.Tracked() != 1 {
		t.Fatalf("tracked=%d", tab.Tracked())
	}
	s := tab[tab.find(7)]
	if snr, _ := s.SNR.Get(); snr != 30 {
		t.Fatalf("unknown SNR overwrote known value: %+v", s)
	}
	if last, _ := s.LastSeen.Get(); last != 2 {
		t.Fatalf("last seen=%d", last)
	}
}

func TestSatTable_IgnoresSVNZero(t *testing.T) {
	var tab SatTable
	tab.Merge(0, seen(1))
	if tab.Tracked() != 0 {
		t.Fatalf("svn 0 must be ignored")
	}
}

func TestSatTable_EvictsOldest(t *testing.T) {
	var tab SatTable
	for i := 0; i < MaxSatellites; i++ {
		tab.Merge(i+1, SatUpdate{Time: opt.Known(int64(10 + i)), Elev: opt.Known(0.3)})
	}
	// Refresh svn 1 so svn 2 becomes the oldest.
	tab.Merge(1, seen(100))
	tab.Merge(42, SatUpdate{Time: opt.Known[int64](101), SNR: opt.Known(12)})

	if tab.find(2) >= 0 {
		t.Fatalf("oldest satellite not evicted")
	}
	i := tab.find(42)
	if i < 0 {
		t.Fatalf("new satellite missing")
	}
	if tab[i].Elev.IsKnown() {
		t.Fatalf("evicted slot leaked old fields: %+v", tab[i])
	}
	if tab.Tracked() != MaxSatellites {
		t.Fatalf("tracked=%d", tab.Tracked())
	}
}

func TestSatTable_UnknownLastSeenIsOldestAndTiesPickFirst(t *testing.T) {
	var tab SatTable
	for i := 0; i < MaxSatellites; i++ {
		tab.Merge(i+1, seen(5))
	}
	tab[3].LastSeen = opt.Unknown[int64]()
	tab.Merge(50, seen(6))
	if tab[3].SVN != 50 {
		t.Fatalf("unknown last seen should be evicted first, got slot %d", tab.find(50))
	}

	tab.Merge(60, seen(7))
	if tab[0].SVN != 60 {
		t.Fatalf("ties should evict the first slot, got slot %d", tab.find(60))
	}
}

func TestSatTable_ClearUsed(t *testing.T) {
	var tab SatTable
	tab.Merge(3, SatUpdate{Used: opt.Known(true)})
	tab.Merge(4, SatUpdate{Used: opt.Known(true)})
	if tab.InUse() != 2 {
		t.Fatalf("in use=%d", tab.InUse())
	}
	tab.ClearUsed()
	if tab.InUse() != 0 {
		t.Fatalf("in use=%d", tab.InUse())
	}
}

func TestSatTable_FillsFreeSlotsBeforeEvicting(t *testing.T) {
	var tab SatTable
	tab.Merge(3, SatUpdate{SNR: opt.Known(20)})
	tab.Merge(4, SatUpdate{SNR: opt.Known(18)})
	tab.Merge(5, seen(9))
	for _, svn := range []int{3, 4, 5} {
		if tab.find(svn) < 0 {
			t.Fatalf("svn %d evicted while free slots remain: %+v", svn, tab)
		}
	}
	if i := tab.find(4); i != 1 {
		t.Fatalf("svn 4 in slot %d want 1", i)
	}
}
