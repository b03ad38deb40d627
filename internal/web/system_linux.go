//go:build linux

package web

import (
	"net"
	"sort"
	"syscall"

	"github.com/dustin/go-humanize"
)

// snapshotDisk reports free space on the filesystem holding the recording
// directory. Tracklogs and captures grow without bound on long drives.
func snapshotDisk(dir string) *DiskSnapshot {
	if dir == "" {
		return nil
	}
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return &DiskSnapshot{Path: dir, LastError: err.Error()}
	}
	bsize := uint64(st.Bsize)
	avail := st.Bavail * bsize
	return &DiskSnapshot{
		Path:       dir,
		TotalBytes: st.Blocks * bsize,
		AvailBytes: avail,
		Avail:      humanize.Bytes(avail),
	}
}

func snapshotNetwork() *NetworkSnapshot {
	return &NetworkSnapshot{LocalAddrs: localInterfaceAddrs()}
}

// localInterfaceAddrs lists non-loopback IPv4 addresses so the UI can be
// found from a phone on the same network.
func localInterfaceAddrs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]string, 0, 4)
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
				continue
			}
			out = append(out, iface.Name+": "+ipnet.String())
		}
	}
	sort.Strings(out)
	return out
}
