package transport

import (
	"fmt"
	"os"
)

// autoDetectCandidates lists device paths in probe order: USB adapters
// first, then on-board UARTs.
func autoDetectCandidates() []string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 4; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyS%d", i))
	}
	return candidates
}

// AutoDetect returns the first candidate device that exists. stat defaults
// to os.Stat.
func AutoDetect(stat func(string) (os.FileInfo, error)) string {
	if stat == nil {
		stat = os.Stat
	}
	for _, p := range autoDetectCandidates() {
		if _, err := stat(p); err == nil {
			return p
		}
	}
	return ""
}
