// Package ports enumerates serial devices available for connection.
package ports

import (
	"path/filepath"
	"sort"
	"strings"
)

// Device name patterns worth offering, in /dev. The tty.* form covers
// macOS call-out devices.
var patterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/ttyAMA*",
	"/dev/tty.*",
}

// List returns candidate serial device paths. USB and ACM adapters sort
// first; they are almost always the IMU link the user wants.
func List() []string {
	var found []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			continue
		}
		found = append(found, matches...)
	}
	Sort(found)
	return found
}

// Sort orders device names: USB/ACM devices first, lexical within each
// group.
func Sort(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		pi, pj := preferred(names[i]), preferred(names[j])
		if pi != pj {
			return pi
		}
		return names[i] < names[j]
	})
}

func preferred(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "USB") || strings.Contains(upper, "ACM")
}
