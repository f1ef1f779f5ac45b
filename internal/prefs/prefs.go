// Package prefs persists the handful of settings worth remembering
// between runs: last transport mode, last baud rate, and the raw-log
// panel options.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/relabs-tech/imu_visualiser/internal/rawlog"
)

// Preferences is the on-disk document.
type Preferences struct {
	LastMode string          `json:"last_mode"` // "serial" or "udp"
	LastBaud uint            `json:"last_baud"`
	Logger   rawlog.Settings `json:"logger"`
}

// Default is what a fresh install starts with.
func Default() Preferences {
	return Preferences{
		LastMode: "serial",
		LastBaud: 115200,
		Logger:   rawlog.DefaultSettings(),
	}
}

// Load reads preferences from path. A missing or unreadable file is not an
// error; defaults are returned so first runs just work.
func Load(path string) Preferences {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	p := Default()
	if err := json.Unmarshal(data, &p); err != nil {
		return Default()
	}
	if p.LastBaud == 0 {
		p.LastBaud = Default().LastBaud
	}
	return p
}

// Save writes preferences to path.
func Save(path string, p Preferences) error {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
