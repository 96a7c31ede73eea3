package teleop

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultConfigFile is the teleoperation config looked up when no path is
// given.
const DefaultConfigFile = "teleop.json"

// Config holds the teleoperation configuration: one entry per arm pairing.
// It is loaded once and passed by value into constructors; nothing mutates
// it at runtime.
type Config struct {
	Pairs []PairConfig `json:"pairs"`
}

// PairConfig describes one leader/follower side.
type PairConfig struct {
	// Side is the logical name of the pairing, e.g. "left" or "right".
	Side string `json:"side"`

	// Leader and Follower identify the serial devices, either by exact
	// USB serial number or by a substring of the USB location.
	Leader   string `json:"leader"`
	Follower string `json:"follower"`

	// Calibration is the path of this arm's calibration file. Each side
	// needs its own file.
	Calibration string `json:"calibration"`

	// Gripper maps the leader gripper angle range onto the follower's
	// [0, 1] ratio.
	GripperOpenDeg  float64 `json:"gripper_open_deg"`
	GripperCloseDeg float64 `json:"gripper_close_deg"`

	// Directions holds a ±1 multiplier per output axis (six joints plus
	// gripper). Empty means all +1.
	Directions []float64 `json:"directions,omitempty"`
}

// DirectionVector validates and expands the per-axis multipliers.
func (p PairConfig) DirectionVector() ([NumAxes]float64, error) {
	var dirs [NumAxes]float64
	for i := range dirs {
		dirs[i] = 1
	}

	if len(p.Directions) == 0 {
		return dirs, nil
	}
	if len(p.Directions) != NumAxes {
		return dirs, fmt.Errorf("side %s: directions needs %d entries, got %d", p.Side, NumAxes, len(p.Directions))
	}
	for i, d := range p.Directions {
		if d != 1 && d != -1 {
			return dirs, fmt.Errorf("side %s: direction %d must be 1 or -1, got %v", p.Side, i, d)
		}
		dirs[i] = d
	}
	return dirs, nil
}

// Targets returns the locator roles for every configured device, keyed
// "<side>_leader" and "<side>_follower".
func (c *Config) Targets() map[string]string {
	targets := make(map[string]string, 2*len(c.Pairs))
	for _, p := range c.Pairs {
		targets[p.Side+"_leader"] = p.Leader
		targets[p.Side+"_follower"] = p.Follower
	}
	return targets
}

// LoadConfig loads configuration from the default config file.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Pairs) == 0 {
		return nil, fmt.Errorf("%s: no pairings configured", path)
	}

	seen := make(map[string]bool, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		if p.Side == "" {
			return nil, fmt.Errorf("%s: pairing without a side name", path)
		}
		if seen[p.Side] {
			return nil, fmt.Errorf("%s: duplicate side %q", path, p.Side)
		}
		seen[p.Side] = true
	}

	return &cfg, nil
}

// SaveTo saves configuration to a specific file.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
