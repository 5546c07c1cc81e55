// Package config loads the robots configuration file mapping robot
// identifiers to their tracking UDP port and drive serial device.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RobotConfig is the per-robot entry in the config file.
type RobotConfig struct {
	// UDPPort is the port the tracking system streams this robot's
	// pose packets to.
	UDPPort int `json:"udp_port"`
	// DrivePort is the serial device of the robot's drive radio.
	// Empty for simulation-only robots.
	DrivePort string `json:"drive_port,omitempty"`
}

// Config is the root of the robots configuration file.
type Config struct {
	Robots map[string]RobotConfig `json:"robots"`
}

// Load reads and validates a robots config file.
// The file is validated to ensure it has a .json extension and is under
// the max file size.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if len(c.Robots) == 0 {
		return fmt.Errorf("no robots configured")
	}
	ports := make(map[int]string)
	for name, rc := range c.Robots {
		if rc.UDPPort < 1 || rc.UDPPort > 65535 {
			return fmt.Errorf("robot %q: udp_port %d out of range", name, rc.UDPPort)
		}
		if prev, dup := ports[rc.UDPPort]; dup {
			return fmt.Errorf("robots %q and %q share udp_port %d", prev, name, rc.UDPPort)
		}
		ports[rc.UDPPort] = name
	}
	return nil
}

// Robot looks up one robot's entry. Unknown names report the available
// robots so typos are easy to spot from the error alone.
func (c *Config) Robot(name string) (RobotConfig, error) {
	rc, ok := c.Robots[name]
	if !ok {
		names := make([]string, 0, len(c.Robots))
		for n := range c.Robots {
			names = append(names, n)
		}
		sort.Strings(names)
		return RobotConfig{}, fmt.Errorf("robot %q not found in config; available robots: %s",
			name, strings.Join(names, ", "))
	}
	return rc, nil
}
