package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robots.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"robots": {
			"umh_2": {"udp_port": 9876, "drive_port": "/dev/ttyUSB0"},
			"umh_3": {"udp_port": 9877}
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	rc, err := cfg.Robot("umh_2")
	require.NoError(t, err)
	assert.Equal(t, 9876, rc.UDPPort)
	assert.Equal(t, "/dev/ttyUSB0", rc.DrivePort)

	rc, err = cfg.Robot("umh_3")
	require.NoError(t, err)
	assert.Empty(t, rc.DrivePort)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no robots", `{"robots": {}}`, "no robots configured"},
		{"port out of range", `{"robots": {"umh_2": {"udp_port": 123456}}}`, "out of range"},
		{"duplicate port", `{"robots": {"a": {"udp_port": 9876}, "b": {"udp_port": 9876}}}`, "share udp_port"},
		{"bad json", `{robots}`, "parse config JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsWrongExtension(t *testing.T) {
	_, err := Load("/etc/robots.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")
}

func TestRobotLookupListsAvailable(t *testing.T) {
	cfg := &Config{Robots: map[string]RobotConfig{
		"umh_2": {UDPPort: 9876},
		"umh_3": {UDPPort: 9877},
	}}

	_, err := cfg.Robot("umh_9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "umh_2, umh_3")
}
