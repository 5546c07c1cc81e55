package track

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxTrackFileSize caps how much of a track file will be read.
const maxTrackFileSize = 4 << 20

type trackFile struct {
	Name   string     `json:"name"`
	Closed bool       `json:"closed"`
	Points []Waypoint `json:"points"`
}

// Save writes the track as JSON to path.
func (t *Track) Save(path string) error {
	data, err := json.MarshalIndent(trackFile{
		Name:   t.name,
		Closed: t.closed,
		Points: t.points,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal track %q: %w", t.name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write track file: %w", err)
	}
	return nil
}

// Load reads a JSON track file and validates its geometry.
func Load(path string) (*Track, error) {
	path = filepath.Clean(path)
	if !strings.HasSuffix(path, ".json") {
		return nil, fmt.Errorf("track file %s: expected .json extension", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat track file: %w", err)
	}
	if info.Size() > maxTrackFileSize {
		return nil, fmt.Errorf("track file %s too large (%d bytes)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track file: %w", err)
	}
	var tf trackFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse track file %s: %w", path, err)
	}
	return New(tf.Name, tf.Points, tf.Closed)
}
