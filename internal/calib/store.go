package calib

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// calibrationRecord is the on-disk form, one file per robot id.
type calibrationRecord struct {
	OffsetRadians float64 `json:"offset_radians"`
	CalibratedAt  string  `json:"calibrated_at"`
	RobotID       string  `json:"robot_id"`
}

// FileStore persists one calibration record per robot under a directory,
// keyed by robot id.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(robotID string) string {
	return filepath.Join(s.dir, robotID+".json")
}

// Save writes the record, overwriting any previous calibration for the
// same robot.
func (s *FileStore) Save(c Calibration) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create calibration dir: %w", err)
	}
	data, err := json.MarshalIndent(calibrationRecord{
		OffsetRadians: c.Offset,
		CalibratedAt:  c.CalibratedAt.Format(time.RFC3339),
		RobotID:       c.RobotID,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration for %s: %w", c.RobotID, err)
	}
	if err := os.WriteFile(s.path(c.RobotID), data, 0o644); err != nil {
		return fmt.Errorf("write calibration for %s: %w", c.RobotID, err)
	}
	return nil
}

// Load reads and validates the record for robotID. A missing file
// surfaces os.ErrNotExist; a record that fails validation surfaces
// ErrCorruptCalibration and requires recalibration.
func (s *FileStore) Load(robotID string) (Calibration, error) {
	data, err := os.ReadFile(s.path(robotID))
	if err != nil {
		return Calibration{}, fmt.Errorf("read calibration for %s: %w", robotID, err)
	}

	var rec calibrationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Calibration{}, fmt.Errorf("calibration for %s: %v: %w", robotID, err, ErrCorruptCalibration)
	}
	if math.IsNaN(rec.OffsetRadians) || math.IsInf(rec.OffsetRadians, 0) ||
		rec.OffsetRadians <= -math.Pi || rec.OffsetRadians > math.Pi {
		return Calibration{}, fmt.Errorf("calibration for %s: offset %v out of range: %w",
			robotID, rec.OffsetRadians, ErrCorruptCalibration)
	}
	if rec.RobotID != robotID {
		return Calibration{}, fmt.Errorf("calibration for %s: record names robot %q: %w",
			robotID, rec.RobotID, ErrCorruptCalibration)
	}
	at, err := time.Parse(time.RFC3339, rec.CalibratedAt)
	if err != nil {
		return Calibration{}, fmt.Errorf("calibration for %s: bad timestamp %q: %w",
			robotID, rec.CalibratedAt, ErrCorruptCalibration)
	}

	return Calibration{RobotID: rec.RobotID, Offset: rec.OffsetRadians, CalibratedAt: at}, nil
}
