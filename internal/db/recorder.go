package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pilot/internal/pose"
)

// PoseSample is one recorded pose row.
type PoseSample struct {
	X   float64
	Y   float64
	Yaw float64
	At  time.Time
}

// StartSession opens a new run session and returns its id.
func (db *DB) StartSession(robotID, trackName string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, robot_id, track_name) VALUES (?, ?, ?)`,
		id, robotID, trackName,
	)
	if err != nil {
		return "", fmt.Errorf("start session for %s: %w", robotID, err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string) error {
	_, err := db.Exec(
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE session_id = ?`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", sessionID, err)
	}
	return nil
}

// RecordPose stores one pose sample for the session.
func (db *DB) RecordPose(sessionID string, p pose.Pose) error {
	_, err := db.Exec(
		`INSERT INTO pose_samples (session_id, x, y, yaw) VALUES (?, ?, ?, ?)`,
		sessionID, p.X, p.Y, p.Yaw,
	)
	if err != nil {
		return fmt.Errorf("record pose: %w", err)
	}
	return nil
}

// RecordCommand stores one issued movement command.
func (db *DB) RecordCommand(sessionID string, dx, dy float64) error {
	_, err := db.Exec(
		`INSERT INTO move_commands (session_id, dx, dy) VALUES (?, ?, ?)`,
		sessionID, dx, dy,
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// RecordTransition stores one follower state transition.
func (db *DB) RecordTransition(sessionID, from, to string) error {
	_, err := db.Exec(
		`INSERT INTO state_transitions (session_id, from_state, to_state) VALUES (?, ?, ?)`,
		sessionID, from, to,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// PosesForSession returns the session's pose samples in insertion order.
func (db *DB) PosesForSession(sessionID string) ([]PoseSample, error) {
	rows, err := db.Query(
		`SELECT x, y, yaw, timestamp FROM pose_samples WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query poses for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var samples []PoseSample
	for rows.Next() {
		var s PoseSample
		if err := rows.Scan(&s.X, &s.Y, &s.Yaw, &s.At); err != nil {
			return nil, fmt.Errorf("scan pose sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// TransitionsForSession returns the session's state transitions as
// "from->to" strings in order.
func (db *DB) TransitionsForSession(sessionID string) ([]string, error) {
	rows, err := db.Query(
		`SELECT from_state, to_state FROM state_transitions WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, from+"->"+to)
	}
	return out, rows.Err()
}
