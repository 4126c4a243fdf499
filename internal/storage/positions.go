// Package storage persists the last commanded shade positions.
package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Position is the last commanded state of one blind
type Position struct {
	DeviceID  string
	Room      string
	Position  int
	UpdatedAt time.Time
}

// PositionStore persists shade positions in the shade_state table
type PositionStore struct {
	db *sql.DB
}

// NewPositionStore creates a position store
func NewPositionStore(db *sql.DB) *PositionStore {
	return &PositionStore{db: db}
}

// Set records the last commanded position for a device
func (s *PositionStore) Set(deviceID, room string, position int) error {
	_, err := s.db.Exec(`
		INSERT INTO shade_state (device_id, room, position, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			room = excluded.room,
			position = excluded.position,
			updated_at = excluded.updated_at
	`, deviceID, room, position, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to store shade position: %w", err)
	}
	return nil
}

// Get returns the recorded position for a device, or false if none
func (s *PositionStore) Get(deviceID string) (*Position, bool, error) {
	var p Position
	var updatedAt int64

	err := s.db.QueryRow(`
		SELECT device_id, room, position, updated_at
		FROM shade_state WHERE device_id = ?
	`, deviceID).Scan(&p.DeviceID, &p.Room, &p.Position, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, true, nil
}

// Room returns the recorded positions of all blinds in a room
func (s *PositionStore) Room(room string) ([]*Position, error) {
	rows, err := s.db.Query(`
		SELECT device_id, room, position, updated_at
		FROM shade_state WHERE room = ?
		ORDER BY device_id
	`, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*Position
	for rows.Next() {
		var p Position
		var updatedAt int64
		if err := rows.Scan(&p.DeviceID, &p.Room, &p.Position, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}
