package models

import "time"

// CallRecord is the persisted detail record of a bridged call, written
// at setup and closed at teardown.
type CallRecord struct {
	ID        string     `json:"id" db:"id"`
	McpttID   string     `json:"mcptt_id" db:"mcptt_id"`
	MeshID    string     `json:"mesh_id" db:"mesh_id"`
	GroupID   string     `json:"group_id" db:"group_id"`
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}
