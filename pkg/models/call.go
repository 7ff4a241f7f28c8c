package models

import "time"

// FloorPhase is the coarse state of a call's floor-control state machine.
type FloorPhase int

const (
	FloorIdle FloorPhase = iota
	FloorRequested
	FloorGranted
	FloorRevoking
)

// String returns a human-readable phase name for logs and the status API.
func (p FloorPhase) String() string {
	switch p {
	case FloorIdle:
		return "idle"
	case FloorRequested:
		return "requested"
	case FloorGranted:
		return "granted"
	case FloorRevoking:
		return "revoking"
	default:
		return "unknown"
	}
}

// FloorState tracks who may talk on a call. At most one holder exists
// across both domains at any time.
type FloorState struct {
	Phase        FloorPhase `json:"phase"`
	HolderDomain Domain     `json:"holder_domain,omitempty"`
	HolderID     string     `json:"holder_id,omitempty"`
	Priority     int        `json:"priority,omitempty"`
	RequestedAt  time.Time  `json:"requested_at,omitempty"`
	GrantedAt    time.Time  `json:"granted_at,omitempty"`
}

// Call is one logical PTT session spanning both domains. A Call is owned
// exclusively by its gateway core worker for its lifetime.
type Call struct {
	ID           string     `json:"id"`
	McpttID      string     `json:"mcptt_id"`
	MeshID       string     `json:"mesh_id"`
	GroupID      string     `json:"group_id,omitempty"`
	Floor        FloorState `json:"floor"`
	AssignedNode string     `json:"assigned_node,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
}

// HasGrant reports whether the call currently has an active floor grant.
func (c *Call) HasGrant() bool {
	return c.Floor.Phase == FloorGranted
}

// IDFor returns the call's identifier in the given domain's namespace.
func (c *Call) IDFor(d Domain) string {
	if d == DomainMCPTT {
		return c.McpttID
	}
	return c.MeshID
}
