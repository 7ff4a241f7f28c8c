package models

import (
	"encoding/json"
	"time"
)

// GatewayNode is a candidate bridging node with simultaneous LTE and mesh
// connectivity. All quality factors are normalized to [0,1].
type GatewayNode struct {
	NodeID        string        `json:"node_id" db:"node_id"`
	LTEQuality    float64       `json:"lte_quality" db:"lte_quality"`
	LoadFactor    float64       `json:"load_factor" db:"load_factor"`
	BatteryLevel  float64       `json:"battery_level" db:"battery_level"`
	Latency       time.Duration `json:"latency" db:"latency_ns"`
	LastHeartbeat time.Time     `json:"last_heartbeat" db:"last_heartbeat"`
	Reachable     bool          `json:"reachable" db:"reachable"`
}

// Heartbeat is the periodic health report published by a gateway node
// on the heartbeat channel.
type Heartbeat struct {
	NodeID       string    `json:"node_id"`
	LTEQuality   float64   `json:"lte_quality"`
	LoadFactor   float64   `json:"load_factor"`
	BatteryLevel float64   `json:"battery_level"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// DecodeHeartbeat parses a heartbeat report from the gw/heartbeat topic.
func DecodeHeartbeat(data []byte) (*Heartbeat, error) {
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return nil, err
	}
	if hb.Timestamp.IsZero() {
		hb.Timestamp = time.Now()
	}
	return &hb, nil
}

// Node converts the heartbeat into a reachable GatewayNode record.
func (h *Heartbeat) Node() *GatewayNode {
	return &GatewayNode{
		NodeID:        h.NodeID,
		LTEQuality:    h.LTEQuality,
		LoadFactor:    h.LoadFactor,
		BatteryLevel:  h.BatteryLevel,
		Latency:       time.Duration(h.LatencyMs) * time.Millisecond,
		LastHeartbeat: h.Timestamp,
		Reachable:     true,
	}
}
