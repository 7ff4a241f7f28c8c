package models

import (
	"encoding/json"
	"time"
)

// Domain identifies which side of the bridge an event or identity belongs to.
type Domain string

const (
	DomainMCPTT Domain = "mcptt"
	DomainMesh  Domain = "mesh"
)

// Other returns the opposite domain.
func (d Domain) Other() Domain {
	if d == DomainMCPTT {
		return DomainMesh
	}
	return DomainMCPTT
}

// EventType enumerates the normalized event vocabulary shared by both
// domain adapters. Each adapter maps its native signaling into these.
type EventType string

const (
	EventCallSetup    EventType = "call-setup"
	EventCallTeardown EventType = "call-teardown"
	EventFloorRequest EventType = "floor-request"
	EventFloorGrant   EventType = "floor-grant"
	EventFloorRevoke  EventType = "floor-revoke"
	EventFloorDeny    EventType = "floor-deny"
	EventFloorAck     EventType = "floor-ack"
	EventFloorRelease EventType = "floor-release"
	EventAudioFrame   EventType = "audio-frame"
)

// Event is a normalized domain event as delivered by a domain adapter.
// The adapters produce these from their native wire formats; the gateway
// core never sees SIP/IMS or mesh link-layer messages directly.
type Event struct {
	Type      EventType   `json:"type"`
	Domain    Domain      `json:"domain"`
	CallID    string      `json:"call_id"`
	Identity  string      `json:"identity,omitempty"`
	GroupID   string      `json:"group_id,omitempty"`
	Priority  int         `json:"priority,omitempty"`
	Seq       uint32      `json:"seq,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Frame     *AudioFrame `json:"frame,omitempty"`
}

// Outbound is an event tagged with the domain it must be delivered to.
type Outbound struct {
	Target Domain
	Event  Event
}

// DecodeEvent parses a JSON event envelope from an adapter topic payload.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return &ev, nil
}

// Encode serializes the event for publishing on an adapter topic.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
