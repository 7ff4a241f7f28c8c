package selector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/config"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

func testSelector(cfg config.SelectorSettings) *Selector {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = time.Second
	}
	if cfg.MissedHeartbeats == 0 {
		cfg.MissedHeartbeats = 3
	}
	if cfg.MaxLatency == 0 {
		cfg.MaxLatency = 500 * time.Millisecond
	}
	if cfg.Weights == (config.ScoreWeights{}) {
		cfg.Weights = config.ScoreWeights{LTEQuality: 0.4, Load: 0.3, Battery: 0.2, Latency: 0.1}
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, nil, log)
}

func heartbeat(nodeID string, lte, load, battery float64, latencyMs int64) *models.Heartbeat {
	return &models.Heartbeat{
		NodeID:       nodeID,
		LTEQuality:   lte,
		LoadFactor:   load,
		BatteryLevel: battery,
		LatencyMs:    latencyMs,
		Timestamp:    time.Now(),
	}
}

func drainEvents(s *Selector) []Event {
	var out []Event
	for {
		select {
		case ev := <-s.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSelectEmptySetReturnsError(t *testing.T) {
	s := testSelector(config.SelectorSettings{})

	node, err := s.Select(nil)
	if !errors.Is(err, ErrNoGatewayAvailable) {
		t.Fatalf("expected ErrNoGatewayAvailable, got %v", err)
	}
	if node != nil {
		t.Fatalf("expected nil node, got %+v", node)
	}
}

func TestSelectPicksHighestScore(t *testing.T) {
	s := testSelector(config.SelectorSettings{})
	// gw-a: 0.4*0.9 + 0.3*0.8 + 0.2*0.5 + 0.1*1.0 = 0.80
	// gw-b: 0.4*0.5 + 0.3*0.5 + 0.2*1.0 + 0.1*0.8 = 0.63
	s.UpdateHeartbeat(heartbeat("gw-a", 0.9, 0.2, 0.5, 0))
	s.UpdateHeartbeat(heartbeat("gw-b", 0.5, 0.5, 1.0, 100))

	node, err := s.Select(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.NodeID != "gw-a" {
		t.Fatalf("expected gw-a, got %s", node.NodeID)
	}
}

func TestSelectTieBreaksToLowestNodeID(t *testing.T) {
	s := testSelector(config.SelectorSettings{})
	s.UpdateHeartbeat(heartbeat("gw-b", 0.8, 0.3, 0.7, 50))
	s.UpdateHeartbeat(heartbeat("gw-a", 0.8, 0.3, 0.7, 50))
	s.UpdateHeartbeat(heartbeat("gw-c", 0.8, 0.3, 0.7, 50))

	node, err := s.Select(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.NodeID != "gw-a" {
		t.Fatalf("expected gw-a on tie, got %s", node.NodeID)
	}
}

func TestSelectExcludesNodes(t *testing.T) {
	s := testSelector(config.SelectorSettings{})
	s.UpdateHeartbeat(heartbeat("gw-a", 0.9, 0.1, 0.9, 10))
	s.UpdateHeartbeat(heartbeat("gw-b", 0.6, 0.4, 0.6, 80))

	node, err := s.Select(map[string]struct{}{"gw-a": {}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.NodeID != "gw-b" {
		t.Fatalf("expected gw-b with gw-a excluded, got %s", node.NodeID)
	}

	_, err = s.Select(map[string]struct{}{"gw-a": {}, "gw-b": {}})
	if !errors.Is(err, ErrNoGatewayAvailable) {
		t.Fatalf("expected ErrNoGatewayAvailable with all nodes excluded, got %v", err)
	}
}

func TestSelectFiltersLowLTEQuality(t *testing.T) {
	s := testSelector(config.SelectorSettings{MinLTEQuality: 0.2})
	s.UpdateHeartbeat(heartbeat("gw-a", 0.1, 0.0, 1.0, 0))

	_, err := s.Select(nil)
	if !errors.Is(err, ErrNoGatewayAvailable) {
		t.Fatalf("expected ErrNoGatewayAvailable below LTE threshold, got %v", err)
	}
}

func TestNodeUpEventOnDiscovery(t *testing.T) {
	s := testSelector(config.SelectorSettings{})
	s.UpdateHeartbeat(heartbeat("gw-a", 0.9, 0.1, 0.9, 10))
	s.UpdateHeartbeat(heartbeat("gw-a", 0.9, 0.2, 0.9, 10))

	events := drainEvents(s)
	var ups int
	for _, ev := range events {
		if ev.Type == EventNodeUp && ev.NodeID == "gw-a" {
			ups++
		}
	}
	if ups != 1 {
		t.Fatalf("expected exactly one node-up event, got %d", ups)
	}
}

func TestDegradedNodeFailsOverGrantHoldersFirst(t *testing.T) {
	s := testSelector(config.SelectorSettings{MinLTEQuality: 0.2})
	s.UpdateHeartbeat(heartbeat("gw-a", 0.9, 0.1, 0.9, 10))
	s.Assign("call-idle", "gw-a", false)
	s.Assign("call-talking", "gw-a", true)
	drainEvents(s)

	s.UpdateHeartbeat(heartbeat("gw-a", 0.05, 0.1, 0.9, 10))

	var failovers []Event
	for _, ev := range drainEvents(s) {
		if ev.Type == EventFailover {
			failovers = append(failovers, ev)
		}
	}
	if len(failovers) != 2 {
		t.Fatalf("expected 2 failover events, got %d", len(failovers))
	}
	if failovers[0].CallID != "call-talking" || !failovers[0].HasGrant {
		t.Fatalf("expected grant-holding call first, got %+v", failovers[0])
	}
	if failovers[1].CallID != "call-idle" {
		t.Fatalf("expected idle call second, got %+v", failovers[1])
	}
}

func TestReleasedCallDoesNotFailOver(t *testing.T) {
	s := testSelector(config.SelectorSettings{MinLTEQuality: 0.2})
	s.UpdateHeartbeat(heartbeat("gw-a", 0.9, 0.1, 0.9, 10))
	s.Assign("call-1", "gw-a", true)
	s.Release("call-1")
	drainEvents(s)

	s.UpdateHeartbeat(heartbeat("gw-a", 0.05, 0.1, 0.9, 10))

	for _, ev := range drainEvents(s) {
		if ev.Type == EventFailover {
			t.Fatalf("unexpected failover after release: %+v", ev)
		}
	}
}

func TestMissedHeartbeatsEvictNode(t *testing.T) {
	s := testSelector(config.SelectorSettings{
		HeartbeatInterval: 10 * time.Millisecond,
		MissedHeartbeats:  3,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.UpdateHeartbeat(heartbeat("gw-a", 0.9, 0.1, 0.9, 10))
	s.Assign("call-1", "gw-a", true)
	drainEvents(s)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Type == EventFailover && ev.CallID == "call-1" && ev.NodeID == "gw-a" {
				if _, err := s.Select(nil); !errors.Is(err, ErrNoGatewayAvailable) {
					t.Fatalf("expected no gateways after eviction, got %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for failover after missed heartbeats")
		}
	}
}

func TestSetGrantChangesFailoverOrder(t *testing.T) {
	s := testSelector(config.SelectorSettings{MinLTEQuality: 0.2})
	s.UpdateHeartbeat(heartbeat("gw-a", 0.9, 0.1, 0.9, 10))
	s.Assign("call-1", "gw-a", false)
	s.Assign("call-2", "gw-a", false)
	s.SetGrant("call-2", true)
	drainEvents(s)

	s.UpdateHeartbeat(heartbeat("gw-a", 0.05, 0.1, 0.9, 10))

	var failovers []Event
	for _, ev := range drainEvents(s) {
		if ev.Type == EventFailover {
			failovers = append(failovers, ev)
		}
	}
	if len(failovers) != 2 {
		t.Fatalf("expected 2 failover events, got %d", len(failovers))
	}
	if failovers[0].CallID != "call-2" {
		t.Fatalf("expected granted call-2 first, got %s", failovers[0].CallID)
	}
}
