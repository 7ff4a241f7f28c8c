// Package selector chooses which gateway node bridges a mesh-side call
// and triggers failover when the assigned node degrades. Node liveness is
// tracked through a TTL cache fed by the heartbeat channel: a node that
// misses three consecutive heartbeats expires and is treated as lost.
package selector

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/samsameer/meshriderwave-sub002/pkg/config"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

// ErrNoGatewayAvailable means the filtered candidate set is empty.
// Callers must queue the call and retry on the next heartbeat cycle,
// never fail it outright.
var ErrNoGatewayAvailable = errors.New("no gateway available")

// EventType tags selector notifications to the gateway core.
type EventType int

const (
	// EventFailover asks the core to re-home one call off a lost or
	// degraded node. Calls holding an active grant are notified first.
	EventFailover EventType = iota
	// EventNodeUp signals a node (re)appeared; the core retries any
	// queued call setups.
	EventNodeUp
)

// Event is an asynchronous selector notification. The selector never
// mutates call state directly; the core serializes these against its
// per-call workers.
type Event struct {
	Type     EventType
	NodeID   string
	CallID   string
	HasGrant bool
}

// Recorder persists node status snapshots for the status API. Optional.
type Recorder interface {
	UpsertGatewayNode(node *models.GatewayNode) error
}

type assignment struct {
	nodeID   string
	hasGrant bool
}

// Selector tracks candidate gateway nodes and call-to-node assignments.
type Selector struct {
	cfg   config.SelectorSettings
	nodes *ttlcache.Cache[string, *models.GatewayNode]

	mu          sync.Mutex
	assignments map[string]assignment // call ID -> assigned node

	events   chan Event
	recorder Recorder
	log      *slog.Logger
}

// New creates a selector. Call Start to begin liveness tracking.
func New(cfg config.SelectorSettings, recorder Recorder, log *slog.Logger) *Selector {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Second
	}
	if cfg.MissedHeartbeats <= 0 {
		cfg.MissedHeartbeats = 3
	}
	if cfg.MaxLatency <= 0 {
		cfg.MaxLatency = 500 * time.Millisecond
	}

	ttl := cfg.HeartbeatInterval * time.Duration(cfg.MissedHeartbeats)
	s := &Selector{
		cfg: cfg,
		nodes: ttlcache.New(
			ttlcache.WithTTL[string, *models.GatewayNode](ttl),
			ttlcache.WithDisableTouchOnHit[string, *models.GatewayNode](),
		),
		assignments: make(map[string]assignment),
		events:      make(chan Event, 64),
		recorder:    recorder,
		log:         log.With("component", "selector"),
	}

	s.nodes.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *models.GatewayNode]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		node := item.Value()
		node.Reachable = false
		s.log.Warn("gateway node lost, missed heartbeats",
			"node_id", node.NodeID,
			"last_heartbeat", node.LastHeartbeat)
		s.record(node)
		s.failNode(node.NodeID)
	})

	return s
}

// Start runs TTL expiry processing until the context is cancelled.
func (s *Selector) Start(ctx context.Context) {
	go s.nodes.Start()
	go func() {
		<-ctx.Done()
		s.nodes.Stop()
	}()
}

// Events is the asynchronous notification channel consumed by the core.
func (s *Selector) Events() <-chan Event {
	return s.events
}

// UpdateHeartbeat records a health report. New nodes trigger EventNodeUp;
// a quality drop below the selection threshold triggers failover for the
// node's assigned calls.
func (s *Selector) UpdateHeartbeat(hb *models.Heartbeat) {
	node := hb.Node()
	existing := s.nodes.Get(hb.NodeID)
	s.nodes.Set(hb.NodeID, node, ttlcache.DefaultTTL)
	s.record(node)

	if existing == nil {
		s.log.Info("gateway node discovered",
			"node_id", node.NodeID,
			"lte_quality", node.LTEQuality,
			"load", node.LoadFactor,
			"battery", node.BatteryLevel)
		s.emit(Event{Type: EventNodeUp, NodeID: node.NodeID})
		return
	}

	prev := existing.Value()
	if node.LTEQuality < s.cfg.MinLTEQuality {
		if prev.LTEQuality >= s.cfg.MinLTEQuality {
			s.log.Warn("gateway node degraded below LTE threshold",
				"node_id", node.NodeID,
				"lte_quality", node.LTEQuality,
				"threshold", s.cfg.MinLTEQuality)
		}
		s.failNode(node.NodeID)
		return
	}
	if prev.LTEQuality < s.cfg.MinLTEQuality {
		// Recovery above the threshold counts as a fresh candidate so
		// queued calls get retried.
		s.log.Info("gateway node recovered", "node_id", node.NodeID,
			"lte_quality", node.LTEQuality)
		s.emit(Event{Type: EventNodeUp, NodeID: node.NodeID})
	}
}

// Select picks the best eligible node, excluding the given node IDs.
// Scores are recomputed on every request; nothing is cached between
// selections, so load spreading follows the freshest heartbeats.
func (s *Selector) Select(excluding map[string]struct{}) (*models.GatewayNode, error) {
	var best *models.GatewayNode
	var bestScore float64

	for _, id := range s.nodes.Keys() {
		item := s.nodes.Get(id)
		if item == nil {
			continue
		}
		node := item.Value()
		if !node.Reachable || node.LTEQuality < s.cfg.MinLTEQuality {
			continue
		}
		if _, skip := excluding[node.NodeID]; skip {
			continue
		}
		score := s.score(node)
		// Ties break to the lowest node ID for determinism.
		if best == nil || score > bestScore ||
			(score == bestScore && node.NodeID < best.NodeID) {
			best = node
			bestScore = score
		}
	}

	if best == nil {
		return nil, ErrNoGatewayAvailable
	}
	return best, nil
}

// score is the weighted sum of [0,1]-normalized factors. Weights come
// from configuration; defaults are 0.4 LTE, 0.3 load headroom,
// 0.2 battery, 0.1 latency.
func (s *Selector) score(n *models.GatewayNode) float64 {
	normLatency := float64(n.Latency) / float64(s.cfg.MaxLatency)
	if normLatency > 1 {
		normLatency = 1
	}
	w := s.cfg.Weights
	return w.LTEQuality*n.LTEQuality +
		w.Load*(1-n.LoadFactor) +
		w.Battery*n.BatteryLevel +
		w.Latency*(1-normLatency)
}

// Assign records that a call is bridged by a node.
func (s *Selector) Assign(callID, nodeID string, hasGrant bool) {
	s.mu.Lock()
	s.assignments[callID] = assignment{nodeID: nodeID, hasGrant: hasGrant}
	s.mu.Unlock()
}

// SetGrant updates the grant flag used for failover prioritization.
func (s *Selector) SetGrant(callID string, hasGrant bool) {
	s.mu.Lock()
	if a, ok := s.assignments[callID]; ok {
		a.hasGrant = hasGrant
		s.assignments[callID] = a
	}
	s.mu.Unlock()
}

// Release removes a call's assignment on teardown.
func (s *Selector) Release(callID string) {
	s.mu.Lock()
	delete(s.assignments, callID)
	s.mu.Unlock()
}

// Snapshot returns the current node table for the status API.
func (s *Selector) Snapshot() []*models.GatewayNode {
	var out []*models.GatewayNode
	for _, id := range s.nodes.Keys() {
		if item := s.nodes.Get(id); item != nil {
			out = append(out, item.Value())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// failNode emits failover events for every call assigned to the node,
// calls with an active grant first so audible interruption is minimized.
func (s *Selector) failNode(nodeID string) {
	s.mu.Lock()
	var affected []Event
	for callID, a := range s.assignments {
		if a.nodeID == nodeID {
			affected = append(affected, Event{
				Type:     EventFailover,
				NodeID:   nodeID,
				CallID:   callID,
				HasGrant: a.hasGrant,
			})
		}
	}
	s.mu.Unlock()

	sort.SliceStable(affected, func(i, j int) bool {
		return affected[i].HasGrant && !affected[j].HasGrant
	})
	for _, ev := range affected {
		s.emit(ev)
	}
}

func (s *Selector) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("selector event channel full, dropping notification",
			"type", ev.Type, "node_id", ev.NodeID, "call_id", ev.CallID)
	}
}

func (s *Selector) record(node *models.GatewayNode) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.UpsertGatewayNode(node); err != nil {
		s.log.Warn("failed to persist gateway node status",
			"node_id", node.NodeID, "error", err)
	}
}
