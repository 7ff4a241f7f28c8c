// Package gateway contains the core orchestrator: the call table, the
// per-call workers that own all mutable call state, and the glue between
// the domain adapters, the floor mediator, the transcode path and the
// gateway node selector.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/auth"
	"github.com/samsameer/meshriderwave-sub002/pkg/config"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
	"github.com/samsameer/meshriderwave-sub002/pkg/selector"
	"github.com/samsameer/meshriderwave-sub002/pkg/transcode"
	"github.com/samsameer/meshriderwave-sub002/pkg/translate"
)

var (
	// ErrUnknownCall marks an event for a call the core does not track.
	// The event is dropped and logged, never fatal.
	ErrUnknownCall = errors.New("unknown call")
	// ErrCallLimit marks a call setup shed because the concurrent call
	// cap is reached.
	ErrCallLimit = errors.New("concurrent call limit reached")
)

// Adapter delivers outbound events into one domain's native transport.
type Adapter interface {
	Domain() models.Domain
	Publish(out *models.Outbound) error
}

// CallRecorder persists call detail records. Optional.
type CallRecorder interface {
	CreateCallRecord(call *models.Call) error
	CloseCallRecord(callID string, endedAt time.Time) error
}

// Notifier wakes status API subscribers after a state change. Optional.
type Notifier interface {
	Notify()
}

// Bridge is one direction of the per-call audio path.
type Bridge interface {
	Process(f *models.AudioFrame) (*models.AudioFrame, error)
	Close()
}

// BridgeFactory builds the audio bridge for a codec pair. The default
// uses the transcode package; tests substitute fakes.
type BridgeFactory func(srcCodec, dstCodec string) (Bridge, error)

// Core routes normalized domain events to per-call workers and reacts to
// selector failover notifications. Each live call has exactly one worker
// goroutine owning its state, so no cross-call locking exists on the
// media path.
type Core struct {
	cfg        *config.Configuration
	translator *translate.Translator
	sel        *selector.Selector
	records    CallRecorder
	notifier   Notifier
	newBridge  BridgeFactory
	log        *slog.Logger

	mu       sync.RWMutex
	workers  map[string]*worker
	index    map[models.Domain]map[string]string // domain call ID -> canonical ID
	unhomed  map[string]struct{}                 // canonical IDs waiting for a node
	adapters map[models.Domain]Adapter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the core. Register adapters before Start.
func New(cfg *config.Configuration, tr *translate.Translator, sel *selector.Selector, records CallRecorder, log *slog.Logger) *Core {
	ctx, cancel := context.WithCancel(context.Background())
	return &Core{
		cfg:        cfg,
		translator: tr,
		sel:        sel,
		records:    records,
		newBridge:  defaultBridgeFactory(cfg.Transcode, log),
		log:        log.With("component", "gateway"),
		workers:    make(map[string]*worker),
		index: map[models.Domain]map[string]string{
			models.DomainMCPTT: make(map[string]string),
			models.DomainMesh:  make(map[string]string),
		},
		unhomed:  make(map[string]struct{}),
		adapters: make(map[models.Domain]Adapter),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func defaultBridgeFactory(cfg config.TranscodeSettings, log *slog.Logger) BridgeFactory {
	return func(src, dst string) (Bridge, error) {
		return transcode.NewStream(src, dst, transcode.Config{
			Deadline:    cfg.Deadline,
			ResetGap:    cfg.ResetGapFrames,
			OpusBitrate: cfg.OpusBitrate,
		}, log)
	}
}

// RegisterAdapter wires a domain adapter. Must be called before Start.
func (c *Core) RegisterAdapter(a Adapter) {
	c.adapters[a.Domain()] = a
}

// SetNotifier wires the status API change notifier. Must be called
// before Start.
func (c *Core) SetNotifier(n Notifier) {
	c.notifier = n
}

// SetBridgeFactory overrides the audio bridge constructor.
func (c *Core) SetBridgeFactory(f BridgeFactory) {
	c.newBridge = f
}

// Start begins consuming selector notifications.
func (c *Core) Start() {
	c.wg.Add(1)
	go c.selectorLoop()
}

// Shutdown tears down every live call and stops the core.
func (c *Core) Shutdown() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.workers))
	for id := range c.workers {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.destroy(id, []models.Domain{models.DomainMCPTT, models.DomainMesh})
	}
	c.cancel()
	c.wg.Wait()
}

// HandleEvent is the single entry point for normalized events from both
// adapters. Events for unknown calls are dropped and reported, never
// fatal.
func (c *Core) HandleEvent(ev *models.Event) error {
	switch ev.Type {
	case models.EventCallSetup:
		return c.setup(ev)
	case models.EventCallTeardown:
		return c.Teardown(ev.Domain, ev.CallID)
	}

	c.mu.RLock()
	canonical, ok := c.index[ev.Domain][ev.CallID]
	w := c.workers[canonical]
	c.mu.RUnlock()
	if !ok || w == nil {
		if ev.Type != models.EventAudioFrame {
			c.log.Warn("dropping event for unknown call",
				"type", ev.Type, "domain", ev.Domain, "call_id", ev.CallID)
		}
		return ErrUnknownCall
	}

	select {
	case w.events <- ev:
		return nil
	case <-w.stopped:
		return ErrUnknownCall
	default:
	}
	if ev.Type == models.EventAudioFrame {
		// Media is shed before signaling when a worker falls behind.
		w.shedFrames.Add(1)
		return nil
	}
	select {
	case w.events <- ev:
		return nil
	case <-w.stopped:
		return ErrUnknownCall
	}
}

// setup creates a call spanning both domains. Duplicate setups for a
// known domain call ID are ignored.
func (c *Core) setup(ev *models.Event) error {
	c.mu.Lock()
	if _, dup := c.index[ev.Domain][ev.CallID]; dup {
		c.mu.Unlock()
		c.log.Debug("duplicate call setup ignored", "domain", ev.Domain, "call_id", ev.CallID)
		return nil
	}
	if c.cfg.Calls.MaxConcurrent > 0 && len(c.workers) >= c.cfg.Calls.MaxConcurrent {
		c.mu.Unlock()
		c.log.Warn("shedding call setup, concurrent call limit reached",
			"domain", ev.Domain, "call_id", ev.CallID, "limit", c.cfg.Calls.MaxConcurrent)
		c.rejectSetup(ev)
		return ErrCallLimit
	}
	c.mu.Unlock()

	canonical, err := auth.RandomHex(8)
	if err != nil {
		return err
	}

	now := time.Now()
	call := &models.Call{
		ID:           canonical,
		GroupID:      ev.GroupID,
		CreatedAt:    now,
		LastActivity: now,
	}
	if ev.Domain == models.DomainMCPTT {
		call.McpttID = ev.CallID
		call.MeshID = canonical
	} else {
		call.MeshID = ev.CallID
		call.McpttID = canonical
	}

	out, err := c.translator.CallSetup(call, ev)
	if err != nil {
		if errors.Is(err, translate.ErrIdentityNotMapped) {
			c.log.Warn("rejecting call setup, originator identity not mapped",
				"domain", ev.Domain, "call_id", ev.CallID, "identity", ev.Identity)
			c.rejectSetup(ev)
		}
		return err
	}

	node, selErr := c.sel.Select(nil)
	if selErr != nil {
		if !errors.Is(selErr, selector.ErrNoGatewayAvailable) {
			return selErr
		}
		c.log.Info("no gateway node available, call searching",
			"call_id", canonical, "domain", ev.Domain)
	} else {
		call.AssignedNode = node.NodeID
	}

	w := newWorker(c, call)

	c.mu.Lock()
	if _, dup := c.index[ev.Domain][ev.CallID]; dup {
		c.mu.Unlock()
		w.shutdown()
		return nil
	}
	// The earlier cap check ran unlocked; racing setups are settled here.
	if c.cfg.Calls.MaxConcurrent > 0 && len(c.workers) >= c.cfg.Calls.MaxConcurrent {
		c.mu.Unlock()
		w.shutdown()
		c.log.Warn("shedding call setup, concurrent call limit reached",
			"domain", ev.Domain, "call_id", ev.CallID, "limit", c.cfg.Calls.MaxConcurrent)
		c.rejectSetup(ev)
		return ErrCallLimit
	}
	c.workers[canonical] = w
	c.index[models.DomainMCPTT][call.McpttID] = canonical
	c.index[models.DomainMesh][call.MeshID] = canonical
	if call.AssignedNode == "" {
		c.unhomed[canonical] = struct{}{}
	}
	c.mu.Unlock()

	if call.AssignedNode != "" {
		c.sel.Assign(canonical, call.AssignedNode, false)
	}
	if c.records != nil {
		if err := c.records.CreateCallRecord(call); err != nil {
			c.log.Warn("failed to create call record", "call_id", canonical, "error", err)
		}
	}

	c.wg.Add(1)
	go w.run()

	c.log.Info("call established",
		"call_id", canonical,
		"mcptt_id", call.McpttID,
		"mesh_id", call.MeshID,
		"group_id", call.GroupID,
		"node_id", call.AssignedNode)
	c.publish(out)
	c.notify()
	return nil
}

// rejectSetup answers a refused setup with a teardown in the origin
// domain so the requester does not wait on silence.
func (c *Core) rejectSetup(ev *models.Event) {
	c.publish(&models.Outbound{
		Target: ev.Domain,
		Event: models.Event{
			Type:      models.EventCallTeardown,
			Domain:    ev.Domain,
			CallID:    ev.CallID,
			Timestamp: time.Now(),
		},
	})
}

// Teardown destroys a call by its domain-local ID. Safe to call for an
// already-destroyed call.
func (c *Core) Teardown(d models.Domain, domainCallID string) error {
	c.mu.RLock()
	canonical, ok := c.index[d][domainCallID]
	c.mu.RUnlock()
	if !ok {
		c.log.Debug("teardown for unknown call ignored", "domain", d, "call_id", domainCallID)
		return nil
	}
	c.destroy(canonical, []models.Domain{d.Other()})
	return nil
}

// destroy removes a call and notifies the given domains. Idempotent.
func (c *Core) destroy(canonical string, notify []models.Domain) {
	c.mu.Lock()
	w, ok := c.workers[canonical]
	if !ok {
		c.mu.Unlock()
		return
	}
	call := w.snapshot()
	delete(c.workers, canonical)
	delete(c.index[models.DomainMCPTT], call.McpttID)
	delete(c.index[models.DomainMesh], call.MeshID)
	delete(c.unhomed, canonical)
	c.mu.Unlock()

	w.shutdown()
	c.sel.Release(canonical)

	for _, d := range notify {
		c.publish(c.translator.CallTeardown(&call, d.Other()))
	}
	if c.records != nil {
		if err := c.records.CloseCallRecord(canonical, time.Now()); err != nil {
			c.log.Warn("failed to close call record", "call_id", canonical, "error", err)
		}
	}
	c.log.Info("call destroyed", "call_id", canonical)
	c.notify()
}

// Calls returns a snapshot of live calls for the status API, sorted by
// creation time.
func (c *Core) Calls() []models.Call {
	c.mu.RLock()
	out := make([]models.Call, 0, len(c.workers))
	for _, w := range c.workers {
		out = append(out, w.snapshot())
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// selectorLoop reacts to node loss and arrival. Failover re-homes calls
// without touching their floor state; node arrival retries calls stuck
// searching for a gateway.
func (c *Core) selectorLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.sel.Events():
			switch ev.Type {
			case selector.EventFailover:
				c.reassign(ev.CallID, ev.NodeID)
			case selector.EventNodeUp:
				c.retryUnhomed()
			}
		}
	}
}

// reassign moves one call off a failed node. The floor state is owned by
// the worker and is deliberately left alone; an active grant survives
// the node switch.
func (c *Core) reassign(canonical, failedNode string) {
	c.mu.RLock()
	w := c.workers[canonical]
	c.mu.RUnlock()
	if w == nil {
		return
	}

	node, err := c.sel.Select(map[string]struct{}{failedNode: {}})
	if err != nil {
		c.log.Warn("no replacement gateway node, call searching",
			"call_id", canonical, "failed_node", failedNode)
		c.mu.Lock()
		c.unhomed[canonical] = struct{}{}
		c.mu.Unlock()
		c.sel.Release(canonical)
		w.setNode("")
		c.notify()
		return
	}

	c.log.Info("failing over call to new gateway node",
		"call_id", canonical, "failed_node", failedNode, "node_id", node.NodeID)
	c.mu.Lock()
	delete(c.unhomed, canonical)
	c.mu.Unlock()
	w.setNode(node.NodeID)
	c.notify()
}

// retryUnhomed attempts to place calls that had no eligible node.
func (c *Core) retryUnhomed() {
	c.mu.Lock()
	var waiting []*worker
	for id := range c.unhomed {
		if w := c.workers[id]; w != nil {
			waiting = append(waiting, w)
		}
	}
	c.mu.Unlock()

	for _, w := range waiting {
		node, err := c.sel.Select(nil)
		if err != nil {
			return
		}
		call := w.snapshot()
		c.log.Info("queued call placed on gateway node",
			"call_id", call.ID, "node_id", node.NodeID)
		w.setNode(node.NodeID)
		c.mu.Lock()
		delete(c.unhomed, call.ID)
		c.mu.Unlock()
		c.notify()
	}
}

func (c *Core) publish(out *models.Outbound) {
	a := c.adapters[out.Target]
	if a == nil {
		c.log.Warn("no adapter registered for domain", "domain", out.Target)
		return
	}
	if err := a.Publish(out); err != nil {
		c.log.Warn("failed to publish outbound event",
			"domain", out.Target, "type", out.Event.Type, "error", err)
	}
}

func (c *Core) notify() {
	if c.notifier != nil {
		c.notifier.Notify()
	}
}
