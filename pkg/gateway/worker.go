package gateway

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/floor"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
	"github.com/samsameer/meshriderwave-sub002/pkg/transcode"
)

// tickInterval drives mediator timeouts and the idle check. It bounds
// how late a revoke grace or grant expiry fires.
const tickInterval = 50 * time.Millisecond

// worker owns all mutable state of one call: the floor mediator, the two
// directional audio bridges and the replay windows. All of it is touched
// only from run, except the call snapshot guarded by mu for the status
// API.
type worker struct {
	core *Core
	log  *slog.Logger

	mu   sync.Mutex
	call *models.Call

	mediator  *floor.Mediator
	bridges   map[models.Domain]Bridge
	seqs      map[models.Domain]*SequenceState
	lastPhase models.FloorPhase
	// pendingMarker marks the next forwarded frame as the start of a
	// talk spurt, set on every transition into Granted.
	pendingMarker bool

	events     chan *models.Event
	assignCh   chan string
	stopped    chan struct{}
	stopOnce   sync.Once
	shedFrames atomic.Int64
}

func newWorker(c *Core, call *models.Call) *worker {
	log := c.log.With("call_id", call.ID)
	med := floor.NewMediator(floor.Config{
		RevokeGrace: c.cfg.Floor.RevokeGrace,
		RequestTimeout: map[models.Domain]time.Duration{
			models.DomainMCPTT: grantTimeout(c.cfg.Mcptt.KeepaliveInterval, c.cfg.Floor.RequestTimeout),
			models.DomainMesh:  grantTimeout(c.cfg.Mesh.KeepaliveInterval, c.cfg.Floor.RequestTimeout),
		},
		Announce: map[models.Domain]bool{
			models.DomainMCPTT: c.cfg.Mcptt.AnnounceRequests,
			models.DomainMesh:  c.cfg.Mesh.AnnounceRequests,
		},
	}, log)

	return &worker{
		core:     c,
		log:      log,
		call:     call,
		mediator: med,
		bridges:  make(map[models.Domain]Bridge),
		seqs: map[models.Domain]*SequenceState{
			models.DomainMCPTT: {},
			models.DomainMesh:  {},
		},
		events:   make(chan *models.Event, 256),
		assignCh: make(chan string, 4),
		stopped:  make(chan struct{}),
	}
}

// grantTimeout is twice the domain keepalive unless overridden.
func grantTimeout(keepalive, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if keepalive > 0 {
		return 2 * keepalive
	}
	return 0
}

func (w *worker) run() {
	defer w.core.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	defer w.closeBridges()

	for {
		select {
		case <-w.stopped:
			return
		case nodeID := <-w.assignCh:
			w.applyNode(nodeID)
		case ev := <-w.events:
			w.handle(ev)
		case now := <-ticker.C:
			w.apply(w.mediator.Tick(now))
			if w.idleExpired(now) {
				w.log.Info("tearing down idle call")
				go w.core.destroy(w.call.ID, []models.Domain{models.DomainMCPTT, models.DomainMesh})
				return
			}
		}
	}
}

func (w *worker) handle(ev *models.Event) {
	w.touch(ev.Timestamp)

	switch ev.Type {
	case models.EventFloorRequest:
		w.apply(w.mediator.HandleRequest(ev.Domain, ev.Identity, ev.Priority, ev.Timestamp))
	case models.EventFloorGrant:
		w.apply(w.mediator.HandleGrant(ev.Domain, ev.Identity, ev.Timestamp))
	case models.EventFloorRevoke, models.EventFloorRelease:
		w.apply(w.mediator.HandleRevoke(ev.Domain))
	case models.EventFloorAck:
		w.apply(w.mediator.HandleAck(ev.Domain))
	case models.EventAudioFrame:
		w.handleAudio(ev)
	default:
		w.log.Debug("unhandled event type", "type", ev.Type)
	}
}

// apply publishes mediator side effects and refreshes the shared floor
// snapshot after every transition.
func (w *worker) apply(actions []floor.Action) {
	state := w.mediator.State()

	w.mu.Lock()
	w.call.Floor = state
	call := *w.call
	w.mu.Unlock()

	if state.Phase != w.lastPhase {
		if state.Phase == models.FloorGranted {
			// New talk burst; the replay window restarts with it and the
			// first forwarded frame carries the talk-spurt marker.
			w.seqs[models.DomainMCPTT].Reset()
			w.seqs[models.DomainMesh].Reset()
			w.pendingMarker = true
		}
		w.log.Info("floor state changed",
			"phase", state.Phase.String(),
			"holder", state.HolderID,
			"holder_domain", state.HolderDomain,
			"priority", state.Priority)
		w.lastPhase = state.Phase
		w.core.sel.SetGrant(call.ID, state.Phase == models.FloorGranted)
		w.core.notify()
	}

	for _, out := range w.core.translator.Actions(&call, actions) {
		w.core.publish(&out)
	}
}

// handleAudio runs the media path: floor gate, replay window, transcode,
// identity translation, publish. Every drop is silent toward the sender.
func (w *worker) handleAudio(ev *models.Event) {
	frame := ev.Frame
	if frame == nil {
		return
	}
	// Non-holder frames must not advance the replay window, or they
	// could displace the real holder's in-flight frames.
	if !w.mediator.IsHolder(ev.Domain, ev.Identity) {
		w.log.Debug("audio from non-holder dropped",
			"domain", ev.Domain, "identity", ev.Identity)
		return
	}
	if !w.seqs[ev.Domain].Accept(frame.Seq) {
		w.log.Debug("replayed audio frame dropped",
			"domain", ev.Domain, "seq", frame.Seq,
			"rejected", w.seqs[ev.Domain].Rejected())
		return
	}

	w.mu.Lock()
	call := *w.call
	w.mu.Unlock()
	if call.AssignedNode == "" {
		// Still searching for a gateway node; nothing can carry media.
		return
	}

	if w.pendingMarker {
		frame.Marker = true
	}

	bridge, err := w.bridge(ev.Domain)
	if err != nil {
		w.log.Warn("failed to build audio bridge", "domain", ev.Domain, "error", err)
		return
	}
	out, err := bridge.Process(frame)
	if err != nil {
		if !errors.Is(err, transcode.ErrDeadlineExceeded) {
			w.log.Warn("transcode failed, frame dropped", "domain", ev.Domain, "error", err)
		}
		return
	}

	outEv, err := w.core.translator.Audio(&call, ev.Domain, ev.Identity, out)
	if err != nil {
		w.log.Debug("audio holder identity not mapped, frame dropped", "error", err)
		return
	}
	w.core.publish(outEv)
	w.pendingMarker = false
}

// bridge lazily builds the directional audio path; calls without media
// never allocate codec state.
func (w *worker) bridge(from models.Domain) (Bridge, error) {
	if b, ok := w.bridges[from]; ok {
		return b, nil
	}
	b, err := w.core.newBridge(transcode.CodecFor(from), transcode.CodecFor(from.Other()))
	if err != nil {
		return nil, err
	}
	w.bridges[from] = b
	return b, nil
}

func (w *worker) closeBridges() {
	for _, b := range w.bridges {
		b.Close()
	}
}

// setNode asks the worker to re-home onto a node. Empty means un-homed.
func (w *worker) setNode(nodeID string) {
	select {
	case w.assignCh <- nodeID:
	case <-w.stopped:
	}
}

func (w *worker) applyNode(nodeID string) {
	w.mu.Lock()
	w.call.AssignedNode = nodeID
	call := *w.call
	w.mu.Unlock()

	if nodeID != "" {
		w.core.sel.Assign(call.ID, nodeID, call.HasGrant())
	}
}

func (w *worker) snapshot() models.Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.call
}

func (w *worker) touch(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	w.mu.Lock()
	if at.After(w.call.LastActivity) {
		w.call.LastActivity = at
	}
	w.mu.Unlock()
}

func (w *worker) idleExpired(now time.Time) bool {
	idle := w.core.cfg.Calls.IdleTimeout
	if idle <= 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.call.LastActivity) > idle
}

func (w *worker) shutdown() {
	w.stopOnce.Do(func() { close(w.stopped) })
}
