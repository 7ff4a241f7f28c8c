package floor

import (
	"log/slog"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

// ActionType enumerates the side effects a mediator transition can emit.
// Actions are translated into domain-native commands by the protocol
// translator; the mediator itself never touches an adapter.
type ActionType int

const (
	// ActionForwardRequest announces a floor request into the target
	// domain, for domains whose protocol expects an announcement.
	ActionForwardRequest ActionType = iota
	// ActionAnnounceGrant informs the target domain who holds the floor.
	ActionAnnounceGrant
	// ActionDeny tells a losing contender in the target domain that its
	// request was denied.
	ActionDeny
	// ActionRevoke orders the current holder's domain to give up the
	// floor. The mediator then waits in Revoking for an ack.
	ActionRevoke
	// ActionAnnounceRelease informs the target domain the floor is free.
	ActionAnnounceRelease
)

// Action is one mediator side effect, tagged with its target domain.
type Action struct {
	Type     ActionType
	Target   models.Domain
	Identity string
	Priority int
}

// Config tunes one call's mediator.
type Config struct {
	// RevokeGrace bounds Revoking when the holder's domain has no ack
	// mechanism or the ack is lost.
	RevokeGrace time.Duration
	// RequestTimeout is how long a grant may go without holder activity
	// before it is revoked, per domain. Convention: twice the domain's
	// keepalive interval.
	RequestTimeout map[models.Domain]time.Duration
	// Announce marks domains whose protocol requires floor requests from
	// the other side to be announced before a grant exists.
	Announce map[models.Domain]bool
}

// DefaultRevokeGrace is used when Config.RevokeGrace is zero.
const DefaultRevokeGrace = 300 * time.Millisecond

type request struct {
	domain   models.Domain
	identity string
	priority int
	at       time.Time
}

// Mediator arbitrates "who may talk" for one call across the two
// independently specified floor-control protocols. Both the centralized
// MCPTT grant and the mesh's distributed lowest-latency claim reach it as
// uniform grant events from the adapters.
//
// A Mediator is owned by its call worker and must not be shared across
// goroutines.
type Mediator struct {
	cfg   Config
	state models.FloorState

	// contender is an outstanding request from the domain that is not
	// the current Requested/Granted holder.
	contender *request
	// preempt is the winning preemptor while the old holder is revoked.
	preempt *request
	// deadline is the pending timeout for the current phase.
	deadline time.Time

	log *slog.Logger
}

// NewMediator creates a mediator in the Idle state.
func NewMediator(cfg Config, log *slog.Logger) *Mediator {
	if cfg.RevokeGrace <= 0 {
		cfg.RevokeGrace = DefaultRevokeGrace
	}
	return &Mediator{cfg: cfg, log: log}
}

// State returns a copy of the current floor state.
func (m *Mediator) State() models.FloorState {
	return m.state
}

// HandleRequest processes a floor-request from domain d.
func (m *Mediator) HandleRequest(d models.Domain, id string, priority int, at time.Time) []Action {
	switch m.state.Phase {
	case models.FloorIdle:
		return m.enterRequested(&request{domain: d, identity: id, priority: priority, at: at})

	case models.FloorRequested:
		if d == m.state.HolderDomain {
			// Refresh from the same domain; keep the original timestamp.
			m.state.HolderID = id
			m.state.Priority = priority
			return nil
		}
		incoming := &request{domain: d, identity: id, priority: priority, at: at}
		if m.wins(incoming) {
			// Incoming request out-ranks the pending one. The displaced
			// requester is denied right away so its side hears the deny
			// tone instead of contending silently.
			displaced := Action{
				Type:     ActionDeny,
				Target:   m.state.HolderDomain,
				Identity: m.state.HolderID,
				Priority: m.state.Priority,
			}
			return append([]Action{displaced}, m.enterRequested(incoming)...)
		}
		m.contender = incoming
		return nil

	case models.FloorGranted:
		if d == m.state.HolderDomain {
			// Holder keepalive; extends the grant.
			m.armGrantTimeout(time.Now())
			return nil
		}
		if priority > m.state.Priority {
			// Higher numeric priority from the other domain preempts.
			m.preempt = &request{domain: d, identity: id, priority: priority, at: at}
			return m.enterRevoking()
		}
		// Contention loser: immediate deny so the requester hears the
		// deny tone instead of waiting out the grant.
		return []Action{{Type: ActionDeny, Target: d, Identity: id, Priority: priority}}

	case models.FloorRevoking:
		// Queue the strongest contender for after the revoke completes.
		incoming := &request{domain: d, identity: id, priority: priority, at: at}
		if m.preempt == nil || incoming.beats(m.preempt) {
			m.preempt = incoming
		}
		return nil
	}
	return nil
}

// HandleGrant processes a grant event from domain d's floor authority.
func (m *Mediator) HandleGrant(d models.Domain, id string, at time.Time) []Action {
	if m.state.Phase == models.FloorGranted && d != m.state.HolderDomain {
		// The other domain's authority granted locally while the floor is
		// held here. Its grantee must hear a deny, not silence, or both
		// sides believe they hold the floor.
		m.log.Debug("stray grant while floor held, denying", "domain", d, "identity", id)
		return []Action{{Type: ActionDeny, Target: d, Identity: id}}
	}
	if m.state.Phase != models.FloorRequested {
		m.log.Debug("grant ignored outside Requested", "domain", d, "phase", m.state.Phase.String())
		return nil
	}
	if d != m.state.HolderDomain {
		// A grant for the losing side of a tie-break. The recorded
		// winner stays authoritative; the stray grantee is denied.
		m.log.Debug("grant for non-winning domain denied", "domain", d, "identity", id)
		return []Action{{Type: ActionDeny, Target: d, Identity: id}}
	}

	m.state.Phase = models.FloorGranted
	m.state.GrantedAt = at
	m.armGrantTimeout(at)

	actions := []Action{{
		Type:     ActionAnnounceGrant,
		Target:   d.Other(),
		Identity: m.state.HolderID,
		Priority: m.state.Priority,
	}}
	if m.contender != nil {
		actions = append(actions, Action{
			Type:     ActionDeny,
			Target:   m.contender.domain,
			Identity: m.contender.identity,
			Priority: m.contender.priority,
		})
		m.contender = nil
	}
	return actions
}

// HandleRevoke processes a revoke signal for the current holder. Any
// adapter-reported loss of floor is treated as an implicit revoke, never
// as fatal.
func (m *Mediator) HandleRevoke(d models.Domain) []Action {
	switch m.state.Phase {
	case models.FloorGranted:
		if d != m.state.HolderDomain {
			return nil
		}
		return m.enterRevoking()
	case models.FloorRequested:
		if d != m.state.HolderDomain {
			return nil
		}
		// Request withdrawn before any grant.
		if m.contender != nil {
			next := m.contender
			m.contender = nil
			m.reset()
			return m.enterRequested(next)
		}
		m.reset()
		return nil
	}
	return nil
}

// HandleAck processes the holder domain's acknowledgment of an outbound
// revoke, completing Revoking -> Idle.
func (m *Mediator) HandleAck(d models.Domain) []Action {
	if m.state.Phase != models.FloorRevoking || d != m.state.HolderDomain {
		return nil
	}
	return m.finishRevoke()
}

// Tick advances phase timeouts: grant keepalive expiry and the bounded
// revoke grace period. The call worker drives it on its own cadence.
func (m *Mediator) Tick(now time.Time) []Action {
	if m.deadline.IsZero() || now.Before(m.deadline) {
		return nil
	}
	switch m.state.Phase {
	case models.FloorGranted:
		m.log.Info("floor grant timed out, revoking",
			"holder", m.state.HolderID, "domain", m.state.HolderDomain)
		return m.enterRevoking()
	case models.FloorRevoking:
		m.log.Debug("revoke ack grace elapsed, forcing idle",
			"holder", m.state.HolderID, "domain", m.state.HolderDomain)
		return m.finishRevoke()
	case models.FloorRequested:
		// A request that never saw a grant decays back to idle.
		m.log.Debug("floor request timed out",
			"holder", m.state.HolderID, "domain", m.state.HolderDomain)
		if m.contender != nil {
			next := m.contender
			m.contender = nil
			m.reset()
			return m.enterRequested(next)
		}
		m.reset()
	}
	return nil
}

// NextDeadline exposes the pending timeout so the worker can schedule
// its timer; zero when no timeout is armed.
func (m *Mediator) NextDeadline() time.Time {
	return m.deadline
}

// IsHolder reports whether (domain, identity) currently holds the floor.
// The translator gates audio forwarding on this.
func (m *Mediator) IsHolder(d models.Domain, id string) bool {
	return m.state.Phase == models.FloorGranted &&
		m.state.HolderDomain == d && m.state.HolderID == id
}

// wins compares an incoming request against the current Requested holder.
func (m *Mediator) wins(incoming *request) bool {
	return incoming.beats(&request{
		domain:   m.state.HolderDomain,
		priority: m.state.Priority,
		at:       m.state.RequestedAt,
	})
}

// beats ranks two contending requests: higher numeric priority preempts;
// at equal priority the earlier requested-at timestamp wins; exact ties
// go to MCPTT, reflecting that emergency command traffic defaults to the
// infrastructure side.
func (r *request) beats(other *request) bool {
	if r.priority != other.priority {
		return r.priority > other.priority
	}
	if r.at.Before(other.at) {
		return true
	}
	if other.at.Before(r.at) {
		return false
	}
	return r.domain == models.DomainMCPTT && other.domain != models.DomainMCPTT
}

func (m *Mediator) enterRequested(r *request) []Action {
	m.state = models.FloorState{
		Phase:        models.FloorRequested,
		HolderDomain: r.domain,
		HolderID:     r.identity,
		Priority:     r.priority,
		RequestedAt:  r.at,
	}
	m.deadline = r.at.Add(m.requestTimeout(r.domain))

	if m.cfg.Announce[r.domain.Other()] {
		return []Action{{
			Type:     ActionForwardRequest,
			Target:   r.domain.Other(),
			Identity: r.identity,
			Priority: r.priority,
		}}
	}
	return nil
}

func (m *Mediator) enterRevoking() []Action {
	holder := m.state.HolderDomain
	m.state.Phase = models.FloorRevoking
	m.deadline = time.Now().Add(m.cfg.RevokeGrace)
	return []Action{{
		Type:     ActionRevoke,
		Target:   holder,
		Identity: m.state.HolderID,
	}}
}

func (m *Mediator) finishRevoke() []Action {
	released := m.state
	m.reset()

	actions := []Action{{
		Type:     ActionAnnounceRelease,
		Target:   released.HolderDomain.Other(),
		Identity: released.HolderID,
	}}
	if m.preempt != nil {
		next := m.preempt
		m.preempt = nil
		actions = append(actions, m.enterRequested(next)...)
	}
	return actions
}

func (m *Mediator) reset() {
	m.state = models.FloorState{Phase: models.FloorIdle}
	m.deadline = time.Time{}
}

func (m *Mediator) armGrantTimeout(from time.Time) {
	m.deadline = from.Add(m.requestTimeout(m.state.HolderDomain))
}

func (m *Mediator) requestTimeout(d models.Domain) time.Duration {
	if t, ok := m.cfg.RequestTimeout[d]; ok && t > 0 {
		return t
	}
	// Fallback when the domain's keepalive is not configured.
	return 8 * time.Second
}
