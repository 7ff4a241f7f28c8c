// Package translate maps events and floor actions across the domain
// boundary. It is pure: identity resolution and field mapping only, no
// call state and no I/O. The gateway core owns state; the adapters own
// wire formats.
package translate

import (
	"errors"
	"log/slog"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/floor"
	"github.com/samsameer/meshriderwave-sub002/pkg/identity"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

// ErrIdentityNotMapped marks an event whose originator has no provisioned
// cross-domain binding. Such events are dropped; the gateway never invents
// an identity on the other side.
var ErrIdentityNotMapped = errors.New("originator identity not mapped")

// Translator resolves identities and produces outbound domain events from
// mediator actions. Safe for concurrent use; the mapper handles locking.
type Translator struct {
	mapper *identity.Mapper
	log    *slog.Logger
}

func New(mapper *identity.Mapper, log *slog.Logger) *Translator {
	return &Translator{mapper: mapper, log: log.With("component", "translate")}
}

// ResolveIdentity maps an event's originator into the opposite domain's
// namespace. Returns ErrIdentityNotMapped when no binding exists.
func (t *Translator) ResolveIdentity(from models.Domain, id string) (string, error) {
	mapped, err := t.mapper.Resolve(from, id)
	if err != nil {
		if errors.Is(err, identity.ErrNotMapped) {
			return "", ErrIdentityNotMapped
		}
		return "", err
	}
	return mapped, nil
}

// CallSetup builds the outbound setup event announcing a new call into
// the opposite domain, with the originator identity translated. Fails
// when the originator is unmapped, which rejects the setup.
func (t *Translator) CallSetup(call *models.Call, ev *models.Event) (*models.Outbound, error) {
	target := ev.Domain.Other()
	mapped, err := t.ResolveIdentity(ev.Domain, ev.Identity)
	if err != nil {
		return nil, err
	}
	return &models.Outbound{
		Target: target,
		Event: models.Event{
			Type:      models.EventCallSetup,
			Domain:    target,
			CallID:    call.IDFor(target),
			Identity:  mapped,
			GroupID:   call.GroupID,
			Timestamp: ev.Timestamp,
		},
	}, nil
}

// CallTeardown builds the outbound teardown notification.
func (t *Translator) CallTeardown(call *models.Call, from models.Domain) *models.Outbound {
	target := from.Other()
	return &models.Outbound{
		Target: target,
		Event: models.Event{
			Type:      models.EventCallTeardown,
			Domain:    target,
			CallID:    call.IDFor(target),
			Timestamp: time.Now(),
		},
	}
}

// Actions converts mediator actions into outbound domain events.
// Actions targeting the opposite domain from the subject identity carry
// a translated identity; deny and revoke go back to the requester's own
// domain and keep its native identity. Actions whose subject cannot be
// translated are dropped with a warning, consistent with never
// forwarding under an invented identity.
func (t *Translator) Actions(call *models.Call, actions []floor.Action) []models.Outbound {
	var out []models.Outbound
	for _, a := range actions {
		ev := models.Event{
			Domain:    a.Target,
			CallID:    call.IDFor(a.Target),
			Identity:  a.Identity,
			Priority:  a.Priority,
			Timestamp: time.Now(),
		}

		switch a.Type {
		case floor.ActionForwardRequest:
			ev.Type = models.EventFloorRequest
		case floor.ActionAnnounceGrant:
			ev.Type = models.EventFloorGrant
		case floor.ActionDeny:
			ev.Type = models.EventFloorDeny
		case floor.ActionRevoke:
			ev.Type = models.EventFloorRevoke
		case floor.ActionAnnounceRelease:
			ev.Type = models.EventFloorRelease
		default:
			t.log.Warn("unknown floor action", "action", a.Type)
			continue
		}

		if crossesBoundary(a) && a.Identity != "" {
			mapped, err := t.ResolveIdentity(a.Target.Other(), a.Identity)
			if err != nil {
				t.log.Warn("dropping floor announcement for unmapped identity",
					"call_id", call.ID, "identity", a.Identity, "error", err)
				continue
			}
			ev.Identity = mapped
		}

		out = append(out, models.Outbound{Target: a.Target, Event: ev})
	}
	return out
}

// crossesBoundary reports whether the action's identity originates in the
// domain opposite its target. Announcements name the holder or requester
// from the other side; deny and revoke address a party in its own domain.
func crossesBoundary(a floor.Action) bool {
	switch a.Type {
	case floor.ActionForwardRequest, floor.ActionAnnounceGrant, floor.ActionAnnounceRelease:
		return true
	}
	return false
}

// Audio builds the outbound audio event for a transcoded frame. The
// holder identity was already validated by the caller against the floor
// state; here it is only translated for the target domain.
func (t *Translator) Audio(call *models.Call, from models.Domain, holder string, frame *models.AudioFrame) (*models.Outbound, error) {
	target := from.Other()
	mapped, err := t.ResolveIdentity(from, holder)
	if err != nil {
		return nil, err
	}
	return &models.Outbound{
		Target: target,
		Event: models.Event{
			Type:      models.EventAudioFrame,
			Domain:    target,
			CallID:    call.IDFor(target),
			Identity:  mapped,
			GroupID:   call.GroupID,
			Seq:       frame.Seq,
			Timestamp: time.Now(),
			Frame:     frame,
		},
	}, nil
}
