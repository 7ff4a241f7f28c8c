package translate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/floor"
	"github.com/samsameer/meshriderwave-sub002/pkg/identity"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

type staticProvider []*models.IdentityMapping

func (p staticProvider) ListIdentityMappings(context.Context) ([]*models.IdentityMapping, error) {
	return p, nil
}

func testTranslator(t *testing.T) *Translator {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mapper := identity.NewMapper(log)
	err := mapper.Load(context.Background(), staticProvider{
		{MeshKey: "ab12cd34", McpttURI: "sip:alpha1@example.org"},
		{MeshKey: "ef56ab78", McpttURI: "sip:alpha2@example.org"},
	})
	if err != nil {
		t.Fatalf("failed to load mappings: %v", err)
	}
	return New(mapper, log)
}

func testCall() *models.Call {
	return &models.Call{
		ID:      "call-1",
		McpttID: "mcptt-session-9",
		MeshID:  "mesh-chan-2",
		GroupID: "squad-alpha",
	}
}

func TestCallSetupTranslatesIdentity(t *testing.T) {
	tr := testTranslator(t)
	ev := &models.Event{
		Type:      models.EventCallSetup,
		Domain:    models.DomainMCPTT,
		Identity:  "sip:alpha1@example.org",
		Timestamp: time.Now(),
	}

	out, err := tr.CallSetup(testCall(), ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Target != models.DomainMesh {
		t.Fatalf("expected mesh target, got %s", out.Target)
	}
	if out.Event.Identity != "ab12cd34" {
		t.Fatalf("expected mesh key identity, got %q", out.Event.Identity)
	}
	if out.Event.CallID != "mesh-chan-2" {
		t.Fatalf("expected mesh call ID, got %q", out.Event.CallID)
	}
}

func TestCallSetupRejectsUnmappedIdentity(t *testing.T) {
	tr := testTranslator(t)
	ev := &models.Event{
		Type:     models.EventCallSetup,
		Domain:   models.DomainMesh,
		Identity: "deadbeef",
	}

	_, err := tr.CallSetup(testCall(), ev)
	if !errors.Is(err, ErrIdentityNotMapped) {
		t.Fatalf("expected ErrIdentityNotMapped, got %v", err)
	}
}

func TestGrantAnnouncementTranslatesHolder(t *testing.T) {
	tr := testTranslator(t)

	out := tr.Actions(testCall(), []floor.Action{{
		Type:     floor.ActionAnnounceGrant,
		Target:   models.DomainMesh,
		Identity: "sip:alpha1@example.org",
		Priority: 3,
	}})
	if len(out) != 1 {
		t.Fatalf("expected 1 outbound event, got %d", len(out))
	}
	if out[0].Event.Type != models.EventFloorGrant {
		t.Fatalf("expected floor-grant, got %s", out[0].Event.Type)
	}
	if out[0].Event.Identity != "ab12cd34" {
		t.Fatalf("expected translated holder, got %q", out[0].Event.Identity)
	}
	if out[0].Event.Priority != 3 {
		t.Fatalf("expected priority carried through, got %d", out[0].Event.Priority)
	}
}

func TestDenyKeepsNativeIdentity(t *testing.T) {
	tr := testTranslator(t)

	out := tr.Actions(testCall(), []floor.Action{{
		Type:     floor.ActionDeny,
		Target:   models.DomainMesh,
		Identity: "ab12cd34",
	}})
	if len(out) != 1 {
		t.Fatalf("expected 1 outbound event, got %d", len(out))
	}
	if out[0].Event.Identity != "ab12cd34" {
		t.Fatalf("deny must keep the requester's native identity, got %q", out[0].Event.Identity)
	}
	if out[0].Event.CallID != "mesh-chan-2" {
		t.Fatalf("expected mesh call ID, got %q", out[0].Event.CallID)
	}
}

func TestUnmappedAnnouncementDropped(t *testing.T) {
	tr := testTranslator(t)

	out := tr.Actions(testCall(), []floor.Action{{
		Type:     floor.ActionAnnounceGrant,
		Target:   models.DomainMCPTT,
		Identity: "deadbeef",
	}})
	if len(out) != 0 {
		t.Fatalf("expected unmapped announcement dropped, got %d events", len(out))
	}
}

func TestReleaseMapsToFloorRelease(t *testing.T) {
	tr := testTranslator(t)

	out := tr.Actions(testCall(), []floor.Action{{
		Type:     floor.ActionAnnounceRelease,
		Target:   models.DomainMesh,
		Identity: "sip:alpha2@example.org",
	}})
	if len(out) != 1 || out[0].Event.Type != models.EventFloorRelease {
		t.Fatalf("expected floor-release event, got %+v", out)
	}
	if out[0].Event.Identity != "ef56ab78" {
		t.Fatalf("expected translated identity, got %q", out[0].Event.Identity)
	}
}

func TestAudioTranslatesHolderAndTargetsCall(t *testing.T) {
	tr := testTranslator(t)
	frame := &models.AudioFrame{Codec: models.CodecOpus, Seq: 7, Payload: []byte{1, 2, 3}}

	out, err := tr.Audio(testCall(), models.DomainMesh, "ab12cd34", frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Target != models.DomainMCPTT {
		t.Fatalf("expected MCPTT target, got %s", out.Target)
	}
	if out.Event.Identity != "sip:alpha1@example.org" {
		t.Fatalf("expected translated holder, got %q", out.Event.Identity)
	}
	if out.Event.CallID != "mcptt-session-9" {
		t.Fatalf("expected MCPTT call ID, got %q", out.Event.CallID)
	}
	if out.Event.Frame != frame {
		t.Fatal("expected frame attached to event")
	}
}
