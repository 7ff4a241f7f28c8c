package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

type staticProvider []*models.IdentityMapping

func (p staticProvider) ListIdentityMappings(context.Context) ([]*models.IdentityMapping, error) {
	return p, nil
}

func testMapper(t *testing.T, rows ...*models.IdentityMapping) *Mapper {
	t.Helper()
	m := NewMapper(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := m.Load(context.Background(), staticProvider(rows)); err != nil {
		t.Fatalf("failed to load mappings: %v", err)
	}
	return m
}

func TestResolveBothDirections(t *testing.T) {
	m := testMapper(t,
		&models.IdentityMapping{MeshKey: "ab12cd34", McpttURI: "sip:alpha1@example.org"})

	uri, err := m.Resolve(models.DomainMesh, "ab12cd34")
	if err != nil || uri != "sip:alpha1@example.org" {
		t.Fatalf("mesh->mcptt resolve failed: %q, %v", uri, err)
	}
	key, err := m.Resolve(models.DomainMCPTT, "sip:alpha1@example.org")
	if err != nil || key != "ab12cd34" {
		t.Fatalf("mcptt->mesh resolve failed: %q, %v", key, err)
	}
}

func TestUnmappedIdentityReturnsError(t *testing.T) {
	m := testMapper(t)

	if _, err := m.MeshToMcptt("deadbeef"); !errors.Is(err, ErrNotMapped) {
		t.Fatalf("expected ErrNotMapped, got %v", err)
	}
	if _, err := m.McpttToMesh("sip:nobody@example.org"); !errors.Is(err, ErrNotMapped) {
		t.Fatalf("expected ErrNotMapped, got %v", err)
	}
}

func TestDuplicateBindingsSkipped(t *testing.T) {
	m := testMapper(t,
		&models.IdentityMapping{MeshKey: "ab12cd34", McpttURI: "sip:alpha1@example.org"},
		&models.IdentityMapping{MeshKey: "ab12cd34", McpttURI: "sip:alpha2@example.org"},
		&models.IdentityMapping{MeshKey: "ef56ab78", McpttURI: "sip:alpha1@example.org"})

	if m.Count() != 1 {
		t.Fatalf("expected only the first binding kept, got %d", m.Count())
	}
	uri, err := m.MeshToMcptt("ab12cd34")
	if err != nil || uri != "sip:alpha1@example.org" {
		t.Fatalf("expected first binding preserved, got %q, %v", uri, err)
	}
}

func TestLoadReplacesWholesale(t *testing.T) {
	m := testMapper(t,
		&models.IdentityMapping{MeshKey: "ab12cd34", McpttURI: "sip:alpha1@example.org"})

	err := m.Load(context.Background(), staticProvider{
		{MeshKey: "ef56ab78", McpttURI: "sip:alpha2@example.org"},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, err := m.MeshToMcptt("ab12cd34"); !errors.Is(err, ErrNotMapped) {
		t.Fatal("expected old binding gone after reload")
	}
	if _, err := m.MeshToMcptt("ef56ab78"); err != nil {
		t.Fatalf("expected new binding present, got %v", err)
	}
}
