package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

// ErrNotMapped is returned when an identity has no provisioned binding.
// Events carrying unmapped identities are dropped, never forwarded under
// an invented identity.
var ErrNotMapped = errors.New("identity not mapped")

// Provider is the read-only source of provisioned identity mappings.
type Provider interface {
	ListIdentityMappings(ctx context.Context) ([]*models.IdentityMapping, error)
}

// Mapper holds the one-to-one binding between mesh public-key identities
// and MCPTT URIs. The table is read-mostly: loaded at startup and replaced
// wholesale when a provisioning update notification arrives.
type Mapper struct {
	mu          sync.RWMutex
	meshToMcptt map[string]string
	mcpttToMesh map[string]string
	loadedAt    time.Time

	log *slog.Logger
}

// NewMapper creates an empty mapper. Call Load before use.
func NewMapper(log *slog.Logger) *Mapper {
	return &Mapper{
		meshToMcptt: make(map[string]string),
		mcpttToMesh: make(map[string]string),
		log:         log.With("component", "identity"),
	}
}

// Load replaces the mapping table from the provisioning store. Duplicate
// bindings violate the one-to-one invariant and are skipped with a warning.
func (m *Mapper) Load(ctx context.Context, p Provider) error {
	rows, err := p.ListIdentityMappings(ctx)
	if err != nil {
		return err
	}

	meshToMcptt := make(map[string]string, len(rows))
	mcpttToMesh := make(map[string]string, len(rows))
	for _, row := range rows {
		if _, dup := meshToMcptt[row.MeshKey]; dup {
			m.log.Warn("duplicate mesh identity in provisioning store, skipping",
				"mesh_key", row.MeshKey)
			continue
		}
		if _, dup := mcpttToMesh[row.McpttURI]; dup {
			m.log.Warn("duplicate MCPTT identity in provisioning store, skipping",
				"mcptt_uri", row.McpttURI)
			continue
		}
		meshToMcptt[row.MeshKey] = row.McpttURI
		mcpttToMesh[row.McpttURI] = row.MeshKey
	}

	m.mu.Lock()
	m.meshToMcptt = meshToMcptt
	m.mcpttToMesh = mcpttToMesh
	m.loadedAt = time.Now()
	m.mu.Unlock()

	m.log.Info("identity mappings loaded", "count", len(meshToMcptt))
	return nil
}

// MeshToMcptt resolves a mesh public-key identity to its MCPTT URI.
func (m *Mapper) MeshToMcptt(meshKey string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uri, ok := m.meshToMcptt[meshKey]
	if !ok {
		return "", ErrNotMapped
	}
	return uri, nil
}

// McpttToMesh resolves an MCPTT URI to its mesh public-key identity.
func (m *Mapper) McpttToMesh(uri string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.mcpttToMesh[uri]
	if !ok {
		return "", ErrNotMapped
	}
	return key, nil
}

// Resolve maps an identity across the domain boundary, given the domain
// it originates from.
func (m *Mapper) Resolve(from models.Domain, id string) (string, error) {
	if from == models.DomainMesh {
		return m.MeshToMcptt(id)
	}
	return m.McpttToMesh(id)
}

// Count returns the number of provisioned bindings.
func (m *Mapper) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.meshToMcptt)
}

// LoadedAt returns when the table was last (re)loaded.
func (m *Mapper) LoadedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadedAt
}
