package models

import "time"

// IdentityMapping is one row of the provisioned one-to-one binding between
// a mesh public-key identity and an MCPTT URI. Immutable during gateway
// operation; the table is only replaced wholesale on a provisioning update.
type IdentityMapping struct {
	// MeshKey is the hex-encoded Ed25519 public key of the mesh identity.
	MeshKey string `db:"mesh_key"`
	// McpttURI is the MCPTT user identity (URI or IMSI-equivalent).
	McpttURI string `db:"mcptt_uri"`
	// DisplayName is an optional operator-assigned label.
	DisplayName   string    `db:"display_name"`
	ProvisionedAt time.Time `db:"provisioned_at"`
}
