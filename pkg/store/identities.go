package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

var selectIdentityMappings = `SELECT * FROM identity_mappings`

// IdentityStore provides database operations for provisioned identity
// mappings.
type IdentityStore interface {
	ListIdentityMappings(ctx context.Context) ([]*models.IdentityMapping, error)
	GetByMeshKey(ctx context.Context, meshKey string) (*models.IdentityMapping, error)
	AddIdentityMapping(ctx context.Context, m *models.IdentityMapping) error
	RemoveIdentityMapping(ctx context.Context, meshKey string) error
}

type postgresIdentityStore struct {
	db *sqlx.DB
}

// NewIdentities creates a new identity mapping store.
func NewIdentities(dbconn *sqlx.DB) IdentityStore {
	return &postgresIdentityStore{db: dbconn}
}

func (s *postgresIdentityStore) ListIdentityMappings(ctx context.Context) ([]*models.IdentityMapping, error) {
	query := selectIdentityMappings + ";"
	rows := []*models.IdentityMapping{}
	err := s.db.SelectContext(ctx, &rows, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *postgresIdentityStore) GetByMeshKey(ctx context.Context, meshKey string) (*models.IdentityMapping, error) {
	query := selectIdentityMappings + " WHERE mesh_key = $1;"
	var row models.IdentityMapping
	err := s.db.GetContext(ctx, &row, query, meshKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *postgresIdentityStore) AddIdentityMapping(ctx context.Context, m *models.IdentityMapping) error {
	stmt := `
	INSERT INTO identity_mappings (mesh_key, mcptt_uri, display_name, provisioned_at)
	VALUES (:mesh_key, :mcptt_uri, :display_name, :provisioned_at)
	ON CONFLICT (mesh_key)
	DO UPDATE SET
		mcptt_uri = :mcptt_uri,
		display_name = :display_name,
		provisioned_at = :provisioned_at
	;`

	_, err := s.db.NamedExecContext(ctx, stmt, m)
	return err
}

func (s *postgresIdentityStore) RemoveIdentityMapping(ctx context.Context, meshKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM identity_mappings WHERE mesh_key = $1;`, meshKey)
	return err
}
