package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

var selectGatewayNodes = `SELECT * FROM gateway_nodes`

// GatewayNodeStore persists the last known status of candidate gateway
// nodes so the status API survives restarts.
type GatewayNodeStore interface {
	UpsertGatewayNode(node *models.GatewayNode) error
	GetAllGatewayNodes() ([]*models.GatewayNode, error)
}

type postgresGatewayNodeStore struct {
	db *sqlx.DB
}

// NewGatewayNodes creates a new gateway node store.
func NewGatewayNodes(dbconn *sqlx.DB) GatewayNodeStore {
	return &postgresGatewayNodeStore{db: dbconn}
}

func (s *postgresGatewayNodeStore) UpsertGatewayNode(node *models.GatewayNode) error {
	stmt := `
	INSERT INTO gateway_nodes (node_id, lte_quality, load_factor, battery_level, latency_ns, last_heartbeat, reachable)
	VALUES (:node_id, :lte_quality, :load_factor, :battery_level, :latency_ns, :last_heartbeat, :reachable)
	ON CONFLICT (node_id)
	DO UPDATE SET
		lte_quality = :lte_quality,
		load_factor = :load_factor,
		battery_level = :battery_level,
		latency_ns = :latency_ns,
		last_heartbeat = :last_heartbeat,
		reachable = :reachable
	;`

	_, err := s.db.NamedExec(stmt, node)
	return err
}

func (s *postgresGatewayNodeStore) GetAllGatewayNodes() ([]*models.GatewayNode, error) {
	query := selectGatewayNodes + ";"
	nodes := []*models.GatewayNode{}
	err := s.db.Select(&nodes, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nodes, nil
}
