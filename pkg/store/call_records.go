package store

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

var selectCallRecords = `SELECT * FROM call_records`

// CallRecordStore persists call detail records.
type CallRecordStore interface {
	CreateCallRecord(call *models.Call) error
	CloseCallRecord(callID string, endedAt time.Time) error
	GetRecentCallRecords(limit int) ([]*models.CallRecord, error)
}

type postgresCallRecordStore struct {
	db *sqlx.DB
}

// NewCallRecords creates a new call record store.
func NewCallRecords(dbconn *sqlx.DB) CallRecordStore {
	return &postgresCallRecordStore{db: dbconn}
}

func (s *postgresCallRecordStore) CreateCallRecord(call *models.Call) error {
	stmt := `
	INSERT INTO call_records (id, mcptt_id, mesh_id, group_id, started_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING;`

	_, err := s.db.Exec(stmt, call.ID, call.McpttID, call.MeshID, call.GroupID, call.CreatedAt)
	return err
}

func (s *postgresCallRecordStore) CloseCallRecord(callID string, endedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE call_records SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL;`,
		callID, endedAt)
	return err
}

func (s *postgresCallRecordStore) GetRecentCallRecords(limit int) ([]*models.CallRecord, error) {
	query := selectCallRecords + " ORDER BY started_at DESC LIMIT $1;"
	records := []*models.CallRecord{}
	err := s.db.Select(&records, query, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}
