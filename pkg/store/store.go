// Package store provides the Postgres persistence layer: provisioned
// identity mappings, gateway node status snapshots and call detail
// records.
package store

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Stores aggregates the per-table store interfaces over one connection.
type Stores struct {
	DB           *sqlx.DB
	Identities   IdentityStore
	GatewayNodes GatewayNodeStore
	CallRecords  CallRecordStore
}

// Connect opens the database and builds the store set.
func Connect(dsn string) (*Stores, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &Stores{
		DB:           db,
		Identities:   NewIdentities(db),
		GatewayNodes: NewGatewayNodes(db),
		CallRecords:  NewCallRecords(db),
	}, nil
}

// RunMigrations applies pending schema migrations from the embedded set.
func RunMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Stores) Close() error {
	return s.DB.Close()
}
