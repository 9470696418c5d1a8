package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mcdev12/scoutsync/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store is the device-local database holding drafts, settings and identity.
// It has a single writer: the device itself.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database described by cfg and ensures the schema.
func Open(cfg dbconfig.Config) (*Store, error) {
	db, err := sqlx.Open(dbconfig.DriverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: sqlite serializes writers anyway, and :memory: is per-connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", cfg.Path).Msg("local store ready")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Identity returns the identity view over this store.
func (s *Store) Identity() *IdentityStore {
	return &IdentityStore{db: s.db}
}
