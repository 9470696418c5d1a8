package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mcdev12/scoutsync/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

const (
	identityTokenKey = "scouting_uuid"
	identityNameKey  = "scouting_name"
)

// IdentityStore persists the login session. Every read goes to the database
// so a logout is visible to the next request.
type IdentityStore struct {
	db *sqlx.DB
}

func (s *IdentityStore) Token() string {
	return s.get(identityTokenKey)
}

func (s *IdentityStore) Name() string {
	return s.get(identityNameKey)
}

func (s *IdentityStore) Save(token, name string) error {
	return sqlutil.Run(context.Background(), s.db, func(tx *sqlx.Tx) error {
		for k, v := range map[string]string{identityTokenKey: token, identityNameKey: name} {
			if _, err := tx.Exec(`
				INSERT INTO kv (name, value) VALUES (?, ?)
				ON CONFLICT(name) DO UPDATE SET value = excluded.value`, k, v); err != nil {
				return fmt.Errorf("failed to store %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *IdentityStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE name IN (?, ?)`, identityTokenKey, identityNameKey); err != nil {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}

func (s *IdentityStore) get(key string) string {
	var value string
	err := s.db.Get(&value, `SELECT value FROM kv WHERE name = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return ""
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to read identity")
		return ""
	}
	return value
}
