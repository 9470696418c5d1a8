package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CreateSchema creates all tables the device needs.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
-- In-progress and completed scouting records, one per (match_type, match, team)
CREATE TABLE IF NOT EXISTS scouting_draft (
    draft_key TEXT PRIMARY KEY,
    match_type TEXT NOT NULL CHECK (match_type IN ('qm', 'sf', 'f')),
    match_number INTEGER NOT NULL CHECK (match_number > 0),
    alliance TEXT CHECK (alliance IS NULL OR alliance IN ('red', 'blue')),
    team_number INTEGER NOT NULL CHECK (team_number > 0),
    scouter TEXT,
    status TEXT NOT NULL DEFAULT 'pre',
    answers TEXT NOT NULL DEFAULT '{}',
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_scouting_draft_match ON scouting_draft(match_number);
CREATE INDEX IF NOT EXISTS idx_scouting_draft_team ON scouting_draft(team_number);
CREATE INDEX IF NOT EXISTS idx_scouting_draft_status ON scouting_draft(status);

-- Device settings, a single JSON document under name 'global'
CREATE TABLE IF NOT EXISTS settings (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT '{}'
);

-- Session identity and other small values
CREATE TABLE IF NOT EXISTS kv (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
