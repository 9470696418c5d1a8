package main

import (
	"fmt"

	"github.com/mcdev12/scoutsync/go/internal/dbconfig"
	"github.com/mcdev12/scoutsync/go/internal/storage"
	"github.com/rs/zerolog/log"
)

func setupDatabase(dataDir string) (*storage.Store, error) {
	dbCfg := dbconfig.NewConfigFromEnv(dataDir)

	store, err := storage.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	log.Debug().Str("path", dbCfg.Path).Str("journal_mode", dbCfg.JournalMode).Msg("opened local store")
	return store, nil
}
