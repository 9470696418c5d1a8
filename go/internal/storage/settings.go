package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mcdev12/scoutsync/go/internal/sqlutil"
)

const (
	globalSettings = "global"

	SettingTheme            = "theme"
	SettingFieldOrientation = "field_orientation"

	DefaultTheme = "2025"
)

// Settings is the device's settings document. Values are strings, numbers or
// booleans.
type Settings map[string]any

// Theme returns the configured theme.
func (s Settings) Theme() string {
	if v, ok := s[SettingTheme].(string); ok && v != "" {
		return v
	}
	return DefaultTheme
}

func defaultSettings() Settings {
	return Settings{SettingTheme: DefaultTheme}
}

// GetSettings returns the stored settings with defaults filled in for
// missing keys.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	stored, err := loadSettings(ctx, s.db)
	if err != nil {
		return nil, err
	}

	out := defaultSettings()
	for k, v := range stored {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// GetSetting returns one setting and whether it has a value.
func (s *Store) GetSetting(ctx context.Context, key string) (any, bool, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := settings[key]
	return v, ok, nil
}

// SetSettings merges patch into the stored document atomically. A nil value
// removes the key.
func (s *Store) SetSettings(ctx context.Context, patch Settings) error {
	return sqlutil.Run(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		for k, v := range patch {
			if v == nil {
				delete(current, k)
				continue
			}
			current[k] = v
		}

		text, err := sqlutil.ToJSONText(current)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO settings (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value`, globalSettings, text)
		if err != nil {
			return fmt.Errorf("failed to store settings: %w", err)
		}
		return nil
	})
}

// ClearSettings removes every stored setting.
func (s *Store) ClearSettings(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	return nil
}

func loadSettings(ctx context.Context, q sqlx.QueryerContext) (Settings, error) {
	var text string
	err := sqlx.GetContext(ctx, q, &text, `SELECT value FROM settings WHERE name = ?`, globalSettings)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	settings := Settings{}
	if err := sqlutil.FromJSONText(text, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}
