package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/sqlutil"
)

var (
	ErrDraftNotFound   = errors.New("draft not found")
	ErrIncompleteDraft = errors.New("match, match_type, and team number must be set to generate a key")
)

type draftRow struct {
	Key        string         `db:"draft_key"`
	MatchType  string         `db:"match_type"`
	Match      int            `db:"match_number"`
	Alliance   sql.NullString `db:"alliance"`
	TeamNumber int            `db:"team_number"`
	Scouter    sql.NullString `db:"scouter"`
	Status     string         `db:"status"`
	Answers    string         `db:"answers"`
	UpdatedAt  int64          `db:"updated_at"`
}

// optional maps an unset string to NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *draftRow) fromModel(d models.ScoutingDraft) error {
	answers, err := sqlutil.ToJSONText(d.Answers)
	if err != nil {
		return err
	}
	if d.Answers == nil {
		answers = "{}"
	}

	r.Key = models.DraftKey(d.MatchType, d.Match, d.TeamNumber)
	r.MatchType = string(d.MatchType)
	r.Match = d.Match
	r.Alliance = sqlutil.ToSqlString(optional(string(d.Alliance)))
	r.TeamNumber = d.TeamNumber
	r.Scouter = sqlutil.ToSqlString(optional(d.Scouter))
	r.Status = string(d.Status)
	r.Answers = answers
	r.UpdatedAt = sqlutil.ToUnixMillis(d.UpdatedAt)
	return nil
}

func (r draftRow) toModel() (models.ScoutingDraft, error) {
	answers := models.Answers{}
	if r.Answers != "" {
		decoded, err := models.DecodeAnswers([]byte(r.Answers))
		if err != nil {
			return models.ScoutingDraft{}, fmt.Errorf("draft %s: %w", r.Key, err)
		}
		answers = decoded
	}
	return models.ScoutingDraft{
		Key:        r.Key,
		MatchType:  models.MatchType(r.MatchType),
		Match:      r.Match,
		Alliance:   models.Alliance(sqlutil.FromSqlString(r.Alliance, "")),
		TeamNumber: r.TeamNumber,
		Scouter:    sqlutil.FromSqlString(r.Scouter, ""),
		Status:     models.Phase(r.Status),
		Answers:    answers,
		UpdatedAt:  sqlutil.FromUnixMillis(r.UpdatedAt),
	}, nil
}

const draftColumns = `draft_key, match_type, match_number, alliance, team_number, scouter, status, answers, updated_at`

// SaveDraft inserts or replaces the draft under its composite key.
func (s *Store) SaveDraft(ctx context.Context, d models.ScoutingDraft) error {
	if d.Match <= 0 || d.MatchType == "" || d.TeamNumber <= 0 {
		return ErrIncompleteDraft
	}
	if d.Status == "" {
		d.Status = models.PhasePre
	}

	var row draftRow
	if err := row.fromModel(d); err != nil {
		return err
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO scouting_draft (`+draftColumns+`)
		VALUES (:draft_key, :match_type, :match_number, :alliance, :team_number, :scouter, :status, :answers, :updated_at)
		ON CONFLICT(draft_key) DO UPDATE SET
			match_type = excluded.match_type,
			match_number = excluded.match_number,
			alliance = excluded.alliance,
			team_number = excluded.team_number,
			scouter = excluded.scouter,
			status = excluded.status,
			answers = excluded.answers,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", row.Key, err)
	}
	return nil
}

// GetDraft loads the draft for key.
func (s *Store) GetDraft(ctx context.Context, key string) (models.ScoutingDraft, error) {
	var row draftRow
	err := s.db.GetContext(ctx, &row, `SELECT `+draftColumns+` FROM scouting_draft WHERE draft_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScoutingDraft{}, ErrDraftNotFound
	}
	if err != nil {
		return models.ScoutingDraft{}, fmt.Errorf("failed to get draft %s: %w", key, err)
	}
	return row.toModel()
}

// GetDraftFor loads the draft for (matchType, match, team).
func (s *Store) GetDraftFor(ctx context.Context, matchType models.MatchType, match, team int) (models.ScoutingDraft, error) {
	return s.GetDraft(ctx, models.DraftKey(matchType, match, team))
}

// ListKeys returns every draft key in key order.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	keys := []string{}
	if err := s.db.SelectContext(ctx, &keys, `SELECT draft_key FROM scouting_draft ORDER BY draft_key`); err != nil {
		return nil, fmt.Errorf("failed to list draft keys: %w", err)
	}
	return keys, nil
}

// ListDrafts returns all drafts, optionally filtered to the given statuses,
// most recently updated first.
func (s *Store) ListDrafts(ctx context.Context, statuses ...models.Phase) ([]models.ScoutingDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM scouting_draft`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY updated_at DESC, draft_key`

	var rows []draftRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	drafts := make([]models.ScoutingDraft, 0, len(rows))
	for _, r := range rows {
		d, err := r.toModel()
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// UpdateStatus changes only the status of an existing draft.
func (s *Store) UpdateStatus(ctx context.Context, key string, status models.Phase) error {
	res, err := s.db.ExecContext(ctx, `UPDATE scouting_draft SET status = ? WHERE draft_key = ?`, string(status), key)
	if err != nil {
		return fmt.Errorf("failed to update draft %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// DeleteDraft removes the draft for key. Deleting a missing key is not an error.
func (s *Store) DeleteDraft(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scouting_draft WHERE draft_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", key, err)
	}
	return nil
}
